package serializejson

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/helmut-steiner/finalmq/internal/buffer"
	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

const hexDigits = "0123456789abcdef"

type level struct {
	array bool
	first bool
}

// Option 序列化选项
type Option func(*Serializer)

// WithEnumAsNumber 枚举总是输出数值
func WithEnumAsNumber() Option {
	return func(s *Serializer) { s.enumAsString = false }
}

// Serializer 把访问者事件写成紧凑 JSON
type Serializer struct {
	reg          *metadata.Registry
	out          *buffer.Buffer
	stack        []level
	scratch      []byte
	enumAsString bool
}

var _ serialize.Visitor = (*Serializer)(nil)

// NewSerializer 创建写入 out 的 JSON 序列化器
func NewSerializer(reg *metadata.Registry, out *buffer.Buffer, opts ...Option) *Serializer {
	s := &Serializer{reg: reg, out: out, enumAsString: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Serializer) NotifyError([]byte, int, string) {}
func (s *Serializer) Finished()                       {}

// begin 写入分隔符和键，返回可追加值的 scratch
func (s *Serializer) begin(fd *metadata.FieldDescriptor) []byte {
	b := s.scratch[:0]
	if len(s.stack) == 0 {
		return b
	}
	top := &s.stack[len(s.stack)-1]
	if !top.first {
		b = append(b, ',')
	}
	top.first = false
	if !top.array {
		b = appendString(b, fd.Name)
		b = append(b, ':')
	}
	return b
}

func (s *Serializer) flush(b []byte) {
	s.out.Write(b)
	s.scratch = b[:0]
}

func (s *Serializer) EnterStruct(fd *metadata.FieldDescriptor) {
	s.flush(append(s.begin(fd), '{'))
	s.stack = append(s.stack, level{first: true})
}

func (s *Serializer) ExitStruct(*metadata.FieldDescriptor) {
	s.out.WriteByte('}')
	s.pop()
}

func (s *Serializer) EnterArrayStruct(fd *metadata.FieldDescriptor) {
	s.flush(append(s.begin(fd), '['))
	s.stack = append(s.stack, level{array: true, first: true})
}

func (s *Serializer) ExitArrayStruct(*metadata.FieldDescriptor) {
	s.out.WriteByte(']')
	s.pop()
}

func (s *Serializer) pop() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *Serializer) EnterBool(fd *metadata.FieldDescriptor, v bool) {
	s.flush(strconv.AppendBool(s.begin(fd), v))
}

func (s *Serializer) EnterInt8(fd *metadata.FieldDescriptor, v int8) {
	s.flush(strconv.AppendInt(s.begin(fd), int64(v), 10))
}

func (s *Serializer) EnterUInt8(fd *metadata.FieldDescriptor, v uint8) {
	s.flush(strconv.AppendUint(s.begin(fd), uint64(v), 10))
}

func (s *Serializer) EnterInt16(fd *metadata.FieldDescriptor, v int16) {
	s.flush(strconv.AppendInt(s.begin(fd), int64(v), 10))
}

func (s *Serializer) EnterUInt16(fd *metadata.FieldDescriptor, v uint16) {
	s.flush(strconv.AppendUint(s.begin(fd), uint64(v), 10))
}

func (s *Serializer) EnterInt32(fd *metadata.FieldDescriptor, v int32) {
	s.flush(strconv.AppendInt(s.begin(fd), int64(v), 10))
}

func (s *Serializer) EnterUInt32(fd *metadata.FieldDescriptor, v uint32) {
	s.flush(strconv.AppendUint(s.begin(fd), uint64(v), 10))
}

func (s *Serializer) EnterInt64(fd *metadata.FieldDescriptor, v int64) {
	s.flush(strconv.AppendInt(s.begin(fd), v, 10))
}

func (s *Serializer) EnterUInt64(fd *metadata.FieldDescriptor, v uint64) {
	s.flush(strconv.AppendUint(s.begin(fd), v, 10))
}

func (s *Serializer) EnterFloat32(fd *metadata.FieldDescriptor, v float32) {
	s.flush(appendFloat(s.begin(fd), float64(v), 32))
}

func (s *Serializer) EnterFloat64(fd *metadata.FieldDescriptor, v float64) {
	s.flush(appendFloat(s.begin(fd), v, 64))
}

func (s *Serializer) EnterString(fd *metadata.FieldDescriptor, v string) {
	s.flush(appendString(s.begin(fd), v))
}

func (s *Serializer) EnterBytes(fd *metadata.FieldDescriptor, v []byte) {
	s.flush(appendBytes(s.begin(fd), v))
}

func (s *Serializer) EnterEnum(fd *metadata.FieldDescriptor, v int32) {
	s.flush(s.appendEnum(s.begin(fd), fd, v))
}

func (s *Serializer) EnterEnumString(fd *metadata.FieldDescriptor, v string) {
	s.flush(s.appendEnumName(s.begin(fd), fd, v))
}

// appendEnumName 按名称输出；要求数值时查表，整数字面量原样输出，其余未知名称取默认值
func (s *Serializer) appendEnumName(b []byte, fd *metadata.FieldDescriptor, name string) []byte {
	if s.enumAsString {
		return appendString(b, name)
	}
	var v int32
	if ed, ok := s.reg.FindEnum(fd.TypeName); ok {
		var found bool
		if v, found = ed.ValueOf(name); !found {
			v = ed.Default()
			if n, err := strconv.ParseInt(name, 10, 32); err == nil {
				v = int32(n)
			}
		}
	}
	return strconv.AppendInt(b, int64(v), 10)
}

func (s *Serializer) appendEnum(b []byte, fd *metadata.FieldDescriptor, v int32) []byte {
	if s.enumAsString {
		if ed, ok := s.reg.FindEnum(fd.TypeName); ok {
			if name, ok := ed.NameOf(v); ok {
				return appendString(b, name)
			}
		}
	}
	return strconv.AppendInt(b, int64(v), 10)
}

func (s *Serializer) EnterArrayBool(fd *metadata.FieldDescriptor, v []bool) {
	s.flush(appendArray(s.begin(fd), v, strconv.AppendBool))
}

func (s *Serializer) EnterArrayInt8(fd *metadata.FieldDescriptor, v []int8) {
	s.flush(appendArray(s.begin(fd), v, appendSigned[int8]))
}

func (s *Serializer) EnterArrayUInt8(fd *metadata.FieldDescriptor, v []uint8) {
	s.flush(appendArray(s.begin(fd), v, appendUnsigned[uint8]))
}

func (s *Serializer) EnterArrayInt16(fd *metadata.FieldDescriptor, v []int16) {
	s.flush(appendArray(s.begin(fd), v, appendSigned[int16]))
}

func (s *Serializer) EnterArrayUInt16(fd *metadata.FieldDescriptor, v []uint16) {
	s.flush(appendArray(s.begin(fd), v, appendUnsigned[uint16]))
}

func (s *Serializer) EnterArrayInt32(fd *metadata.FieldDescriptor, v []int32) {
	s.flush(appendArray(s.begin(fd), v, appendSigned[int32]))
}

func (s *Serializer) EnterArrayUInt32(fd *metadata.FieldDescriptor, v []uint32) {
	s.flush(appendArray(s.begin(fd), v, appendUnsigned[uint32]))
}

func (s *Serializer) EnterArrayInt64(fd *metadata.FieldDescriptor, v []int64) {
	s.flush(appendArray(s.begin(fd), v, appendSigned[int64]))
}

func (s *Serializer) EnterArrayUInt64(fd *metadata.FieldDescriptor, v []uint64) {
	s.flush(appendArray(s.begin(fd), v, appendUnsigned[uint64]))
}

func (s *Serializer) EnterArrayFloat32(fd *metadata.FieldDescriptor, v []float32) {
	s.flush(appendArray(s.begin(fd), v, func(b []byte, f float32) []byte { return appendFloat(b, float64(f), 32) }))
}

func (s *Serializer) EnterArrayFloat64(fd *metadata.FieldDescriptor, v []float64) {
	s.flush(appendArray(s.begin(fd), v, func(b []byte, f float64) []byte { return appendFloat(b, f, 64) }))
}

func (s *Serializer) EnterArrayString(fd *metadata.FieldDescriptor, v []string) {
	s.flush(appendArray(s.begin(fd), v, appendString))
}

func (s *Serializer) EnterArrayBytes(fd *metadata.FieldDescriptor, v [][]byte) {
	s.flush(appendArray(s.begin(fd), v, appendBytes))
}

func (s *Serializer) EnterArrayEnum(fd *metadata.FieldDescriptor, v []int32) {
	s.flush(appendArray(s.begin(fd), v, func(b []byte, e int32) []byte { return s.appendEnum(b, fd, e) }))
}

func (s *Serializer) EnterArrayEnumString(fd *metadata.FieldDescriptor, v []string) {
	s.flush(appendArray(s.begin(fd), v, func(b []byte, e string) []byte { return s.appendEnumName(b, fd, e) }))
}

func appendArray[T any](b []byte, vs []T, elem func([]byte, T) []byte) []byte {
	b = append(b, '[')
	for i, v := range vs {
		if i > 0 {
			b = append(b, ',')
		}
		b = elem(b, v)
	}
	return append(b, ']')
}

func appendSigned[T int8 | int16 | int32 | int64](b []byte, v T) []byte {
	return strconv.AppendInt(b, int64(v), 10)
}

func appendUnsigned[T uint8 | uint16 | uint32 | uint64](b []byte, v T) []byte {
	return strconv.AppendUint(b, uint64(v), 10)
}

// appendFloat NaN 与无穷大不是合法的 JSON 数字，写成字符串
func appendFloat(b []byte, f float64, bits int) []byte {
	switch {
	case math.IsNaN(f):
		return append(b, `"NaN"`...)
	case math.IsInf(f, 1):
		return append(b, `"Infinity"`...)
	case math.IsInf(f, -1):
		return append(b, `"-Infinity"`...)
	}
	return strconv.AppendFloat(b, f, 'g', -1, bits)
}

// appendString 写入带引号的字符串，合法的 UTF-8 原样输出，非法字节替换为 U+FFFD
func appendString(b []byte, s string) []byte {
	b = append(b, '"')
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			if c < utf8.RuneSelf {
				i++
				continue
			}
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				b = append(b, s[start:i]...)
				b = append(b, "\ufffd"...)
				i++
				start = i
				continue
			}
			i += size
			continue
		}
		b = append(b, s[start:i]...)
		switch c {
		case '"', '\\':
			b = append(b, '\\', c)
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		default:
			b = appendEscape(b, c)
		}
		i++
		start = i
	}
	b = append(b, s[start:]...)
	return append(b, '"')
}

// appendBytes 可打印 ASCII 原样输出，其余字节写成 \u00XX
func appendBytes(b []byte, v []byte) []byte {
	b = append(b, '"')
	for _, c := range v {
		switch {
		case c == '"' || c == '\\':
			b = append(b, '\\', c)
		case c >= 0x20 && c < 0x7f:
			b = append(b, c)
		default:
			b = appendEscape(b, c)
		}
	}
	return append(b, '"')
}

func appendEscape(b []byte, c byte) []byte {
	return append(b, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
}
