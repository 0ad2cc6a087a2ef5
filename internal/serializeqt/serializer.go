// Package serializeqt 实现 Qt QDataStream 二进制格式的解析器与序列化器
//
// 所有整数为大端定长，bool 占 1 字节，float 与 double 都写成 8 字节 double，
// string 为 UTF-16BE 加 uint32 字节长度（0xFFFFFFFF 表示 null），bytes 为 uint32 长度加原始字节，
// 枚举为 int32，数组为 uint32 元素个数加元素，bool 数组使用 QBitArray 布局，结构体为字段的顺序拼接。
package serializeqt

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/helmut-steiner/finalmq/internal/buffer"
	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

const nullLength = 0xFFFFFFFF

// frame 结构体按字段序号暂存已编码的字段，退出时按声明顺序拼接并补齐缺省值；
// 数组帧累积元素编码
type frame struct {
	stru     *metadata.StructDescriptor
	fields   [][]byte
	array    bool
	elemType string
	count    uint32
	raw      []byte // 数组元素，或未注册结构体按到达顺序的字段
}

// Serializer 把访问者事件写成 QDataStream 格式
//
// QDataStream 没有字段标签，输出总是按声明顺序排列全部字段，
// 缺失的字段写零值，枚举写默认值。
type Serializer struct {
	reg     *metadata.Registry
	out     *buffer.Buffer
	stack   []frame
	scratch []byte
}

var _ serialize.Visitor = (*Serializer)(nil)

// NewSerializer 创建写入 out 的序列化器
func NewSerializer(reg *metadata.Registry, out *buffer.Buffer) *Serializer {
	return &Serializer{reg: reg, out: out}
}

func (s *Serializer) NotifyError([]byte, int, string) {}
func (s *Serializer) Finished()                       {}

func (s *Serializer) EnterStruct(fd *metadata.FieldDescriptor) {
	typeName := fd.TypeName
	if n := len(s.stack); n > 0 && s.stack[n-1].array {
		typeName = s.stack[n-1].elemType
	}
	f := frame{}
	if stru, ok := s.reg.FindStruct(typeName); ok {
		f.stru = stru
		f.fields = make([][]byte, stru.NumFields())
	}
	s.stack = append(s.stack, f)
}

func (s *Serializer) ExitStruct(fd *metadata.FieldDescriptor) {
	n := len(s.stack)
	if n == 0 || s.stack[n-1].array {
		return
	}
	top := s.stack[n-1]
	s.stack = s.stack[:n-1]
	b := top.raw
	if top.stru != nil {
		b = s.appendStruct(nil, top.stru, top.fields, len(s.stack))
	}
	if n == 1 {
		s.out.Write(b)
		return
	}
	parent := &s.stack[n-2]
	if parent.array {
		parent.raw = append(parent.raw, b...)
		parent.count++
		return
	}
	s.setField(parent, fd, b)
}

func (s *Serializer) EnterArrayStruct(fd *metadata.FieldDescriptor) {
	s.stack = append(s.stack, frame{array: true, elemType: fd.TypeName})
}

func (s *Serializer) ExitArrayStruct(fd *metadata.FieldDescriptor) {
	n := len(s.stack)
	if n == 0 || !s.stack[n-1].array {
		return
	}
	top := s.stack[n-1]
	s.stack = s.stack[:n-1]
	b := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(top.raw)), top.count)
	b = append(b, top.raw...)
	if n == 1 {
		s.out.Write(b)
		return
	}
	s.setField(&s.stack[n-2], fd, b)
}

func (s *Serializer) setField(f *frame, fd *metadata.FieldDescriptor, b []byte) {
	switch {
	case f.array:
	case f.stru == nil:
		f.raw = append(f.raw, b...)
	case fd.Index >= 0 && fd.Index < len(f.fields):
		f.fields[fd.Index] = b
	}
}

// put 暂存一个已编码的字段，b 借用 scratch
func (s *Serializer) put(fd *metadata.FieldDescriptor, b []byte) {
	s.scratch = b[:0]
	n := len(s.stack)
	if n == 0 {
		s.out.Write(b)
		return
	}
	s.setField(&s.stack[n-1], fd, append([]byte(nil), b...))
}

// appendStruct 按声明顺序拼接字段，未出现的字段写缺省值
func (s *Serializer) appendStruct(b []byte, stru *metadata.StructDescriptor, fields [][]byte, depth int) []byte {
	for i, fd := range stru.Fields {
		if i < len(fields) && fields[i] != nil {
			b = append(b, fields[i]...)
			continue
		}
		b = s.appendDefault(b, fd, depth)
	}
	return b
}

func (s *Serializer) appendDefault(b []byte, fd *metadata.FieldDescriptor, depth int) []byte {
	if fd.Kind.IsArray() {
		return binary.BigEndian.AppendUint32(b, 0)
	}
	switch fd.Kind {
	case metadata.TypeBool, metadata.TypeInt8, metadata.TypeUInt8:
		return append(b, 0)
	case metadata.TypeInt16, metadata.TypeUInt16:
		return append(b, 0, 0)
	case metadata.TypeInt32, metadata.TypeUInt32, metadata.TypeString, metadata.TypeBytes:
		return binary.BigEndian.AppendUint32(b, 0)
	case metadata.TypeInt64, metadata.TypeUInt64, metadata.TypeFloat32, metadata.TypeFloat64:
		return binary.BigEndian.AppendUint64(b, 0)
	case metadata.TypeEnum:
		var v int32
		if ed, ok := s.reg.FindEnum(fd.TypeName); ok {
			v = ed.Default()
		}
		return binary.BigEndian.AppendUint32(b, uint32(v))
	case metadata.TypeStruct:
		sub, ok := s.reg.FindStruct(fd.TypeName)
		if !ok || depth >= maxDepth {
			return b
		}
		return s.appendStruct(b, sub, nil, depth+1)
	}
	return b
}

func (s *Serializer) EnterBool(fd *metadata.FieldDescriptor, v bool) {
	s.put(fd, appendBool(s.scratch[:0], v))
}
func (s *Serializer) EnterInt8(fd *metadata.FieldDescriptor, v int8) {
	s.put(fd, append(s.scratch[:0], byte(v)))
}
func (s *Serializer) EnterUInt8(fd *metadata.FieldDescriptor, v uint8) {
	s.put(fd, append(s.scratch[:0], v))
}
func (s *Serializer) EnterInt16(fd *metadata.FieldDescriptor, v int16) {
	s.put(fd, binary.BigEndian.AppendUint16(s.scratch[:0], uint16(v)))
}
func (s *Serializer) EnterUInt16(fd *metadata.FieldDescriptor, v uint16) {
	s.put(fd, binary.BigEndian.AppendUint16(s.scratch[:0], v))
}
func (s *Serializer) EnterInt32(fd *metadata.FieldDescriptor, v int32) {
	s.put(fd, binary.BigEndian.AppendUint32(s.scratch[:0], uint32(v)))
}
func (s *Serializer) EnterUInt32(fd *metadata.FieldDescriptor, v uint32) {
	s.put(fd, binary.BigEndian.AppendUint32(s.scratch[:0], v))
}
func (s *Serializer) EnterInt64(fd *metadata.FieldDescriptor, v int64) {
	s.put(fd, binary.BigEndian.AppendUint64(s.scratch[:0], uint64(v)))
}
func (s *Serializer) EnterUInt64(fd *metadata.FieldDescriptor, v uint64) {
	s.put(fd, binary.BigEndian.AppendUint64(s.scratch[:0], v))
}
func (s *Serializer) EnterFloat32(fd *metadata.FieldDescriptor, v float32) {
	s.put(fd, appendDouble(s.scratch[:0], float64(v)))
}
func (s *Serializer) EnterFloat64(fd *metadata.FieldDescriptor, v float64) {
	s.put(fd, appendDouble(s.scratch[:0], v))
}
func (s *Serializer) EnterString(fd *metadata.FieldDescriptor, v string) {
	s.put(fd, appendString(s.scratch[:0], v))
}
func (s *Serializer) EnterBytes(fd *metadata.FieldDescriptor, v []byte) {
	s.put(fd, appendBytes(s.scratch[:0], v))
}
func (s *Serializer) EnterEnum(fd *metadata.FieldDescriptor, v int32) {
	s.put(fd, binary.BigEndian.AppendUint32(s.scratch[:0], uint32(v)))
}

func (s *Serializer) EnterEnumString(fd *metadata.FieldDescriptor, v string) {
	s.EnterEnum(fd, s.enumValue(fd, v))
}

func (s *Serializer) enumValue(fd *metadata.FieldDescriptor, name string) int32 {
	ed, ok := s.reg.FindEnum(fd.TypeName)
	if !ok {
		return 0
	}
	if v, ok := ed.ValueOf(name); ok {
		return v
	}
	return ed.Default()
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

func appendDouble(b []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(b, math.Float64bits(v))
}

func appendString(b []byte, v string) []byte {
	units := utf16.Encode([]rune(v))
	b = binary.BigEndian.AppendUint32(b, uint32(len(units)*2))
	for _, u := range units {
		b = binary.BigEndian.AppendUint16(b, u)
	}
	return b
}

func appendBytes(b []byte, v []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(v)))
	return append(b, v...)
}

func appendArray[T any](b []byte, vs []T, elem func([]byte, T) []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(vs)))
	for _, v := range vs {
		b = elem(b, v)
	}
	return b
}

// appendBitArray QBitArray：uint32 位数，随后按字节打包，低位在前
func appendBitArray(b []byte, vs []bool) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(vs)))
	var cur byte
	for i, v := range vs {
		if v {
			cur |= 1 << (i % 8)
		}
		if i%8 == 7 {
			b = append(b, cur)
			cur = 0
		}
	}
	if len(vs)%8 != 0 {
		b = append(b, cur)
	}
	return b
}

func (s *Serializer) EnterArrayBool(fd *metadata.FieldDescriptor, v []bool) {
	s.put(fd, appendBitArray(s.scratch[:0], v))
}

func (s *Serializer) EnterArrayInt8(fd *metadata.FieldDescriptor, v []int8) {
	s.put(fd, appendArray(s.scratch[:0], v, func(b []byte, e int8) []byte { return append(b, byte(e)) }))
}

func (s *Serializer) EnterArrayUInt8(fd *metadata.FieldDescriptor, v []uint8) {
	s.put(fd, appendArray(s.scratch[:0], v, func(b []byte, e uint8) []byte { return append(b, e) }))
}

func (s *Serializer) EnterArrayInt16(fd *metadata.FieldDescriptor, v []int16) {
	s.put(fd, appendArray(s.scratch[:0], v, func(b []byte, e int16) []byte {
		return binary.BigEndian.AppendUint16(b, uint16(e))
	}))
}

func (s *Serializer) EnterArrayUInt16(fd *metadata.FieldDescriptor, v []uint16) {
	s.put(fd, appendArray(s.scratch[:0], v, binary.BigEndian.AppendUint16))
}

func (s *Serializer) EnterArrayInt32(fd *metadata.FieldDescriptor, v []int32) {
	s.put(fd, appendArray(s.scratch[:0], v, func(b []byte, e int32) []byte {
		return binary.BigEndian.AppendUint32(b, uint32(e))
	}))
}

func (s *Serializer) EnterArrayUInt32(fd *metadata.FieldDescriptor, v []uint32) {
	s.put(fd, appendArray(s.scratch[:0], v, binary.BigEndian.AppendUint32))
}

func (s *Serializer) EnterArrayInt64(fd *metadata.FieldDescriptor, v []int64) {
	s.put(fd, appendArray(s.scratch[:0], v, func(b []byte, e int64) []byte {
		return binary.BigEndian.AppendUint64(b, uint64(e))
	}))
}

func (s *Serializer) EnterArrayUInt64(fd *metadata.FieldDescriptor, v []uint64) {
	s.put(fd, appendArray(s.scratch[:0], v, binary.BigEndian.AppendUint64))
}

func (s *Serializer) EnterArrayFloat32(fd *metadata.FieldDescriptor, v []float32) {
	s.put(fd, appendArray(s.scratch[:0], v, func(b []byte, e float32) []byte { return appendDouble(b, float64(e)) }))
}

func (s *Serializer) EnterArrayFloat64(fd *metadata.FieldDescriptor, v []float64) {
	s.put(fd, appendArray(s.scratch[:0], v, appendDouble))
}

func (s *Serializer) EnterArrayString(fd *metadata.FieldDescriptor, v []string) {
	s.put(fd, appendArray(s.scratch[:0], v, appendString))
}

func (s *Serializer) EnterArrayBytes(fd *metadata.FieldDescriptor, v [][]byte) {
	s.put(fd, appendArray(s.scratch[:0], v, appendBytes))
}

func (s *Serializer) EnterArrayEnum(fd *metadata.FieldDescriptor, v []int32) {
	s.put(fd, appendArray(s.scratch[:0], v, func(b []byte, e int32) []byte {
		return binary.BigEndian.AppendUint32(b, uint32(e))
	}))
}

func (s *Serializer) EnterArrayEnumString(fd *metadata.FieldDescriptor, v []string) {
	values := make([]int32, len(v))
	for i, name := range v {
		values[i] = s.enumValue(fd, name)
	}
	s.EnterArrayEnum(fd, values)
}
