package serializeproto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

const maxDepth = 256

// Parser 解析 protobuf 线格式
//
// 每个结构体先把线上字段按声明字段归并（标量后者覆盖，结构体多次出现时合并，
// 数组累加，packed 与非 packed 都接受），再按声明顺序发出事件。
// 未知字段号与线类型不符的字段被跳过。
type Parser struct {
	reg     *metadata.Registry
	visitor serialize.Visitor
	buf     []byte
	depth   int
}

var _ serialize.Parser = (*Parser)(nil)

// NewParser 创建解析 buf 的解析器
func NewParser(reg *metadata.Registry, visitor serialize.Visitor, buf []byte) *Parser {
	return &Parser{reg: reg, visitor: visitor, buf: buf}
}

type syntaxError struct {
	pos int
	msg string
}

func (e *syntaxError) Error() string { return fmt.Sprintf("offset %d: %s", e.pos, e.msg) }

// ParseStruct 解析整个缓冲区，成功时返回缓冲区长度
func (p *Parser) ParseStruct(typeName string) (int, error) {
	stru, ok := p.reg.FindStruct(typeName)
	if !ok {
		p.visitor.NotifyError(p.buf, 0, "typename not found: "+typeName)
		p.visitor.Finished()
		return -1, fmt.Errorf("serializeproto.Parser %s: %w", typeName, serialize.ErrUnknownType)
	}
	root := metadata.RootField(typeName)
	p.visitor.EnterStruct(root)
	if err := p.parseMessage(stru, p.buf, 0); err != nil {
		pos, msg := 0, err.Error()
		if se, ok := err.(*syntaxError); ok {
			pos, msg = se.pos, se.msg
		}
		p.visitor.NotifyError(p.buf, pos, msg)
		p.visitor.Finished()
		return -1, fmt.Errorf("serializeproto.Parser: %w: %v", serialize.ErrSyntax, err)
	}
	p.visitor.ExitStruct(root)
	p.visitor.Finished()
	return len(p.buf), nil
}

// part 线上的一段长度前缀数据，base 为其在输入中的偏移
type part struct {
	data []byte
	base int
}

// slot 一个声明字段收集到的线上数据
type slot struct {
	present bool
	scalar  uint64
	parts   []part
	nums    []uint64
}

func (p *Parser) parseMessage(stru *metadata.StructDescriptor, data []byte, base int) error {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return &syntaxError{pos: base, msg: "nesting too deep"}
	}

	slots := make([]slot, stru.NumFields())
	pos := 0
	for pos < len(data) {
		num, typ, n := protowire.ConsumeTag(data[pos:])
		if n < 0 {
			return &syntaxError{pos: base + pos, msg: protowire.ParseError(n).Error()}
		}
		valuePos := pos + n
		m := protowire.ConsumeFieldValue(num, typ, data[valuePos:])
		if m < 0 {
			return &syntaxError{pos: base + valuePos, msg: protowire.ParseError(m).Error()}
		}
		value := data[valuePos : valuePos+m]
		pos = valuePos + m

		fd, ok := stru.Field(int(num) - 1)
		if !ok {
			continue
		}
		if err := collect(&slots[fd.Index], fd, typ, value, base+valuePos); err != nil {
			return err
		}
	}

	for i, fd := range stru.Fields {
		if !slots[i].present {
			continue
		}
		if err := p.emit(fd, &slots[i]); err != nil {
			return err
		}
	}
	return nil
}

// wireType 字段（或数组元素）期望的线类型
func wireType(kind metadata.TypeID) protowire.Type {
	switch kind.Elem() {
	case metadata.TypeFloat32:
		return protowire.Fixed32Type
	case metadata.TypeFloat64:
		return protowire.Fixed64Type
	case metadata.TypeString, metadata.TypeBytes, metadata.TypeStruct:
		return protowire.BytesType
	default:
		return protowire.VarintType
	}
}

// collect 把一个线上字段并入 slot，线类型不符时忽略
func collect(s *slot, fd *metadata.FieldDescriptor, typ protowire.Type, value []byte, pos int) error {
	want := wireType(fd.Kind)
	switch {
	case !fd.Kind.IsArray():
		if typ != want {
			return nil
		}
		switch typ {
		case protowire.BytesType:
			v, _ := protowire.ConsumeBytes(value)
			if fd.Kind == metadata.TypeStruct {
				s.parts = append(s.parts, part{data: v, base: pos + len(value) - len(v)})
			} else {
				s.parts = []part{{data: v}}
			}
		default:
			s.scalar = scalarValue(typ, value)
		}
	case want == protowire.BytesType:
		if typ != want {
			return nil
		}
		v, _ := protowire.ConsumeBytes(value)
		s.parts = append(s.parts, part{data: v, base: pos + len(value) - len(v)})
	case typ == want:
		s.nums = append(s.nums, scalarValue(typ, value))
	case typ == protowire.BytesType:
		v, _ := protowire.ConsumeBytes(value)
		nums, err := unpack(want, v, pos+len(value)-len(v))
		if err != nil {
			return err
		}
		s.nums = append(s.nums, nums...)
	default:
		return nil
	}
	s.present = true
	return nil
}

func scalarValue(typ protowire.Type, value []byte) uint64 {
	switch typ {
	case protowire.Fixed32Type:
		v, _ := protowire.ConsumeFixed32(value)
		return uint64(v)
	case protowire.Fixed64Type:
		v, _ := protowire.ConsumeFixed64(value)
		return v
	default:
		v, _ := protowire.ConsumeVarint(value)
		return v
	}
}

// unpack 解开 packed 数组
func unpack(typ protowire.Type, data []byte, base int) ([]uint64, error) {
	var out []uint64
	pos := 0
	for pos < len(data) {
		var v uint64
		var n int
		switch typ {
		case protowire.Fixed32Type:
			var f uint32
			f, n = protowire.ConsumeFixed32(data[pos:])
			v = uint64(f)
		case protowire.Fixed64Type:
			v, n = protowire.ConsumeFixed64(data[pos:])
		default:
			v, n = protowire.ConsumeVarint(data[pos:])
		}
		if n < 0 {
			return nil, &syntaxError{pos: base + pos, msg: "packed: " + protowire.ParseError(n).Error()}
		}
		out = append(out, v)
		pos += n
	}
	return out, nil
}

// merged 结构体多次出现时拼接各段，等价于 protobuf 的合并语义
func merged(parts []part) part {
	if len(parts) == 1 {
		return parts[0]
	}
	var data []byte
	for _, pt := range parts {
		data = append(data, pt.data...)
	}
	return part{data: data, base: parts[0].base}
}

func (p *Parser) emit(fd *metadata.FieldDescriptor, s *slot) error {
	v := p.visitor
	switch fd.Kind {
	case metadata.TypeStruct:
		sub, ok := p.reg.FindStruct(fd.TypeName)
		if !ok {
			return nil
		}
		pt := merged(s.parts)
		v.EnterStruct(fd)
		if err := p.parseMessage(sub, pt.data, pt.base); err != nil {
			return err
		}
		v.ExitStruct(fd)
	case metadata.TypeArrayStruct:
		sub, ok := p.reg.FindStruct(fd.TypeName)
		if !ok {
			return nil
		}
		elem := fd.Element()
		v.EnterArrayStruct(fd)
		for _, pt := range s.parts {
			v.EnterStruct(elem)
			if err := p.parseMessage(sub, pt.data, pt.base); err != nil {
				return err
			}
			v.ExitStruct(elem)
		}
		v.ExitArrayStruct(fd)
	case metadata.TypeString:
		v.EnterString(fd, string(s.parts[0].data))
	case metadata.TypeBytes:
		v.EnterBytes(fd, s.parts[0].data)
	case metadata.TypeArrayString:
		out := make([]string, len(s.parts))
		for i, pt := range s.parts {
			out[i] = string(pt.data)
		}
		v.EnterArrayString(fd, out)
	case metadata.TypeArrayBytes:
		out := make([][]byte, len(s.parts))
		for i, pt := range s.parts {
			out[i] = pt.data
		}
		v.EnterArrayBytes(fd, out)
	default:
		if fd.Kind.IsArray() {
			emitArray(v, fd, s.nums)
		} else {
			emitScalar(v, fd, s.scalar)
		}
	}
	return nil
}

func emitScalar(v serialize.Visitor, fd *metadata.FieldDescriptor, x uint64) {
	switch fd.Kind {
	case metadata.TypeBool:
		v.EnterBool(fd, x != 0)
	case metadata.TypeInt8:
		v.EnterInt8(fd, int8(x))
	case metadata.TypeUInt8:
		v.EnterUInt8(fd, uint8(x))
	case metadata.TypeInt16:
		v.EnterInt16(fd, int16(x))
	case metadata.TypeUInt16:
		v.EnterUInt16(fd, uint16(x))
	case metadata.TypeInt32:
		v.EnterInt32(fd, int32(x))
	case metadata.TypeUInt32:
		v.EnterUInt32(fd, uint32(x))
	case metadata.TypeInt64:
		v.EnterInt64(fd, int64(x))
	case metadata.TypeUInt64:
		v.EnterUInt64(fd, x)
	case metadata.TypeFloat32:
		v.EnterFloat32(fd, math.Float32frombits(uint32(x)))
	case metadata.TypeFloat64:
		v.EnterFloat64(fd, math.Float64frombits(x))
	case metadata.TypeEnum:
		v.EnterEnum(fd, int32(x))
	}
}

func convert[T int8 | uint8 | int16 | uint16 | int32 | uint32 | int64](xs []uint64) []T {
	out := make([]T, len(xs))
	for i, x := range xs {
		out[i] = T(x)
	}
	return out
}

func emitArray(v serialize.Visitor, fd *metadata.FieldDescriptor, xs []uint64) {
	switch fd.Kind {
	case metadata.TypeArrayBool:
		out := make([]bool, len(xs))
		for i, x := range xs {
			out[i] = x != 0
		}
		v.EnterArrayBool(fd, out)
	case metadata.TypeArrayInt8:
		v.EnterArrayInt8(fd, convert[int8](xs))
	case metadata.TypeArrayUInt8:
		v.EnterArrayUInt8(fd, convert[uint8](xs))
	case metadata.TypeArrayInt16:
		v.EnterArrayInt16(fd, convert[int16](xs))
	case metadata.TypeArrayUInt16:
		v.EnterArrayUInt16(fd, convert[uint16](xs))
	case metadata.TypeArrayInt32:
		v.EnterArrayInt32(fd, convert[int32](xs))
	case metadata.TypeArrayUInt32:
		v.EnterArrayUInt32(fd, convert[uint32](xs))
	case metadata.TypeArrayInt64:
		v.EnterArrayInt64(fd, convert[int64](xs))
	case metadata.TypeArrayUInt64:
		v.EnterArrayUInt64(fd, xs)
	case metadata.TypeArrayFloat32:
		out := make([]float32, len(xs))
		for i, x := range xs {
			out[i] = math.Float32frombits(uint32(x))
		}
		v.EnterArrayFloat32(fd, out)
	case metadata.TypeArrayFloat64:
		out := make([]float64, len(xs))
		for i, x := range xs {
			out[i] = math.Float64frombits(x)
		}
		v.EnterArrayFloat64(fd, out)
	case metadata.TypeArrayEnum:
		v.EnterArrayEnum(fd, convert[int32](xs))
	}
}
