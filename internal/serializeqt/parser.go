package serializeqt

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/helmut-steiner/finalmq/internal/buffer"
	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

const (
	maxDepth         = 256
	maxEmptyElements = 1 << 16
)

var (
	errOddString  = errors.New("odd utf-16 byte length")
	errNestedType = errors.New("nested type not found")
	errTooDeep    = errors.New("nesting too deep")
	errTooMany    = errors.New("too many empty struct elements")
)

// Parser 按 schema 顺序读取 QDataStream 数据
//
// 格式是位置相关的，无法跳过未知的嵌套类型；根结构体之后多余的字节被忽略。
type Parser struct {
	reg     *metadata.Registry
	visitor serialize.Visitor
	buf     []byte
	cur     *buffer.Cursor
	depth   int
}

var _ serialize.Parser = (*Parser)(nil)

// NewParser 创建解析 buf 的解析器
func NewParser(reg *metadata.Registry, visitor serialize.Visitor, buf []byte) *Parser {
	return &Parser{reg: reg, visitor: visitor, buf: buf, cur: buffer.NewCursor(buf)}
}

// ParseStruct 解析根结构体，返回其后的偏移量
func (p *Parser) ParseStruct(typeName string) (int, error) {
	stru, ok := p.reg.FindStruct(typeName)
	if !ok {
		p.visitor.NotifyError(p.buf, 0, "typename not found: "+typeName)
		p.visitor.Finished()
		return -1, fmt.Errorf("serializeqt.Parser %s: %w", typeName, serialize.ErrUnknownType)
	}
	root := metadata.RootField(typeName)
	p.visitor.EnterStruct(root)
	if err := p.parseStruct(stru); err != nil {
		p.visitor.NotifyError(p.buf, p.cur.Pos(), err.Error())
		p.visitor.Finished()
		return -1, fmt.Errorf("serializeqt.Parser: %w: %v", serialize.ErrSyntax, err)
	}
	p.visitor.ExitStruct(root)
	p.visitor.Finished()
	return p.cur.Pos(), nil
}

func (p *Parser) parseStruct(stru *metadata.StructDescriptor) error {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return errTooDeep
	}
	for _, fd := range stru.Fields {
		if err := p.parseField(fd); err != nil {
			return fmt.Errorf("%s.%s: %w", stru.TypeName, fd.Name, err)
		}
	}
	return nil
}

func (p *Parser) parseField(fd *metadata.FieldDescriptor) error {
	v := p.visitor
	c := p.cur
	switch fd.Kind {
	case metadata.TypeStruct:
		sub, ok := p.reg.FindStruct(fd.TypeName)
		if !ok {
			return fmt.Errorf("%w: %s", errNestedType, fd.TypeName)
		}
		v.EnterStruct(fd)
		if err := p.parseStruct(sub); err != nil {
			return err
		}
		v.ExitStruct(fd)
	case metadata.TypeArrayStruct:
		return p.parseArrayStruct(fd)
	case metadata.TypeBool:
		x, err := c.Uint8()
		if err != nil {
			return err
		}
		v.EnterBool(fd, x != 0)
	case metadata.TypeInt8:
		x, err := c.Uint8()
		if err != nil {
			return err
		}
		v.EnterInt8(fd, int8(x))
	case metadata.TypeUInt8:
		x, err := c.Uint8()
		if err != nil {
			return err
		}
		v.EnterUInt8(fd, x)
	case metadata.TypeInt16:
		x, err := c.Uint16BE()
		if err != nil {
			return err
		}
		v.EnterInt16(fd, int16(x))
	case metadata.TypeUInt16:
		x, err := c.Uint16BE()
		if err != nil {
			return err
		}
		v.EnterUInt16(fd, x)
	case metadata.TypeInt32:
		x, err := c.Uint32BE()
		if err != nil {
			return err
		}
		v.EnterInt32(fd, int32(x))
	case metadata.TypeUInt32:
		x, err := c.Uint32BE()
		if err != nil {
			return err
		}
		v.EnterUInt32(fd, x)
	case metadata.TypeInt64:
		x, err := c.Uint64BE()
		if err != nil {
			return err
		}
		v.EnterInt64(fd, int64(x))
	case metadata.TypeUInt64:
		x, err := c.Uint64BE()
		if err != nil {
			return err
		}
		v.EnterUInt64(fd, x)
	case metadata.TypeFloat32:
		x, err := p.readDouble()
		if err != nil {
			return err
		}
		v.EnterFloat32(fd, float32(x))
	case metadata.TypeFloat64:
		x, err := p.readDouble()
		if err != nil {
			return err
		}
		v.EnterFloat64(fd, x)
	case metadata.TypeString:
		s, err := p.readString()
		if err != nil {
			return err
		}
		v.EnterString(fd, s)
	case metadata.TypeBytes:
		b, err := p.readBytes()
		if err != nil {
			return err
		}
		v.EnterBytes(fd, b)
	case metadata.TypeEnum:
		x, err := c.Uint32BE()
		if err != nil {
			return err
		}
		v.EnterEnum(fd, int32(x))
	default:
		return p.parseArray(fd)
	}
	return nil
}

func (p *Parser) parseArrayStruct(fd *metadata.FieldDescriptor) error {
	sub, ok := p.reg.FindStruct(fd.TypeName)
	if !ok {
		return fmt.Errorf("%w: %s", errNestedType, fd.TypeName)
	}
	minSize := p.minSize(sub, 0)
	n, err := p.count(minSize)
	if err != nil {
		return err
	}
	// 零宽元素不消耗输入，只能按个数限制
	if minSize == 0 && n > maxEmptyElements {
		return fmt.Errorf("%w: %d elements", errTooMany, n)
	}
	elem := fd.Element()
	p.visitor.EnterArrayStruct(fd)
	for i := 0; i < n; i++ {
		p.visitor.EnterStruct(elem)
		if err := p.parseStruct(sub); err != nil {
			return err
		}
		p.visitor.ExitStruct(elem)
	}
	p.visitor.ExitArrayStruct(fd)
	return nil
}

func (p *Parser) readDouble() (float64, error) {
	x, err := p.cur.Uint64BE()
	return math.Float64frombits(x), err
}

func (p *Parser) readString() (string, error) {
	n, err := p.cur.Uint32BE()
	if err != nil || n == nullLength {
		return "", err
	}
	if n%2 != 0 {
		return "", errOddString
	}
	raw, err := p.cur.Next(int(n))
	if err != nil {
		return "", err
	}
	units := make([]uint16, n/2)
	for i := range units {
		units[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
	}
	return string(utf16.Decode(units)), nil
}

func (p *Parser) readBytes() ([]byte, error) {
	n, err := p.cur.Uint32BE()
	if err != nil || n == nullLength {
		return nil, err
	}
	return p.cur.Next(int(n))
}

// minSize 结构体编码的最小字节数
func (p *Parser) minSize(stru *metadata.StructDescriptor, depth int) int {
	if depth > maxDepth {
		return 0
	}
	size := 0
	for _, fd := range stru.Fields {
		if fd.Kind.IsArray() {
			size += 4
			continue
		}
		switch fd.Kind {
		case metadata.TypeBool, metadata.TypeInt8, metadata.TypeUInt8:
			size++
		case metadata.TypeInt16, metadata.TypeUInt16:
			size += 2
		case metadata.TypeInt64, metadata.TypeUInt64, metadata.TypeFloat32, metadata.TypeFloat64:
			size += 8
		case metadata.TypeStruct:
			if sub, ok := p.reg.FindStruct(fd.TypeName); ok {
				size += p.minSize(sub, depth+1)
			}
		default:
			size += 4
		}
	}
	return size
}

// count 读取数组长度，并按最小元素宽度检查剩余数据是否足够
func (p *Parser) count(minSize int) (int, error) {
	n, err := p.cur.Uint32BE()
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize) > uint64(p.cur.Remaining()) {
		return 0, fmt.Errorf("%w: array of %d elements", buffer.ErrShortBuffer, n)
	}
	return int(n), nil
}

func readArray[T any](p *Parser, size int, read func() (T, error)) ([]T, error) {
	n, err := p.count(size)
	if err != nil {
		return nil, err
	}
	out := make([]T, n)
	for i := range out {
		if out[i], err = read(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Parser) bitArray() ([]bool, error) {
	n, err := p.cur.Uint32BE()
	if err != nil {
		return nil, err
	}
	raw, err := p.cur.Next(int((uint64(n) + 7) / 8))
	if err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = raw[i/8]&(1<<(i%8)) != 0
	}
	return out, nil
}

func (p *Parser) parseArray(fd *metadata.FieldDescriptor) error {
	v := p.visitor
	c := p.cur
	var err error
	switch fd.Kind {
	case metadata.TypeArrayBool:
		var out []bool
		if out, err = p.bitArray(); err == nil {
			v.EnterArrayBool(fd, out)
		}
	case metadata.TypeArrayInt8:
		var out []int8
		if out, err = readArray(p, 1, func() (int8, error) { x, err := c.Uint8(); return int8(x), err }); err == nil {
			v.EnterArrayInt8(fd, out)
		}
	case metadata.TypeArrayUInt8:
		var out []uint8
		if out, err = readArray(p, 1, c.Uint8); err == nil {
			v.EnterArrayUInt8(fd, out)
		}
	case metadata.TypeArrayInt16:
		var out []int16
		if out, err = readArray(p, 2, func() (int16, error) { x, err := c.Uint16BE(); return int16(x), err }); err == nil {
			v.EnterArrayInt16(fd, out)
		}
	case metadata.TypeArrayUInt16:
		var out []uint16
		if out, err = readArray(p, 2, c.Uint16BE); err == nil {
			v.EnterArrayUInt16(fd, out)
		}
	case metadata.TypeArrayInt32:
		var out []int32
		if out, err = readArray(p, 4, func() (int32, error) { x, err := c.Uint32BE(); return int32(x), err }); err == nil {
			v.EnterArrayInt32(fd, out)
		}
	case metadata.TypeArrayUInt32:
		var out []uint32
		if out, err = readArray(p, 4, c.Uint32BE); err == nil {
			v.EnterArrayUInt32(fd, out)
		}
	case metadata.TypeArrayInt64:
		var out []int64
		if out, err = readArray(p, 8, func() (int64, error) { x, err := c.Uint64BE(); return int64(x), err }); err == nil {
			v.EnterArrayInt64(fd, out)
		}
	case metadata.TypeArrayUInt64:
		var out []uint64
		if out, err = readArray(p, 8, c.Uint64BE); err == nil {
			v.EnterArrayUInt64(fd, out)
		}
	case metadata.TypeArrayFloat32:
		var out []float32
		if out, err = readArray(p, 8, func() (float32, error) { x, err := p.readDouble(); return float32(x), err }); err == nil {
			v.EnterArrayFloat32(fd, out)
		}
	case metadata.TypeArrayFloat64:
		var out []float64
		if out, err = readArray(p, 8, p.readDouble); err == nil {
			v.EnterArrayFloat64(fd, out)
		}
	case metadata.TypeArrayString:
		var out []string
		if out, err = readArray(p, 4, p.readString); err == nil {
			v.EnterArrayString(fd, out)
		}
	case metadata.TypeArrayBytes:
		var out [][]byte
		if out, err = readArray(p, 4, p.readBytes); err == nil {
			v.EnterArrayBytes(fd, out)
		}
	case metadata.TypeArrayEnum:
		var out []int32
		if out, err = readArray(p, 4, func() (int32, error) { x, err := c.Uint32BE(); return int32(x), err }); err == nil {
			v.EnterArrayEnum(fd, out)
		}
	}
	return err
}
