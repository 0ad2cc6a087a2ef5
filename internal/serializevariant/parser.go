package serializevariant

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

// Parser 按 schema 遍历动态树并发出访问者事件
//
// 结构体可以是 map[string]any 或键为字符串的 map[any]any（CBOR 默认解码结果），
// 数组可以是 []any 或任意切片。标量经 serialize.Converter 转为字段类型，不认识的键被忽略。
type Parser struct {
	reg     *metadata.Registry
	visitor serialize.Visitor
	conv    *serialize.Converter
	root    any
}

var _ serialize.Parser = (*Parser)(nil)

// NewParser 创建遍历 root 的解析器
func NewParser(reg *metadata.Registry, visitor serialize.Visitor, root any) *Parser {
	return &Parser{reg: reg, visitor: visitor, conv: serialize.NewConverter(visitor), root: root}
}

// ParseStruct 遍历根结构体，返回值总是 0
func (p *Parser) ParseStruct(typeName string) (int, error) {
	stru, ok := p.reg.FindStruct(typeName)
	if !ok {
		p.visitor.NotifyError(nil, 0, "typename not found: "+typeName)
		p.visitor.Finished()
		return -1, fmt.Errorf("serializevariant.Parser %s: %w", typeName, serialize.ErrUnknownType)
	}
	m, ok := asMap(p.root)
	if !ok {
		msg := fmt.Sprintf("struct expected, got %T", p.root)
		p.visitor.NotifyError(nil, 0, msg)
		p.visitor.Finished()
		return -1, fmt.Errorf("serializevariant.Parser: %w: %s", serialize.ErrSyntax, msg)
	}
	root := metadata.RootField(typeName)
	p.visitor.EnterStruct(root)
	p.parseStruct(stru, m)
	p.visitor.ExitStruct(root)
	p.visitor.Finished()
	return 0, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, e := range m {
			if ks, ok := k.(string); ok {
				out[ks] = e
			}
		}
		return out, true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func (p *Parser) parseStruct(stru *metadata.StructDescriptor, m map[string]any) {
	for _, fd := range stru.Fields {
		v, ok := m[fd.Name]
		if !ok || v == nil {
			continue
		}
		p.parseValue(fd, v)
	}
}

func (p *Parser) parseValue(fd *metadata.FieldDescriptor, v any) {
	switch fd.Kind {
	case metadata.TypeStruct:
		sub, ok := p.reg.FindStruct(fd.TypeName)
		m, isMap := asMap(v)
		if !ok || !isMap {
			return
		}
		p.visitor.EnterStruct(fd)
		p.parseStruct(sub, m)
		p.visitor.ExitStruct(fd)
	case metadata.TypeArrayStruct:
		sub, ok := p.reg.FindStruct(fd.TypeName)
		list, isList := asList(v)
		if !ok || !isList {
			return
		}
		elem := fd.Element()
		p.visitor.EnterArrayStruct(fd)
		for _, item := range list {
			if m, ok := asMap(item); ok {
				p.visitor.EnterStruct(elem)
				p.parseStruct(sub, m)
				p.visitor.ExitStruct(elem)
			}
		}
		p.visitor.ExitArrayStruct(fd)
	case metadata.TypeBytes:
		if b, ok := v.([]byte); ok {
			p.conv.EnterBytes(fd, b)
			return
		}
		p.scalar(fd, v)
	default:
		if fd.Kind.IsArray() {
			if _, isBytes := v.([]byte); !isBytes || fd.Kind == metadata.TypeArrayUInt8 {
				if list, ok := asList(v); ok {
					p.array(fd, list)
					return
				}
			}
		}
		p.scalar(fd, v)
	}
}

// scalar 以值的自然类型发出事件，由 Converter 转换为字段类型
func (p *Parser) scalar(fd *metadata.FieldDescriptor, v any) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		p.conv.EnterBool(fd, rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		p.conv.EnterInt64(fd, rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		p.conv.EnterUInt64(fd, rv.Uint())
	case reflect.Float32, reflect.Float64:
		p.conv.EnterFloat64(fd, rv.Float())
	case reflect.String:
		p.conv.EnterString(fd, rv.String())
	case reflect.Slice:
		if b, ok := v.([]byte); ok {
			p.conv.EnterBytes(fd, b)
		}
	}
}

func toInt64(v any) int64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return 1
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return int64(rv.Float())
	case reflect.String:
		if i, err := strconv.ParseInt(rv.String(), 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(rv.String(), 10, 64); err == nil {
			return int64(u)
		}
	}
	return 0
}

func toUint64(v any) uint64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f >= 0 {
			return uint64(f)
		}
	case reflect.String:
		if u, err := strconv.ParseUint(rv.String(), 10, 64); err == nil {
			return u
		}
	}
	return uint64(toInt64(v))
}

func toFloat64(v any) float64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.String:
		if f, err := strconv.ParseFloat(rv.String(), 64); err == nil {
			return f
		}
		return 0
	}
	return float64(toInt64(v))
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

func signed[T int8 | int16 | int32 | int64](list []any) []T {
	out := make([]T, len(list))
	for i, v := range list {
		out[i] = T(toInt64(v))
	}
	return out
}

func unsigned[T uint8 | uint16 | uint32 | uint64](list []any) []T {
	out := make([]T, len(list))
	for i, v := range list {
		out[i] = T(toUint64(v))
	}
	return out
}

func (p *Parser) array(fd *metadata.FieldDescriptor, list []any) {
	v := p.visitor
	switch fd.Kind {
	case metadata.TypeArrayBool:
		out := make([]bool, len(list))
		for i, e := range list {
			if b, ok := e.(bool); ok {
				out[i] = b
			} else {
				out[i] = toInt64(e) != 0
			}
		}
		v.EnterArrayBool(fd, out)
	case metadata.TypeArrayInt8:
		v.EnterArrayInt8(fd, signed[int8](list))
	case metadata.TypeArrayInt16:
		v.EnterArrayInt16(fd, signed[int16](list))
	case metadata.TypeArrayInt32:
		v.EnterArrayInt32(fd, signed[int32](list))
	case metadata.TypeArrayInt64:
		v.EnterArrayInt64(fd, signed[int64](list))
	case metadata.TypeArrayUInt8:
		v.EnterArrayUInt8(fd, unsigned[uint8](list))
	case metadata.TypeArrayUInt16:
		v.EnterArrayUInt16(fd, unsigned[uint16](list))
	case metadata.TypeArrayUInt32:
		v.EnterArrayUInt32(fd, unsigned[uint32](list))
	case metadata.TypeArrayUInt64:
		v.EnterArrayUInt64(fd, unsigned[uint64](list))
	case metadata.TypeArrayFloat32:
		out := make([]float32, len(list))
		for i, e := range list {
			out[i] = float32(toFloat64(e))
		}
		v.EnterArrayFloat32(fd, out)
	case metadata.TypeArrayFloat64:
		out := make([]float64, len(list))
		for i, e := range list {
			out[i] = toFloat64(e)
		}
		v.EnterArrayFloat64(fd, out)
	case metadata.TypeArrayString:
		out := make([]string, len(list))
		for i, e := range list {
			out[i] = toString(e)
		}
		v.EnterArrayString(fd, out)
	case metadata.TypeArrayBytes:
		out := make([][]byte, len(list))
		for i, e := range list {
			if b, ok := e.([]byte); ok {
				out[i] = b
			} else {
				out[i] = []byte(toString(e))
			}
		}
		v.EnterArrayBytes(fd, out)
	case metadata.TypeArrayEnum:
		p.arrayEnum(fd, list)
	}
}

// arrayEnum 含有枚举名时整体以枚举名发出
func (p *Parser) arrayEnum(fd *metadata.FieldDescriptor, list []any) {
	names := false
	for _, e := range list {
		if _, ok := e.(string); ok {
			names = true
			break
		}
	}
	if !names {
		p.visitor.EnterArrayEnum(fd, signed[int32](list))
		return
	}
	ed, _ := p.reg.FindEnum(fd.TypeName)
	out := make([]string, len(list))
	for i, e := range list {
		if s, ok := e.(string); ok {
			out[i] = s
			continue
		}
		if ed != nil {
			if name, ok := ed.NameOf(int32(toInt64(e))); ok {
				out[i] = name
				continue
			}
		}
		out[i] = toString(e)
	}
	p.visitor.EnterArrayEnumString(fd, out)
}
