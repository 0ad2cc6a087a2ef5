package serializestruct

import (
	"fmt"
	"reflect"

	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

// Parser 按声明顺序遍历结构体实例，产生访问者事件
type Parser struct {
	reg     *metadata.Registry
	visitor serialize.Visitor
}

// NewParser 创建结构体解析器
func NewParser(reg *metadata.Registry, visitor serialize.Visitor) *Parser {
	return &Parser{reg: reg, visitor: visitor}
}

// ParseStruct 遍历 s 的全部字段
func (p *Parser) ParseStruct(s Struct) error {
	typeName := s.TypeName()
	stru, ok := p.reg.FindStruct(typeName)
	if !ok {
		p.visitor.NotifyError(nil, 0, "typename not found: "+typeName)
		p.visitor.Finished()
		return fmt.Errorf("serializestruct.Parser %s: %w", typeName, serialize.ErrUnknownType)
	}
	rv := reflect.ValueOf(s)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		p.visitor.NotifyError(nil, 0, "not a struct: "+typeName)
		p.visitor.Finished()
		return fmt.Errorf("serializestruct.Parser %s: %w", typeName, ErrNotStructPtr)
	}

	root := metadata.RootField(typeName)
	p.visitor.EnterStruct(root)
	p.walk(stru, rv)
	p.visitor.ExitStruct(root)
	p.visitor.Finished()
	return nil
}

func (p *Parser) walk(stru *metadata.StructDescriptor, rv reflect.Value) {
	info := infoOf(rv.Type())
	for _, fd := range stru.Fields {
		fv, ok := info.lookup(rv, fd.Name)
		if !ok {
			continue
		}
		p.field(fd, fv)
	}
}

func (p *Parser) field(fd *metadata.FieldDescriptor, fv reflect.Value) {
	v := p.visitor
	switch fd.Kind {
	case metadata.TypeStruct:
		sv, ok := deref(fv)
		if !ok {
			return
		}
		sub, ok := p.reg.FindStruct(fd.TypeName)
		if !ok {
			return
		}
		v.EnterStruct(fd)
		p.walk(sub, sv)
		v.ExitStruct(fd)
	case metadata.TypeArrayStruct:
		if fv.Kind() != reflect.Slice {
			return
		}
		sub, ok := p.reg.FindStruct(fd.TypeName)
		if !ok {
			return
		}
		elemField := fd.Element()
		v.EnterArrayStruct(fd)
		for i := 0; i < fv.Len(); i++ {
			ev, ok := deref(fv.Index(i))
			if !ok {
				continue
			}
			v.EnterStruct(elemField)
			p.walk(sub, ev)
			v.ExitStruct(elemField)
		}
		v.ExitArrayStruct(fd)
	case metadata.TypeBool:
		if b, ok := asBool(fv); ok {
			v.EnterBool(fd, b)
		}
	case metadata.TypeInt8:
		if n, ok := asInt(fv); ok {
			v.EnterInt8(fd, int8(n))
		}
	case metadata.TypeUInt8:
		if n, ok := asUint(fv); ok {
			v.EnterUInt8(fd, uint8(n))
		}
	case metadata.TypeInt16:
		if n, ok := asInt(fv); ok {
			v.EnterInt16(fd, int16(n))
		}
	case metadata.TypeUInt16:
		if n, ok := asUint(fv); ok {
			v.EnterUInt16(fd, uint16(n))
		}
	case metadata.TypeInt32:
		if n, ok := asInt(fv); ok {
			v.EnterInt32(fd, int32(n))
		}
	case metadata.TypeUInt32:
		if n, ok := asUint(fv); ok {
			v.EnterUInt32(fd, uint32(n))
		}
	case metadata.TypeInt64:
		if n, ok := asInt(fv); ok {
			v.EnterInt64(fd, n)
		}
	case metadata.TypeUInt64:
		if n, ok := asUint(fv); ok {
			v.EnterUInt64(fd, n)
		}
	case metadata.TypeFloat32:
		if f, ok := asFloat(fv); ok {
			v.EnterFloat32(fd, float32(f))
		}
	case metadata.TypeFloat64:
		if f, ok := asFloat(fv); ok {
			v.EnterFloat64(fd, f)
		}
	case metadata.TypeString:
		if s, ok := asString(fv); ok {
			v.EnterString(fd, s)
		}
	case metadata.TypeBytes:
		if b, ok := asBytes(fv); ok {
			v.EnterBytes(fd, b)
		}
	case metadata.TypeEnum:
		if n, ok := asInt(fv); ok {
			v.EnterEnum(fd, int32(n))
		}
	default:
		if fd.Kind.IsArray() && fv.Kind() == reflect.Slice {
			p.array(fd, fv)
		}
	}
}

func (p *Parser) array(fd *metadata.FieldDescriptor, fv reflect.Value) {
	v := p.visitor
	switch fd.Kind {
	case metadata.TypeArrayBool:
		out := make([]bool, fv.Len())
		for i := range out {
			out[i], _ = asBool(fv.Index(i))
		}
		v.EnterArrayBool(fd, out)
	case metadata.TypeArrayInt8:
		v.EnterArrayInt8(fd, intSlice[int8](fv))
	case metadata.TypeArrayUInt8:
		v.EnterArrayUInt8(fd, uintSlice[uint8](fv))
	case metadata.TypeArrayInt16:
		v.EnterArrayInt16(fd, intSlice[int16](fv))
	case metadata.TypeArrayUInt16:
		v.EnterArrayUInt16(fd, uintSlice[uint16](fv))
	case metadata.TypeArrayInt32:
		v.EnterArrayInt32(fd, intSlice[int32](fv))
	case metadata.TypeArrayUInt32:
		v.EnterArrayUInt32(fd, uintSlice[uint32](fv))
	case metadata.TypeArrayInt64:
		v.EnterArrayInt64(fd, intSlice[int64](fv))
	case metadata.TypeArrayUInt64:
		v.EnterArrayUInt64(fd, uintSlice[uint64](fv))
	case metadata.TypeArrayFloat32:
		v.EnterArrayFloat32(fd, floatSlice[float32](fv))
	case metadata.TypeArrayFloat64:
		v.EnterArrayFloat64(fd, floatSlice[float64](fv))
	case metadata.TypeArrayEnum:
		v.EnterArrayEnum(fd, intSlice[int32](fv))
	case metadata.TypeArrayString:
		out := make([]string, fv.Len())
		for i := range out {
			out[i], _ = asString(fv.Index(i))
		}
		v.EnterArrayString(fd, out)
	case metadata.TypeArrayBytes:
		out := make([][]byte, fv.Len())
		for i := range out {
			out[i], _ = asBytes(fv.Index(i))
		}
		v.EnterArrayBytes(fd, out)
	}
}

// deref 解开指针，nil 指针视为缺省
func deref(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct
}

func asBool(v reflect.Value) (bool, bool) {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() != 0, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() != 0, true
	}
	return false, false
}

func asInt(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return int64(v.Float()), true
	case reflect.Bool:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asUint(v reflect.Value) (uint64, bool) {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), true
	}
	n, ok := asInt(v)
	return uint64(n), ok
}

func asFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	n, ok := asInt(v)
	return float64(n), ok
}

func asString(v reflect.Value) (string, bool) {
	switch {
	case v.Kind() == reflect.String:
		return v.String(), true
	case isByteSlice(v.Type()):
		return string(v.Bytes()), true
	}
	return "", false
}

func asBytes(v reflect.Value) ([]byte, bool) {
	switch {
	case isByteSlice(v.Type()):
		return v.Bytes(), true
	case v.Kind() == reflect.String:
		return []byte(v.String()), true
	}
	return nil, false
}

func isByteSlice(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func intSlice[T int8 | int16 | int32 | int64](v reflect.Value) []T {
	out := make([]T, v.Len())
	for i := range out {
		n, _ := asInt(v.Index(i))
		out[i] = T(n)
	}
	return out
}

func uintSlice[T uint8 | uint16 | uint32 | uint64](v reflect.Value) []T {
	out := make([]T, v.Len())
	for i := range out {
		n, _ := asUint(v.Index(i))
		out[i] = T(n)
	}
	return out
}

func floatSlice[T float32 | float64](v reflect.Value) []T {
	out := make([]T, v.Len())
	for i := range out {
		f, _ := asFloat(v.Index(i))
		out[i] = T(f)
	}
	return out
}
