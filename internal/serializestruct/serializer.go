package serializestruct

import (
	"fmt"
	"reflect"

	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

type frame struct {
	v      reflect.Value
	info   *structInfo
	array  bool
	ignore bool
}

// Serializer 把访问者事件写入一个结构体实例
//
// Go 类型中不存在的字段以及未知的嵌套结构体会被整体忽略。
type Serializer struct {
	reg   *metadata.Registry
	root  reflect.Value
	stack []frame
	err   error
}

var _ serialize.Visitor = (*Serializer)(nil)

// NewSerializer 创建写入 target 的序列化器，target 必须是结构体指针
func NewSerializer(reg *metadata.Registry, target Struct) *Serializer {
	s := &Serializer{reg: reg}
	rv := reflect.ValueOf(target)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		s.root = rv.Elem()
	} else {
		s.err = fmt.Errorf("serializestruct.Serializer %T: %w", target, ErrNotStructPtr)
	}
	return s
}

// Err 返回解析过程中收到的第一个错误
func (s *Serializer) Err() error { return s.err }

func (s *Serializer) NotifyError(_ []byte, pos int, message string) {
	if s.err == nil {
		s.err = fmt.Errorf("offset %d: %s", pos, message)
	}
}

func (s *Serializer) Finished() { s.stack = s.stack[:0] }

func (s *Serializer) push(f frame) { s.stack = append(s.stack, f) }

func (s *Serializer) pop() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// current 返回当前结构体中与字段同名的 Go 字段
func (s *Serializer) current(fd *metadata.FieldDescriptor) (reflect.Value, bool) {
	if len(s.stack) == 0 {
		return reflect.Value{}, false
	}
	top := s.stack[len(s.stack)-1]
	if top.ignore || top.array {
		return reflect.Value{}, false
	}
	return top.info.lookup(top.v, fd.Name)
}

func (s *Serializer) EnterStruct(fd *metadata.FieldDescriptor) {
	if len(s.stack) == 0 {
		if !s.root.IsValid() {
			s.push(frame{ignore: true})
			return
		}
		s.push(frame{v: s.root, info: infoOf(s.root.Type())})
		return
	}
	top := s.stack[len(s.stack)-1]
	switch {
	case top.ignore:
		s.push(frame{ignore: true})
	case top.array:
		elemType := top.v.Type().Elem()
		if elemType.Kind() == reflect.Ptr {
			ptr := reflect.New(elemType.Elem())
			top.v.Set(reflect.Append(top.v, ptr))
			s.push(s.structFrame(ptr.Elem()))
			return
		}
		top.v.Set(reflect.Append(top.v, reflect.Zero(elemType)))
		s.push(s.structFrame(top.v.Index(top.v.Len() - 1)))
	default:
		fv, ok := top.info.lookup(top.v, fd.Name)
		if !ok {
			s.push(frame{ignore: true})
			return
		}
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				fv.Set(reflect.New(fv.Type().Elem()))
			}
			fv = fv.Elem()
		}
		s.push(s.structFrame(fv))
	}
}

func (s *Serializer) structFrame(v reflect.Value) frame {
	if v.Kind() != reflect.Struct || !v.CanSet() {
		return frame{ignore: true}
	}
	return frame{v: v, info: infoOf(v.Type())}
}

func (s *Serializer) ExitStruct(*metadata.FieldDescriptor) { s.pop() }

func (s *Serializer) EnterArrayStruct(fd *metadata.FieldDescriptor) {
	fv, ok := s.current(fd)
	if !ok || fv.Kind() != reflect.Slice || !fv.CanSet() {
		s.push(frame{ignore: true})
		return
	}
	et := fv.Type().Elem()
	if et.Kind() != reflect.Struct && !(et.Kind() == reflect.Ptr && et.Elem().Kind() == reflect.Struct) {
		s.push(frame{ignore: true})
		return
	}
	fv.Set(reflect.Zero(fv.Type()))
	s.push(frame{v: fv, array: true})
}

func (s *Serializer) ExitArrayStruct(*metadata.FieldDescriptor) { s.pop() }

func (s *Serializer) EnterBool(fd *metadata.FieldDescriptor, value bool) {
	if fv, ok := s.current(fd); ok {
		setBool(fv, value)
	}
}

func (s *Serializer) EnterInt8(fd *metadata.FieldDescriptor, value int8) {
	s.setInt(fd, int64(value))
}

func (s *Serializer) EnterUInt8(fd *metadata.FieldDescriptor, value uint8) {
	s.setUint(fd, uint64(value))
}

func (s *Serializer) EnterInt16(fd *metadata.FieldDescriptor, value int16) {
	s.setInt(fd, int64(value))
}

func (s *Serializer) EnterUInt16(fd *metadata.FieldDescriptor, value uint16) {
	s.setUint(fd, uint64(value))
}

func (s *Serializer) EnterInt32(fd *metadata.FieldDescriptor, value int32) {
	s.setInt(fd, int64(value))
}

func (s *Serializer) EnterUInt32(fd *metadata.FieldDescriptor, value uint32) {
	s.setUint(fd, uint64(value))
}

func (s *Serializer) EnterInt64(fd *metadata.FieldDescriptor, value int64) {
	s.setInt(fd, value)
}

func (s *Serializer) EnterUInt64(fd *metadata.FieldDescriptor, value uint64) {
	s.setUint(fd, value)
}

func (s *Serializer) EnterFloat32(fd *metadata.FieldDescriptor, value float32) {
	if fv, ok := s.current(fd); ok {
		setFloat(fv, float64(value))
	}
}

func (s *Serializer) EnterFloat64(fd *metadata.FieldDescriptor, value float64) {
	if fv, ok := s.current(fd); ok {
		setFloat(fv, value)
	}
}

func (s *Serializer) EnterString(fd *metadata.FieldDescriptor, value string) {
	if fv, ok := s.current(fd); ok {
		setString(fv, value)
	}
}

func (s *Serializer) EnterBytes(fd *metadata.FieldDescriptor, value []byte) {
	if fv, ok := s.current(fd); ok {
		setBytes(fv, value)
	}
}

func (s *Serializer) EnterEnum(fd *metadata.FieldDescriptor, value int32) {
	s.setInt(fd, int64(value))
}

func (s *Serializer) EnterEnumString(fd *metadata.FieldDescriptor, value string) {
	s.setInt(fd, int64(s.enumValue(fd, value)))
}

func (s *Serializer) EnterArrayBool(fd *metadata.FieldDescriptor, value []bool) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setBool(ev, value[i]) })
}

func (s *Serializer) EnterArrayInt8(fd *metadata.FieldDescriptor, value []int8) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setInt(ev, int64(value[i])) })
}

func (s *Serializer) EnterArrayUInt8(fd *metadata.FieldDescriptor, value []uint8) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setUint(ev, uint64(value[i])) })
}

func (s *Serializer) EnterArrayInt16(fd *metadata.FieldDescriptor, value []int16) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setInt(ev, int64(value[i])) })
}

func (s *Serializer) EnterArrayUInt16(fd *metadata.FieldDescriptor, value []uint16) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setUint(ev, uint64(value[i])) })
}

func (s *Serializer) EnterArrayInt32(fd *metadata.FieldDescriptor, value []int32) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setInt(ev, int64(value[i])) })
}

func (s *Serializer) EnterArrayUInt32(fd *metadata.FieldDescriptor, value []uint32) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setUint(ev, uint64(value[i])) })
}

func (s *Serializer) EnterArrayInt64(fd *metadata.FieldDescriptor, value []int64) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setInt(ev, value[i]) })
}

func (s *Serializer) EnterArrayUInt64(fd *metadata.FieldDescriptor, value []uint64) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setUint(ev, value[i]) })
}

func (s *Serializer) EnterArrayFloat32(fd *metadata.FieldDescriptor, value []float32) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setFloat(ev, float64(value[i])) })
}

func (s *Serializer) EnterArrayFloat64(fd *metadata.FieldDescriptor, value []float64) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setFloat(ev, value[i]) })
}

func (s *Serializer) EnterArrayString(fd *metadata.FieldDescriptor, value []string) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setString(ev, value[i]) })
}

func (s *Serializer) EnterArrayBytes(fd *metadata.FieldDescriptor, value [][]byte) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setBytes(ev, value[i]) })
}

func (s *Serializer) EnterArrayEnum(fd *metadata.FieldDescriptor, value []int32) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setInt(ev, int64(value[i])) })
}

func (s *Serializer) EnterArrayEnumString(fd *metadata.FieldDescriptor, value []string) {
	setSlice(s, fd, len(value), func(ev reflect.Value, i int) { setInt(ev, int64(s.enumValue(fd, value[i]))) })
}

// enumValue 解析枚举名，未知名称取枚举的默认值
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

func (s *Serializer) setInt(fd *metadata.FieldDescriptor, value int64) {
	if fv, ok := s.current(fd); ok {
		setInt(fv, value)
	}
}

func (s *Serializer) setUint(fd *metadata.FieldDescriptor, value uint64) {
	if fv, ok := s.current(fd); ok {
		setUint(fv, value)
	}
}

func setSlice(s *Serializer, fd *metadata.FieldDescriptor, n int, set func(ev reflect.Value, i int)) {
	fv, ok := s.current(fd)
	if !ok || fv.Kind() != reflect.Slice || !fv.CanSet() {
		return
	}
	if n == 0 {
		fv.Set(reflect.Zero(fv.Type()))
		return
	}
	out := reflect.MakeSlice(fv.Type(), n, n)
	for i := 0; i < n; i++ {
		set(out.Index(i), i)
	}
	fv.Set(out)
}

func setBool(fv reflect.Value, v bool) {
	if !fv.CanSet() {
		return
	}
	switch fv.Kind() {
	case reflect.Bool:
		fv.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n int64
		if v {
			n = 1
		}
		setInt(fv, n)
	}
}

func setInt(fv reflect.Value, v int64) {
	if !fv.CanSet() {
		return
	}
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fv.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fv.SetUint(uint64(v))
	case reflect.Float32, reflect.Float64:
		fv.SetFloat(float64(v))
	case reflect.Bool:
		fv.SetBool(v != 0)
	}
}

func setUint(fv reflect.Value, v uint64) {
	if !fv.CanSet() {
		return
	}
	switch fv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fv.SetUint(v)
	case reflect.Float32, reflect.Float64:
		fv.SetFloat(float64(v))
	default:
		setInt(fv, int64(v))
	}
}

func setFloat(fv reflect.Value, v float64) {
	if !fv.CanSet() {
		return
	}
	switch fv.Kind() {
	case reflect.Float32, reflect.Float64:
		fv.SetFloat(v)
	default:
		setInt(fv, int64(v))
	}
}

func setString(fv reflect.Value, v string) {
	if !fv.CanSet() {
		return
	}
	switch {
	case fv.Kind() == reflect.String:
		fv.SetString(v)
	case isByteSlice(fv.Type()):
		fv.SetBytes([]byte(v))
	}
}

func setBytes(fv reflect.Value, v []byte) {
	if !fv.CanSet() {
		return
	}
	switch {
	case isByteSlice(fv.Type()):
		if len(v) == 0 {
			fv.SetBytes(nil)
			return
		}
		fv.SetBytes(append([]byte{}, v...))
	case fv.Kind() == reflect.String:
		fv.SetString(string(v))
	}
}
