// Package serializevariant 在访问者事件与动态树（map[string]any / []any）之间转换
//
// 动态树用于展示和导出（CBOR、YAML），与具体线格式无关。
package serializevariant

import (
	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

// Option 序列化选项
type Option func(*Serializer)

// WithEnumAsNumber 枚举写成 int32
func WithEnumAsNumber() Option {
	return func(s *Serializer) { s.enumAsString = false }
}

// Serializer 把访问者事件组装成 map[string]any
//
// 结构体为 map[string]any，结构体数组为 []any，标量数组保持事件中的切片类型。
type Serializer struct {
	reg          *metadata.Registry
	root         map[string]any
	stack        []any
	enumAsString bool
}

var _ serialize.Visitor = (*Serializer)(nil)

// NewSerializer 创建序列化器，结果通过 Root 获取
func NewSerializer(reg *metadata.Registry, opts ...Option) *Serializer {
	s := &Serializer{reg: reg, enumAsString: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root 返回根结构体，解析前为 nil
func (s *Serializer) Root() map[string]any { return s.root }

func (s *Serializer) NotifyError([]byte, int, string) {}
func (s *Serializer) Finished()                       {}

// add 把值放入当前容器，数组容器需要写回父级
func (s *Serializer) add(fd *metadata.FieldDescriptor, v any) {
	if len(s.stack) == 0 {
		return
	}
	switch cur := s.stack[len(s.stack)-1].(type) {
	case map[string]any:
		cur[fd.Name] = v
	case *[]any:
		*cur = append(*cur, v)
	}
}

func (s *Serializer) EnterStruct(fd *metadata.FieldDescriptor) {
	m := map[string]any{}
	if len(s.stack) == 0 {
		s.root = m
	} else {
		s.add(fd, m)
	}
	s.stack = append(s.stack, m)
}

func (s *Serializer) ExitStruct(*metadata.FieldDescriptor) { s.pop() }

func (s *Serializer) EnterArrayStruct(fd *metadata.FieldDescriptor) {
	list := &[]any{}
	s.stack = append(s.stack, list)
	if len(s.stack) >= 2 {
		if parent, ok := s.stack[len(s.stack)-2].(map[string]any); ok {
			parent[fd.Name] = list
		}
	}
}

// ExitArrayStruct 把指针换成最终的切片
func (s *Serializer) ExitArrayStruct(fd *metadata.FieldDescriptor) {
	if len(s.stack) < 2 {
		s.pop()
		return
	}
	list, ok := s.stack[len(s.stack)-1].(*[]any)
	s.pop()
	if !ok {
		return
	}
	if parent, ok := s.stack[len(s.stack)-1].(map[string]any); ok {
		parent[fd.Name] = *list
	}
}

func (s *Serializer) pop() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *Serializer) EnterBool(fd *metadata.FieldDescriptor, v bool)       { s.add(fd, v) }
func (s *Serializer) EnterInt8(fd *metadata.FieldDescriptor, v int8)       { s.add(fd, v) }
func (s *Serializer) EnterUInt8(fd *metadata.FieldDescriptor, v uint8)     { s.add(fd, v) }
func (s *Serializer) EnterInt16(fd *metadata.FieldDescriptor, v int16)     { s.add(fd, v) }
func (s *Serializer) EnterUInt16(fd *metadata.FieldDescriptor, v uint16)   { s.add(fd, v) }
func (s *Serializer) EnterInt32(fd *metadata.FieldDescriptor, v int32)     { s.add(fd, v) }
func (s *Serializer) EnterUInt32(fd *metadata.FieldDescriptor, v uint32)   { s.add(fd, v) }
func (s *Serializer) EnterInt64(fd *metadata.FieldDescriptor, v int64)     { s.add(fd, v) }
func (s *Serializer) EnterUInt64(fd *metadata.FieldDescriptor, v uint64)   { s.add(fd, v) }
func (s *Serializer) EnterFloat32(fd *metadata.FieldDescriptor, v float32) { s.add(fd, v) }
func (s *Serializer) EnterFloat64(fd *metadata.FieldDescriptor, v float64) { s.add(fd, v) }
func (s *Serializer) EnterString(fd *metadata.FieldDescriptor, v string)   { s.add(fd, v) }

func (s *Serializer) EnterBytes(fd *metadata.FieldDescriptor, v []byte) {
	s.add(fd, append([]byte{}, v...))
}

func (s *Serializer) EnterEnum(fd *metadata.FieldDescriptor, v int32) {
	if s.enumAsString {
		if ed, ok := s.reg.FindEnum(fd.TypeName); ok {
			if name, ok := ed.NameOf(v); ok {
				s.add(fd, name)
				return
			}
		}
	}
	s.add(fd, v)
}

func (s *Serializer) EnterEnumString(fd *metadata.FieldDescriptor, v string) {
	if s.enumAsString {
		s.add(fd, v)
		return
	}
	s.add(fd, s.enumValue(fd, v))
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

func (s *Serializer) EnterArrayBool(fd *metadata.FieldDescriptor, v []bool)       { s.add(fd, v) }
func (s *Serializer) EnterArrayInt8(fd *metadata.FieldDescriptor, v []int8)       { s.add(fd, v) }
func (s *Serializer) EnterArrayUInt8(fd *metadata.FieldDescriptor, v []uint8)     { s.add(fd, v) }
func (s *Serializer) EnterArrayInt16(fd *metadata.FieldDescriptor, v []int16)     { s.add(fd, v) }
func (s *Serializer) EnterArrayUInt16(fd *metadata.FieldDescriptor, v []uint16)   { s.add(fd, v) }
func (s *Serializer) EnterArrayInt32(fd *metadata.FieldDescriptor, v []int32)     { s.add(fd, v) }
func (s *Serializer) EnterArrayUInt32(fd *metadata.FieldDescriptor, v []uint32)   { s.add(fd, v) }
func (s *Serializer) EnterArrayInt64(fd *metadata.FieldDescriptor, v []int64)     { s.add(fd, v) }
func (s *Serializer) EnterArrayUInt64(fd *metadata.FieldDescriptor, v []uint64)   { s.add(fd, v) }
func (s *Serializer) EnterArrayFloat32(fd *metadata.FieldDescriptor, v []float32) { s.add(fd, v) }
func (s *Serializer) EnterArrayFloat64(fd *metadata.FieldDescriptor, v []float64) { s.add(fd, v) }
func (s *Serializer) EnterArrayString(fd *metadata.FieldDescriptor, v []string)   { s.add(fd, v) }
func (s *Serializer) EnterArrayBytes(fd *metadata.FieldDescriptor, v [][]byte)    { s.add(fd, v) }

func (s *Serializer) EnterArrayEnum(fd *metadata.FieldDescriptor, v []int32) {
	if !s.enumAsString {
		s.add(fd, v)
		return
	}
	ed, _ := s.reg.FindEnum(fd.TypeName)
	out := make([]any, len(v))
	for i, e := range v {
		out[i] = e
		if ed != nil {
			if name, ok := ed.NameOf(e); ok {
				out[i] = name
			}
		}
	}
	s.add(fd, out)
}

func (s *Serializer) EnterArrayEnumString(fd *metadata.FieldDescriptor, v []string) {
	if s.enumAsString {
		s.add(fd, v)
		return
	}
	out := make([]int32, len(v))
	for i, name := range v {
		out[i] = s.enumValue(fd, name)
	}
	s.add(fd, out)
}
