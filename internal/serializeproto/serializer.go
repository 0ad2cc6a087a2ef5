// Package serializeproto 实现 protobuf 线格式的解析器与序列化器
//
// 字段号为声明序号加一。整数、bool、枚举用 varint（有符号数按 64 位符号扩展），
// float 用 fixed32，double 用 fixed64，string/bytes/结构体为长度前缀。
// 数值数组以 packed 形式写出，string/bytes/结构体数组逐元素重复写出。
package serializeproto

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/helmut-steiner/finalmq/internal/buffer"
	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

// Serializer 把访问者事件写成 protobuf 线格式
//
// 零值标量与空数组不写出。嵌套结构体先写入栈上的临时切片，退出时连同长度一起追加到父级。
type Serializer struct {
	reg   *metadata.Registry
	out   *buffer.Buffer
	stack [][]byte
}

var _ serialize.Visitor = (*Serializer)(nil)

// NewSerializer 创建写入 out 的序列化器
func NewSerializer(reg *metadata.Registry, out *buffer.Buffer) *Serializer {
	return &Serializer{reg: reg, out: out}
}

func fieldNumber(fd *metadata.FieldDescriptor) protowire.Number {
	return protowire.Number(fd.Index + 1)
}

// add 在当前结构体后追加
func (s *Serializer) add(fn func(b []byte) []byte) {
	if len(s.stack) == 0 {
		return
	}
	top := len(s.stack) - 1
	s.stack[top] = fn(s.stack[top])
}

func (s *Serializer) NotifyError([]byte, int, string) {}
func (s *Serializer) Finished()                       {}

func (s *Serializer) EnterStruct(*metadata.FieldDescriptor) {
	s.stack = append(s.stack, nil)
}

func (s *Serializer) ExitStruct(fd *metadata.FieldDescriptor) {
	if len(s.stack) == 0 {
		return
	}
	body := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if len(s.stack) == 0 {
		s.out.Write(body)
		return
	}
	s.add(func(b []byte) []byte {
		b = protowire.AppendTag(b, fieldNumber(fd), protowire.BytesType)
		return protowire.AppendBytes(b, body)
	})
}

func (s *Serializer) EnterArrayStruct(*metadata.FieldDescriptor) {}
func (s *Serializer) ExitArrayStruct(*metadata.FieldDescriptor)  {}

func (s *Serializer) varint(fd *metadata.FieldDescriptor, v uint64) {
	if v == 0 {
		return
	}
	s.add(func(b []byte) []byte {
		b = protowire.AppendTag(b, fieldNumber(fd), protowire.VarintType)
		return protowire.AppendVarint(b, v)
	})
}

func (s *Serializer) EnterBool(fd *metadata.FieldDescriptor, v bool) {
	s.varint(fd, protowire.EncodeBool(v))
}
func (s *Serializer) EnterInt8(fd *metadata.FieldDescriptor, v int8)   { s.varint(fd, uint64(int64(v))) }
func (s *Serializer) EnterUInt8(fd *metadata.FieldDescriptor, v uint8) { s.varint(fd, uint64(v)) }
func (s *Serializer) EnterInt16(fd *metadata.FieldDescriptor, v int16) {
	s.varint(fd, uint64(int64(v)))
}
func (s *Serializer) EnterUInt16(fd *metadata.FieldDescriptor, v uint16) { s.varint(fd, uint64(v)) }
func (s *Serializer) EnterInt32(fd *metadata.FieldDescriptor, v int32) {
	s.varint(fd, uint64(int64(v)))
}
func (s *Serializer) EnterUInt32(fd *metadata.FieldDescriptor, v uint32) { s.varint(fd, uint64(v)) }
func (s *Serializer) EnterInt64(fd *metadata.FieldDescriptor, v int64)   { s.varint(fd, uint64(v)) }
func (s *Serializer) EnterUInt64(fd *metadata.FieldDescriptor, v uint64) { s.varint(fd, v) }
func (s *Serializer) EnterEnum(fd *metadata.FieldDescriptor, v int32)    { s.varint(fd, uint64(int64(v))) }

func (s *Serializer) EnterEnumString(fd *metadata.FieldDescriptor, v string) {
	s.EnterEnum(fd, s.enumValue(fd, v))
}

func (s *Serializer) EnterFloat32(fd *metadata.FieldDescriptor, v float32) {
	bits := math.Float32bits(v)
	if bits == 0 {
		return
	}
	s.add(func(b []byte) []byte {
		b = protowire.AppendTag(b, fieldNumber(fd), protowire.Fixed32Type)
		return protowire.AppendFixed32(b, bits)
	})
}

func (s *Serializer) EnterFloat64(fd *metadata.FieldDescriptor, v float64) {
	bits := math.Float64bits(v)
	if bits == 0 {
		return
	}
	s.add(func(b []byte) []byte {
		b = protowire.AppendTag(b, fieldNumber(fd), protowire.Fixed64Type)
		return protowire.AppendFixed64(b, bits)
	})
}

func (s *Serializer) EnterString(fd *metadata.FieldDescriptor, v string) {
	if v == "" {
		return
	}
	s.add(func(b []byte) []byte {
		b = protowire.AppendTag(b, fieldNumber(fd), protowire.BytesType)
		return protowire.AppendString(b, v)
	})
}

func (s *Serializer) EnterBytes(fd *metadata.FieldDescriptor, v []byte) {
	if len(v) == 0 {
		return
	}
	s.add(func(b []byte) []byte {
		b = protowire.AppendTag(b, fieldNumber(fd), protowire.BytesType)
		return protowire.AppendBytes(b, v)
	})
}

// enumValue 未知枚举名写成枚举的默认值
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

// packed 写出 packed 数组，空数组不写
func packed[T any](s *Serializer, fd *metadata.FieldDescriptor, vs []T, elem func([]byte, T) []byte) {
	if len(vs) == 0 {
		return
	}
	s.add(func(b []byte) []byte {
		var body []byte
		for _, v := range vs {
			body = elem(body, v)
		}
		b = protowire.AppendTag(b, fieldNumber(fd), protowire.BytesType)
		return protowire.AppendBytes(b, body)
	})
}

func appendSigned[T int8 | int16 | int32 | int64](b []byte, v T) []byte {
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendUnsigned[T uint8 | uint16 | uint32 | uint64](b []byte, v T) []byte {
	return protowire.AppendVarint(b, uint64(v))
}

func (s *Serializer) EnterArrayBool(fd *metadata.FieldDescriptor, v []bool) {
	packed(s, fd, v, func(b []byte, e bool) []byte { return protowire.AppendVarint(b, protowire.EncodeBool(e)) })
}

func (s *Serializer) EnterArrayInt8(fd *metadata.FieldDescriptor, v []int8) {
	packed(s, fd, v, appendSigned[int8])
}

func (s *Serializer) EnterArrayUInt8(fd *metadata.FieldDescriptor, v []uint8) {
	packed(s, fd, v, appendUnsigned[uint8])
}

func (s *Serializer) EnterArrayInt16(fd *metadata.FieldDescriptor, v []int16) {
	packed(s, fd, v, appendSigned[int16])
}

func (s *Serializer) EnterArrayUInt16(fd *metadata.FieldDescriptor, v []uint16) {
	packed(s, fd, v, appendUnsigned[uint16])
}

func (s *Serializer) EnterArrayInt32(fd *metadata.FieldDescriptor, v []int32) {
	packed(s, fd, v, appendSigned[int32])
}

func (s *Serializer) EnterArrayUInt32(fd *metadata.FieldDescriptor, v []uint32) {
	packed(s, fd, v, appendUnsigned[uint32])
}

func (s *Serializer) EnterArrayInt64(fd *metadata.FieldDescriptor, v []int64) {
	packed(s, fd, v, appendSigned[int64])
}

func (s *Serializer) EnterArrayUInt64(fd *metadata.FieldDescriptor, v []uint64) {
	packed(s, fd, v, appendUnsigned[uint64])
}

func (s *Serializer) EnterArrayFloat32(fd *metadata.FieldDescriptor, v []float32) {
	packed(s, fd, v, func(b []byte, f float32) []byte { return protowire.AppendFixed32(b, math.Float32bits(f)) })
}

func (s *Serializer) EnterArrayFloat64(fd *metadata.FieldDescriptor, v []float64) {
	packed(s, fd, v, func(b []byte, f float64) []byte { return protowire.AppendFixed64(b, math.Float64bits(f)) })
}

func (s *Serializer) EnterArrayEnum(fd *metadata.FieldDescriptor, v []int32) {
	packed(s, fd, v, appendSigned[int32])
}

func (s *Serializer) EnterArrayEnumString(fd *metadata.FieldDescriptor, v []string) {
	values := make([]int32, len(v))
	for i, name := range v {
		values[i] = s.enumValue(fd, name)
	}
	s.EnterArrayEnum(fd, values)
}

func (s *Serializer) EnterArrayString(fd *metadata.FieldDescriptor, v []string) {
	s.add(func(b []byte) []byte {
		for _, e := range v {
			b = protowire.AppendTag(b, fieldNumber(fd), protowire.BytesType)
			b = protowire.AppendString(b, e)
		}
		return b
	})
}

func (s *Serializer) EnterArrayBytes(fd *metadata.FieldDescriptor, v [][]byte) {
	s.add(func(b []byte) []byte {
		for _, e := range v {
			b = protowire.AppendTag(b, fieldNumber(fd), protowire.BytesType)
			b = protowire.AppendBytes(b, e)
		}
		return b
	})
}
