// Package serialize 定义解析器与序列化器之间的访问者契约
//
// 解析器把输入转换成一串访问者事件，序列化器实现 Visitor 并把事件写成
// 目标格式。根结构体以 metadata.RootField 包围，Finished 总是最后一次调用。
package serialize

import (
	"errors"

	"github.com/helmut-steiner/finalmq/internal/metadata"
)

var (
	ErrUnknownType = errors.New("type name not found")
	ErrSyntax      = errors.New("syntax error")
)

// Visitor 接收解析事件
type Visitor interface {
	NotifyError(buf []byte, pos int, message string)
	Finished()

	EnterStruct(field *metadata.FieldDescriptor)
	ExitStruct(field *metadata.FieldDescriptor)
	EnterArrayStruct(field *metadata.FieldDescriptor)
	ExitArrayStruct(field *metadata.FieldDescriptor)

	EnterBool(field *metadata.FieldDescriptor, value bool)
	EnterInt8(field *metadata.FieldDescriptor, value int8)
	EnterUInt8(field *metadata.FieldDescriptor, value uint8)
	EnterInt16(field *metadata.FieldDescriptor, value int16)
	EnterUInt16(field *metadata.FieldDescriptor, value uint16)
	EnterInt32(field *metadata.FieldDescriptor, value int32)
	EnterUInt32(field *metadata.FieldDescriptor, value uint32)
	EnterInt64(field *metadata.FieldDescriptor, value int64)
	EnterUInt64(field *metadata.FieldDescriptor, value uint64)
	EnterFloat32(field *metadata.FieldDescriptor, value float32)
	EnterFloat64(field *metadata.FieldDescriptor, value float64)
	EnterString(field *metadata.FieldDescriptor, value string)
	EnterBytes(field *metadata.FieldDescriptor, value []byte)
	EnterEnum(field *metadata.FieldDescriptor, value int32)
	EnterEnumString(field *metadata.FieldDescriptor, value string)

	EnterArrayBool(field *metadata.FieldDescriptor, value []bool)
	EnterArrayInt8(field *metadata.FieldDescriptor, value []int8)
	EnterArrayUInt8(field *metadata.FieldDescriptor, value []uint8)
	EnterArrayInt16(field *metadata.FieldDescriptor, value []int16)
	EnterArrayUInt16(field *metadata.FieldDescriptor, value []uint16)
	EnterArrayInt32(field *metadata.FieldDescriptor, value []int32)
	EnterArrayUInt32(field *metadata.FieldDescriptor, value []uint32)
	EnterArrayInt64(field *metadata.FieldDescriptor, value []int64)
	EnterArrayUInt64(field *metadata.FieldDescriptor, value []uint64)
	EnterArrayFloat32(field *metadata.FieldDescriptor, value []float32)
	EnterArrayFloat64(field *metadata.FieldDescriptor, value []float64)
	EnterArrayString(field *metadata.FieldDescriptor, value []string)
	EnterArrayBytes(field *metadata.FieldDescriptor, value [][]byte)
	EnterArrayEnum(field *metadata.FieldDescriptor, value []int32)
	EnterArrayEnumString(field *metadata.FieldDescriptor, value []string)
}

// Parser 把一段输入按类型名解析为访问者事件，返回消耗的字节数
type Parser interface {
	ParseStruct(typeName string) (int, error)
}

// NopVisitor 所有事件均为空操作，可嵌入到只关心部分事件的访问者中
type NopVisitor struct{}

var _ Visitor = NopVisitor{}

func (NopVisitor) NotifyError([]byte, int, string)                          {}
func (NopVisitor) Finished()                                                {}
func (NopVisitor) EnterStruct(*metadata.FieldDescriptor)                    {}
func (NopVisitor) ExitStruct(*metadata.FieldDescriptor)                     {}
func (NopVisitor) EnterArrayStruct(*metadata.FieldDescriptor)               {}
func (NopVisitor) ExitArrayStruct(*metadata.FieldDescriptor)                {}
func (NopVisitor) EnterBool(*metadata.FieldDescriptor, bool)                {}
func (NopVisitor) EnterInt8(*metadata.FieldDescriptor, int8)                {}
func (NopVisitor) EnterUInt8(*metadata.FieldDescriptor, uint8)              {}
func (NopVisitor) EnterInt16(*metadata.FieldDescriptor, int16)              {}
func (NopVisitor) EnterUInt16(*metadata.FieldDescriptor, uint16)            {}
func (NopVisitor) EnterInt32(*metadata.FieldDescriptor, int32)              {}
func (NopVisitor) EnterUInt32(*metadata.FieldDescriptor, uint32)            {}
func (NopVisitor) EnterInt64(*metadata.FieldDescriptor, int64)              {}
func (NopVisitor) EnterUInt64(*metadata.FieldDescriptor, uint64)            {}
func (NopVisitor) EnterFloat32(*metadata.FieldDescriptor, float32)          {}
func (NopVisitor) EnterFloat64(*metadata.FieldDescriptor, float64)          {}
func (NopVisitor) EnterString(*metadata.FieldDescriptor, string)            {}
func (NopVisitor) EnterBytes(*metadata.FieldDescriptor, []byte)             {}
func (NopVisitor) EnterEnum(*metadata.FieldDescriptor, int32)               {}
func (NopVisitor) EnterEnumString(*metadata.FieldDescriptor, string)        {}
func (NopVisitor) EnterArrayBool(*metadata.FieldDescriptor, []bool)         {}
func (NopVisitor) EnterArrayInt8(*metadata.FieldDescriptor, []int8)         {}
func (NopVisitor) EnterArrayUInt8(*metadata.FieldDescriptor, []uint8)       {}
func (NopVisitor) EnterArrayInt16(*metadata.FieldDescriptor, []int16)       {}
func (NopVisitor) EnterArrayUInt16(*metadata.FieldDescriptor, []uint16)     {}
func (NopVisitor) EnterArrayInt32(*metadata.FieldDescriptor, []int32)       {}
func (NopVisitor) EnterArrayUInt32(*metadata.FieldDescriptor, []uint32)     {}
func (NopVisitor) EnterArrayInt64(*metadata.FieldDescriptor, []int64)       {}
func (NopVisitor) EnterArrayUInt64(*metadata.FieldDescriptor, []uint64)     {}
func (NopVisitor) EnterArrayFloat32(*metadata.FieldDescriptor, []float32)   {}
func (NopVisitor) EnterArrayFloat64(*metadata.FieldDescriptor, []float64)   {}
func (NopVisitor) EnterArrayString(*metadata.FieldDescriptor, []string)     {}
func (NopVisitor) EnterArrayBytes(*metadata.FieldDescriptor, [][]byte)      {}
func (NopVisitor) EnterArrayEnum(*metadata.FieldDescriptor, []int32)        {}
func (NopVisitor) EnterArrayEnumString(*metadata.FieldDescriptor, []string) {}
