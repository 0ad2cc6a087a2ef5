// Package testschema 提供测试用的 test.* 类型及其 schema
package testschema

import (
	_ "embed"
	"fmt"

	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serializestruct"
)

//go:embed test.fmq.yaml
var schema []byte

// Foo test.Foo 枚举
type Foo int32

const (
	FooWorld  Foo = 0
	FooHello  Foo = -2
	FooWorld2 Foo = 1
)

type TestBool struct {
	Value bool `fmq:"value"`
}

type TestInt8 struct {
	Value int8 `fmq:"value"`
}

type TestUInt8 struct {
	Value uint8 `fmq:"value"`
}

type TestInt16 struct {
	Value int16 `fmq:"value"`
}

type TestUInt16 struct {
	Value uint16 `fmq:"value"`
}

type TestInt32 struct {
	Value int32 `fmq:"value"`
}

type TestUInt32 struct {
	Value uint32 `fmq:"value"`
}

type TestInt64 struct {
	Value int64 `fmq:"value"`
}

type TestUInt64 struct {
	Value uint64 `fmq:"value"`
}

type TestFloat struct {
	Value float32 `fmq:"value"`
}

type TestDouble struct {
	Value float64 `fmq:"value"`
}

type TestString struct {
	Value string `fmq:"value"`
}

type TestBytes struct {
	Value []byte `fmq:"value"`
}

type TestEnum struct {
	Value Foo `fmq:"value"`
}

type TestStruct struct {
	StructInt32  TestInt32  `fmq:"struct_int32"`
	StructString TestString `fmq:"struct_string"`
	LastValue    uint32     `fmq:"last_value"`
}

type TestArrayBool struct {
	Value []bool `fmq:"value"`
}

type TestArrayInt8 struct {
	Value []int8 `fmq:"value"`
}

type TestArrayUInt8 struct {
	Value []uint8 `fmq:"value"`
}

type TestArrayInt16 struct {
	Value []int16 `fmq:"value"`
}

type TestArrayUInt16 struct {
	Value []uint16 `fmq:"value"`
}

type TestArrayInt32 struct {
	Value []int32 `fmq:"value"`
}

type TestArrayUInt32 struct {
	Value []uint32 `fmq:"value"`
}

type TestArrayInt64 struct {
	Value []int64 `fmq:"value"`
}

type TestArrayUInt64 struct {
	Value []uint64 `fmq:"value"`
}

type TestArrayFloat struct {
	Value []float32 `fmq:"value"`
}

type TestArrayDouble struct {
	Value []float64 `fmq:"value"`
}

type TestArrayString struct {
	Value []string `fmq:"value"`
}

type TestArrayBytes struct {
	Value [][]byte `fmq:"value"`
}

type TestArrayEnum struct {
	Value []Foo `fmq:"value"`
}

type TestArrayStruct struct {
	Value     []TestStruct `fmq:"value"`
	LastValue uint32       `fmq:"last_value"`
}

type TestRequest struct {
	Name  string `fmq:"name"`
	Value int32  `fmq:"value"`
	Foo   Foo    `fmq:"foo"`
}

type TestReply struct {
	Text    string  `fmq:"text"`
	Numbers []int64 `fmq:"numbers"`
}

func (*TestBool) TypeName() string        { return "test.TestBool" }
func (*TestInt8) TypeName() string        { return "test.TestInt8" }
func (*TestUInt8) TypeName() string       { return "test.TestUInt8" }
func (*TestInt16) TypeName() string       { return "test.TestInt16" }
func (*TestUInt16) TypeName() string      { return "test.TestUInt16" }
func (*TestInt32) TypeName() string       { return "test.TestInt32" }
func (*TestUInt32) TypeName() string      { return "test.TestUInt32" }
func (*TestInt64) TypeName() string       { return "test.TestInt64" }
func (*TestUInt64) TypeName() string      { return "test.TestUInt64" }
func (*TestFloat) TypeName() string       { return "test.TestFloat" }
func (*TestDouble) TypeName() string      { return "test.TestDouble" }
func (*TestString) TypeName() string      { return "test.TestString" }
func (*TestBytes) TypeName() string       { return "test.TestBytes" }
func (*TestEnum) TypeName() string        { return "test.TestEnum" }
func (*TestStruct) TypeName() string      { return "test.TestStruct" }
func (*TestArrayBool) TypeName() string   { return "test.TestArrayBool" }
func (*TestArrayInt8) TypeName() string   { return "test.TestArrayInt8" }
func (*TestArrayUInt8) TypeName() string  { return "test.TestArrayUInt8" }
func (*TestArrayInt16) TypeName() string  { return "test.TestArrayInt16" }
func (*TestArrayUInt16) TypeName() string { return "test.TestArrayUInt16" }
func (*TestArrayInt32) TypeName() string  { return "test.TestArrayInt32" }
func (*TestArrayUInt32) TypeName() string { return "test.TestArrayUInt32" }
func (*TestArrayInt64) TypeName() string  { return "test.TestArrayInt64" }
func (*TestArrayUInt64) TypeName() string { return "test.TestArrayUInt64" }
func (*TestArrayFloat) TypeName() string  { return "test.TestArrayFloat" }
func (*TestArrayDouble) TypeName() string { return "test.TestArrayDouble" }
func (*TestArrayString) TypeName() string { return "test.TestArrayString" }
func (*TestArrayBytes) TypeName() string  { return "test.TestArrayBytes" }
func (*TestArrayEnum) TypeName() string   { return "test.TestArrayEnum" }
func (*TestArrayStruct) TypeName() string { return "test.TestArrayStruct" }
func (*TestRequest) TypeName() string     { return "test.TestRequest" }
func (*TestReply) TypeName() string       { return "test.TestReply" }

// All 返回全部测试类型的原型
func All() []serializestruct.Struct {
	return []serializestruct.Struct{
		&TestBool{},
		&TestInt8{},
		&TestUInt8{},
		&TestInt16{},
		&TestUInt16{},
		&TestInt32{},
		&TestUInt32{},
		&TestInt64{},
		&TestUInt64{},
		&TestFloat{},
		&TestDouble{},
		&TestString{},
		&TestBytes{},
		&TestEnum{},
		&TestStruct{},
		&TestArrayBool{},
		&TestArrayInt8{},
		&TestArrayUInt8{},
		&TestArrayInt16{},
		&TestArrayUInt16{},
		&TestArrayInt32{},
		&TestArrayUInt32{},
		&TestArrayInt64{},
		&TestArrayUInt64{},
		&TestArrayFloat{},
		&TestArrayDouble{},
		&TestArrayString{},
		&TestArrayBytes{},
		&TestArrayEnum{},
		&TestArrayStruct{},
		&TestRequest{},
		&TestReply{},
	}
}

// Register 把测试 schema 注册到 reg，并把 Go 类型注册到 factory（可为 nil）
func Register(reg *metadata.Registry, factory *serializestruct.Factory) error {
	if err := metadata.LoadSchema(reg, schema); err != nil {
		return fmt.Errorf("testschema.Register: %w", err)
	}
	if factory == nil {
		return nil
	}
	for _, proto := range All() {
		if err := factory.RegisterType(proto); err != nil {
			return fmt.Errorf("testschema.Register: %w", err)
		}
	}
	return nil
}

// MustRegistry 返回已注册并冻结的注册表和工厂
func MustRegistry() (*metadata.Registry, *serializestruct.Factory) {
	reg := metadata.NewRegistry()
	factory := serializestruct.NewFactory()
	if err := Register(reg, factory); err != nil {
		panic(err)
	}
	if err := reg.Freeze(); err != nil {
		panic(err)
	}
	factory.Freeze()
	return reg, factory
}
