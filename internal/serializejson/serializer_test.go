package serializejson

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmut-steiner/finalmq/internal/buffer"
	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serializestruct"
	"github.com/helmut-steiner/finalmq/internal/testschema"
)

func toJSON(t *testing.T, in serializestruct.Struct, opts ...Option) string {
	t.Helper()
	reg, _ := testschema.MustRegistry()
	out := buffer.New(64)
	require.NoError(t, serializestruct.NewParser(reg, NewSerializer(reg, out, opts...)).ParseStruct(in))
	return string(out.Bytes())
}

func TestSerializer_Output(t *testing.T) {
	tests := []struct {
		name string
		in   serializestruct.Struct
		want string
	}{
		{"bool", &testschema.TestBool{Value: true}, `{"value":true}`},
		{"int32", &testschema.TestInt32{Value: -2}, `{"value":-2}`},
		{"uint64", &testschema.TestUInt64{Value: math.MaxUint64}, `{"value":18446744073709551615}`},
		{"float", &testschema.TestFloat{Value: -1.1}, `{"value":-1.1}`},
		{"double", &testschema.TestDouble{Value: 0.5}, `{"value":0.5}`},
		{"nan", &testschema.TestDouble{Value: math.NaN()}, `{"value":"NaN"}`},
		{"inf", &testschema.TestDouble{Value: math.Inf(-1)}, `{"value":"-Infinity"}`},
		{"string", &testschema.TestString{Value: "Hello \"W\"\n\x01ö"}, `{"value":"Hello \"W\"\n\u0001ö"}`},
		{"invalid utf8", &testschema.TestString{Value: "a\xffb\xe4\xb8"}, "{\"value\":\"a\uFFFDb\uFFFD\uFFFD\"}"},
		{"bytes", &testschema.TestBytes{Value: []byte("He\x0c\x00A\xff\"")}, `{"value":"He\u000c\u0000A\u00ff\""}`},
		{"enum", &testschema.TestEnum{Value: testschema.FooHello}, `{"value":"FOO_HELLO"}`},
		{"unknown enum value", &testschema.TestEnum{Value: 42}, `{"value":42}`},
		{"struct", &testschema.TestStruct{
			StructInt32:  testschema.TestInt32{Value: -2},
			StructString: testschema.TestString{Value: "a"},
			LastValue:    7,
		}, `{"struct_int32":{"value":-2},"struct_string":{"value":"a"},"last_value":7}`},
		{"array int32", &testschema.TestArrayInt32{Value: []int32{-2, 0, 2, 222}}, `{"value":[-2,0,2,222]}`},
		{"array empty", &testschema.TestArrayString{}, `{"value":[]}`},
		{"array bytes", &testschema.TestArrayBytes{Value: [][]byte{{0}, []byte("ab")}}, `{"value":["\u0000","ab"]}`},
		{"array enum", &testschema.TestArrayEnum{Value: []testschema.Foo{testschema.FooHello, 7}}, `{"value":["FOO_HELLO",7]}`},
		{"array struct", &testschema.TestArrayStruct{
			Value:     []testschema.TestStruct{{LastValue: 1}, {LastValue: 2}},
			LastValue: 3,
		}, `{"value":[` +
			`{"struct_int32":{"value":0},"struct_string":{"value":""},"last_value":1},` +
			`{"struct_int32":{"value":0},"struct_string":{"value":""},"last_value":2}` +
			`],"last_value":3}`},
		{"empty array struct", &testschema.TestArrayStruct{}, `{"value":[],"last_value":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toJSON(t, tt.in))
		})
	}
}

func TestSerializer_EnumAsNumber(t *testing.T) {
	assert.Equal(t, `{"value":-2}`, toJSON(t, &testschema.TestEnum{Value: testschema.FooHello}, WithEnumAsNumber()))
	assert.Equal(t, `{"value":[-2,1]}`, toJSON(t,
		&testschema.TestArrayEnum{Value: []testschema.Foo{testschema.FooHello, testschema.FooWorld2}}, WithEnumAsNumber()))
}

// 枚举以名称到达时也按数值输出
func TestSerializer_EnumNamesAsNumber(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	enum, _ := reg.FindStruct("test.TestEnum")
	arr, _ := reg.FindStruct("test.TestArrayEnum")
	tests := []struct {
		name string
		emit func(s *Serializer)
		want string
	}{
		{"known", func(s *Serializer) { s.EnterEnumString(enum.Fields[0], "FOO_HELLO") }, `{"value":-2}`},
		{"unknown", func(s *Serializer) { s.EnterEnumString(enum.Fields[0], "blabla") }, `{"value":0}`},
		{"array", func(s *Serializer) {
			s.EnterArrayEnumString(arr.Fields[0], []string{"FOO_WORLD2", "x", "42"})
		}, `{"value":[1,0,42]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := buffer.New(64)
			s := NewSerializer(reg, out, WithEnumAsNumber())
			root := metadata.RootField("test.TestEnum")
			s.EnterStruct(root)
			tt.emit(s)
			s.ExitStruct(root)
			assert.Equal(t, tt.want, string(out.Bytes()))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		in, out serializestruct.Struct
	}{
		{"bool", &testschema.TestBool{Value: true}, &testschema.TestBool{}},
		{"int8", &testschema.TestInt8{Value: -128}, &testschema.TestInt8{}},
		{"uint8", &testschema.TestUInt8{Value: 255}, &testschema.TestUInt8{}},
		{"int16", &testschema.TestInt16{Value: -32768}, &testschema.TestInt16{}},
		{"uint16", &testschema.TestUInt16{Value: 65535}, &testschema.TestUInt16{}},
		{"int32", &testschema.TestInt32{Value: math.MinInt32}, &testschema.TestInt32{}},
		{"uint32", &testschema.TestUInt32{Value: math.MaxUint32}, &testschema.TestUInt32{}},
		{"int64", &testschema.TestInt64{Value: math.MinInt64}, &testschema.TestInt64{}},
		{"uint64", &testschema.TestUInt64{Value: math.MaxUint64}, &testschema.TestUInt64{}},
		{"float", &testschema.TestFloat{Value: -1.1}, &testschema.TestFloat{}},
		{"double", &testschema.TestDouble{Value: -1.25e300}, &testschema.TestDouble{}},
		{"string", &testschema.TestString{Value: "Hello\tWörld 😀 \"\\"}, &testschema.TestString{}},
		{"bytes", &testschema.TestBytes{Value: []byte{0, 1, 0x7f, 0x80, 0xff, '"', '\\'}}, &testschema.TestBytes{}},
		{"enum", &testschema.TestEnum{Value: testschema.FooHello}, &testschema.TestEnum{}},
		{"struct", &testschema.TestStruct{
			StructInt32:  testschema.TestInt32{Value: -2},
			StructString: testschema.TestString{Value: "x"},
			LastValue:    5,
		}, &testschema.TestStruct{}},
		{"array bool", &testschema.TestArrayBool{Value: []bool{true, false}}, &testschema.TestArrayBool{}},
		{"array int8", &testschema.TestArrayInt8{Value: []int8{-128, 127}}, &testschema.TestArrayInt8{}},
		{"array uint16", &testschema.TestArrayUInt16{Value: []uint16{0, 65535}}, &testschema.TestArrayUInt16{}},
		{"array int64", &testschema.TestArrayInt64{Value: []int64{math.MinInt64, math.MaxInt64}}, &testschema.TestArrayInt64{}},
		{"array uint64", &testschema.TestArrayUInt64{Value: []uint64{math.MaxUint64}}, &testschema.TestArrayUInt64{}},
		{"array float", &testschema.TestArrayFloat{Value: []float32{-2.1, 0, 2.1}}, &testschema.TestArrayFloat{}},
		{"array double", &testschema.TestArrayDouble{Value: []float64{-2.1, 0, 1e-300}}, &testschema.TestArrayDouble{}},
		{"array string", &testschema.TestArrayString{Value: []string{"a", "", "ö"}}, &testschema.TestArrayString{}},
		{"array bytes", &testschema.TestArrayBytes{Value: [][]byte{{0xff}, {1, 2}}}, &testschema.TestArrayBytes{}},
		{"array enum", &testschema.TestArrayEnum{Value: []testschema.Foo{testschema.FooHello, testschema.FooWorld2}}, &testschema.TestArrayEnum{}},
		{"array struct", &testschema.TestArrayStruct{
			Value:     []testschema.TestStruct{{LastValue: 1}, {StructString: testschema.TestString{Value: "y"}}},
			LastValue: 3,
		}, &testschema.TestArrayStruct{}},
		{"reply", &testschema.TestReply{Text: "ok", Numbers: []int64{1, -1}}, &testschema.TestReply{}},
	}
	reg, _ := testschema.MustRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := toJSON(t, tt.in)
			ser := serializestruct.NewSerializer(reg, tt.out)
			end, err := NewParser(reg, ser, []byte(data)).ParseStruct(tt.in.TypeName())
			require.NoError(t, err)
			require.NoError(t, ser.Err())
			assert.Equal(t, len(data), end)
			assert.Equal(t, tt.in, tt.out)
		})
	}
}
