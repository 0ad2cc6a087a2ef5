package serializejson

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmut-steiner/finalmq/internal/serialize"
	. "github.com/helmut-steiner/finalmq/internal/serialize/serializetest"
	"github.com/helmut-steiner/finalmq/internal/testschema"
)

func parse(t *testing.T, typeName, data string) (*Recorder, int, error) {
	t.Helper()
	reg, _ := testschema.MustRegistry()
	rec := &Recorder{}
	end, err := NewParser(reg, rec, []byte(data)).ParseStruct(typeName)
	return rec, end, err
}

func TestParser_UnknownStruct(t *testing.T) {
	rec, end, err := parse(t, "test.BlaBla", "{}")
	assert.True(t, errors.Is(err, serialize.ErrUnknownType))
	assert.Equal(t, -1, end)
	assert.Equal(t, []Event{E("NotifyError", "", "typename not found: test.BlaBla"), E("Finished", "", nil)}, rec.Events)
}

func TestParser_Scalars(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		data     string
		want     Event
	}{
		{"bool", "test.TestBool", `{"value":true}`, E("EnterBool", "value", true)},
		{"int8", "test.TestInt8", `{"value":-128}`, E("EnterInt8", "value", int8(-128))},
		{"uint8", "test.TestUInt8", `{"value":255}`, E("EnterUInt8", "value", uint8(255))},
		{"int16", "test.TestInt16", `{"value":-32768}`, E("EnterInt16", "value", int16(-32768))},
		{"uint16", "test.TestUInt16", `{"value":65535}`, E("EnterUInt16", "value", uint16(65535))},
		{"int32", "test.TestInt32", `{"value":-2}`, E("EnterInt32", "value", int32(-2))},
		{"uint32", "test.TestUInt32", `{"value":130}`, E("EnterUInt32", "value", uint32(130))},
		{"int64", "test.TestInt64", `{"value":-9223372036854775808}`, E("EnterInt64", "value", int64(-9223372036854775808))},
		{"uint64", "test.TestUInt64", `{"value":18446744073709551615}`, E("EnterUInt64", "value", uint64(18446744073709551615))},
		{"float", "test.TestFloat", `{"value":-1.1}`, E("EnterFloat32", "value", float32(-1.1))},
		{"double", "test.TestDouble", `{"value":-1.1e2}`, E("EnterFloat64", "value", -110.0)},
		{"string", "test.TestString", `{"value":"Hello World"}`, E("EnterString", "value", "Hello World")},
		{"string escape", "test.TestString", `{"value":"Hello W\u00f6rld \ud83d\ude00"}`, E("EnterString", "value", "Hello Wörld 😀")},
		{"bytes", "test.TestBytes", `{"value":"He\u000c\u0000A"}`, E("EnterBytes", "value", []byte("He\x0c\x00A"))},
		{"bytes high", "test.TestBytes", `{"value":"\u00ff\u0080"}`, E("EnterBytes", "value", []byte{0xff, 0x80})},
		{"uint32 wraps", "test.TestUInt32", `{"value":-2}`, E("EnterUInt32", "value", uint32(4294967294))},
		{"int32 wraps", "test.TestInt32", `{"value":4294967294}`, E("EnterInt32", "value", int32(-2))},
		{"float truncates", "test.TestInt32", `{"value":-2.7}`, E("EnterInt32", "value", int32(-2))},
		{"float saturates", "test.TestInt64", `{"value":1e300}`, E("EnterInt64", "value", int64(math.MaxInt64))},
		{"float saturates unsigned", "test.TestUInt64", `{"value":1e30}`, E("EnterUInt64", "value", uint64(math.MaxUint64))},
		{"int from string", "test.TestInt64", `{"value":"-42"}`, E("EnterInt64", "value", int64(-42))},
		{"string from number", "test.TestString", `{"value":12}`, E("EnterString", "value", "12")},
		{"enum as int", "test.TestEnum", `{"value":-2}`, E("EnterEnum", "value", int32(-2))},
		{"enum as string", "test.TestEnum", `{"value":"FOO_HELLO"}`, E("EnterEnumString", "value", "FOO_HELLO")},
		{"enum escaped", "test.TestEnum", `{"value":"FOO_HELL\u004f"}`, E("EnterEnumString", "value", "FOO_HELLO")},
		{"enum unknown int", "test.TestEnum", `{"value":42}`, E("EnterEnum", "value", int32(42))},
		{"enum unknown string", "test.TestEnum", `{"value":"blabla"}`, E("EnterEnumString", "value", "blabla")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, end, err := parse(t, tt.typeName, tt.data)
			require.NoError(t, err)
			assert.Equal(t, len(tt.data), end)
			assert.Equal(t, []Event{
				E("EnterStruct", "", nil),
				tt.want,
				E("ExitStruct", "", nil),
				E("Finished", "", nil),
			}, rec.Events)
		})
	}
}

func TestParser_Struct(t *testing.T) {
	data := `{"struct_int32":{"value":-2},"struct_string":{"value":"Hello World"},"last_value":5}`
	rec, _, err := parse(t, "test.TestStruct", data)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		E("EnterStruct", "struct_int32", nil),
		E("EnterInt32", "value", int32(-2)),
		E("ExitStruct", "struct_int32", nil),
		E("EnterStruct", "struct_string", nil),
		E("EnterString", "value", "Hello World"),
		E("ExitStruct", "struct_string", nil),
		E("EnterUInt32", "last_value", uint32(5)),
	}, rec.Values())
}

func TestParser_DeclaredOrder(t *testing.T) {
	data := `{"last_value":5,"struct_string":{"value":"Hi"},"struct_int32":{"value":7},"last_value":6}`
	rec, end, err := parse(t, "test.TestStruct", data)
	require.NoError(t, err)
	assert.Equal(t, len(data), end)
	// 按声明顺序输出，重复的键取最后一个
	assert.Equal(t, []Event{
		E("EnterStruct", "struct_int32", nil),
		E("EnterInt32", "value", int32(7)),
		E("ExitStruct", "struct_int32", nil),
		E("EnterStruct", "struct_string", nil),
		E("EnterString", "value", "Hi"),
		E("ExitStruct", "struct_string", nil),
		E("EnterUInt32", "last_value", uint32(6)),
	}, rec.Values())

	// 后面的字段出错时已扫描的字段不产生事件
	rec, _, err = parse(t, "test.TestStruct", `{"last_value":5,"struct_int32":{"value":}}`)
	assert.True(t, errors.Is(err, serialize.ErrSyntax))
	assert.Empty(t, rec.Values())
}

func TestParser_UndefinedKeys(t *testing.T) {
	data := `{"undefined":{"undefined":{"undefined":{"undefined":{}},"undefined2":{"undefined":{"undefined":1234}}}},` +
		`"struct_int32":{"value":-2},"undefined3":{"undefined":[1,"x",{"a":[]}]},` +
		`"struct_string":{"value":"Hello World","undefine4":1234,"undefined5":{"undefined":{}}},"undefined6":null}`
	rec, end, err := parse(t, "test.TestStruct", data)
	require.NoError(t, err)
	assert.Equal(t, len(data), end)
	assert.Equal(t, []Event{
		E("EnterStruct", "struct_int32", nil),
		E("EnterInt32", "value", int32(-2)),
		E("ExitStruct", "struct_int32", nil),
		E("EnterStruct", "struct_string", nil),
		E("EnterString", "value", "Hello World"),
		E("ExitStruct", "struct_string", nil),
	}, rec.Values())

	rec, _, err = parse(t, "test.TestString", `{"unknown1":1234,"value":"Hello World","unknown2":1234}`)
	require.NoError(t, err)
	assert.Equal(t, []Event{E("EnterString", "value", "Hello World")}, rec.Values())
}

func TestParser_MismatchedShapes(t *testing.T) {
	// 标量字段遇到数组、对象或 null
	rec, _, err := parse(t, "test.TestInt32", `{"value":[]}`)
	require.NoError(t, err)
	assert.Empty(t, rec.Values())

	rec, _, err = parse(t, "test.TestInt32", `{"value":{"a":1}}`)
	require.NoError(t, err)
	assert.Empty(t, rec.Values())

	rec, _, err = parse(t, "test.TestInt32", `{"value":null}`)
	require.NoError(t, err)
	assert.Empty(t, rec.Values())

	rec, _, err = parse(t, "test.TestArrayInt32", `{"blabla":[]}`)
	require.NoError(t, err)
	assert.Empty(t, rec.Values())
}

func TestParser_Arrays(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		data     string
		want     Event
	}{
		{"bool", "test.TestArrayBool", `{"value":[true,false,false,true]}`, E("EnterArrayBool", "value", []bool{true, false, false, true})},
		{"int8", "test.TestArrayInt8", `{"value":[-128,0,127,255]}`, E("EnterArrayInt8", "value", []int8{-128, 0, 127, -1})},
		{"int32", "test.TestArrayInt32", `{"value":[-2,0,2,222]}`, E("EnterArrayInt32", "value", []int32{-2, 0, 2, 222})},
		{"uint32", "test.TestArrayUInt32", `{"value":[4294967294,0,2,222]}`, E("EnterArrayUInt32", "value", []uint32{4294967294, 0, 2, 222})},
		{"int64", "test.TestArrayInt64", `{"value":[-2,0,"7",222]}`, E("EnterArrayInt64", "value", []int64{-2, 0, 7, 222})},
		{"uint64", "test.TestArrayUInt64", `{"value":[18446744073709551615,0]}`, E("EnterArrayUInt64", "value", []uint64{18446744073709551615, 0})},
		{"float", "test.TestArrayFloat", `{"value":[-2.1,0,2.1,222.1]}`, E("EnterArrayFloat32", "value", []float32{-2.1, 0, 2.1, 222.1})},
		{"double", "test.TestArrayDouble", `{"value":[-2.1,0,2.1,222.1]}`, E("EnterArrayFloat64", "value", []float64{-2.1, 0, 2.1, 222.1})},
		{"string", "test.TestArrayString", `{"value":["Hello"," ","World",""]}`, E("EnterArrayString", "value", []string{"Hello", " ", "World", ""})},
		{"bytes", "test.TestArrayBytes", `{"value":["\u0000\u00ff","ab"]}`, E("EnterArrayBytes", "value", [][]byte{{0, 0xff}, []byte("ab")})},
		{"enum names", "test.TestArrayEnum", `{"value":["FOO_HELLO","blabla",1]}`, E("EnterArrayEnumString", "value", []string{"FOO_HELLO", "blabla", "FOO_WORLD2"})},
		{"enum ints", "test.TestArrayEnum", `{"value":[-2,0,42]}`, E("EnterArrayEnum", "value", []int32{-2, 0, 42})},
		{"empty", "test.TestArrayInt32", `{"value":[]}`, E("EnterArrayInt32", "value", []int32{})},
		{"null elements skipped", "test.TestArrayString", `{"value":[null,"a"]}`, E("EnterArrayString", "value", []string{"a"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _, err := parse(t, tt.typeName, tt.data)
			require.NoError(t, err)
			assert.Equal(t, []Event{tt.want}, rec.Values())
		})
	}
}

func TestParser_ArrayStruct(t *testing.T) {
	data := `{"value":[{"struct_int32":{"value":-2},"last_value":1},{},{"last_value":3}],"last_value":9}`
	rec, _, err := parse(t, "test.TestArrayStruct", data)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		E("EnterArrayStruct", "value", nil),
		E("EnterStruct", "value", nil),
		E("EnterStruct", "struct_int32", nil),
		E("EnterInt32", "value", int32(-2)),
		E("ExitStruct", "struct_int32", nil),
		E("EnterUInt32", "last_value", uint32(1)),
		E("ExitStruct", "value", nil),
		E("EnterStruct", "value", nil),
		E("ExitStruct", "value", nil),
		E("EnterStruct", "value", nil),
		E("EnterUInt32", "last_value", uint32(3)),
		E("ExitStruct", "value", nil),
		E("ExitArrayStruct", "value", nil),
		E("EnterUInt32", "last_value", uint32(9)),
	}, rec.Values())

	rec, _, err = parse(t, "test.TestArrayStruct", `{"value":[]}`)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		E("EnterArrayStruct", "value", nil),
		E("ExitArrayStruct", "value", nil),
	}, rec.Values())
}

func TestParser_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"not an object", `[1]`},
		{"missing colon", `{"value" 1}`},
		{"unterminated string", `{"value":"abc`},
		{"missing brace", `{"value":1`},
		{"bad literal", `{"value":tru}`},
		{"bad escape", `{"value":"\q"}`},
		{"trailing comma garbage", `{"value":1,}`},
		{"bad unknown value", `{"x":[1,}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, end, err := parse(t, "test.TestInt32", tt.data)
			assert.True(t, errors.Is(err, serialize.ErrSyntax), "got %v", err)
			assert.Equal(t, -1, end)
			assert.Equal(t, 1, rec.Count("NotifyError"))
			assert.Equal(t, 1, rec.Count("Finished"))
			assert.Equal(t, "Finished", rec.Events[len(rec.Events)-1].Op)
		})
	}
}

func TestParser_EndOffset(t *testing.T) {
	data := `  {"value":1} ,	{"next":true}`
	_, end, err := parse(t, "test.TestInt32", data)
	require.NoError(t, err)
	assert.Equal(t, len(`  {"value":1}`), end)
}
