package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmut-steiner/finalmq/internal/observe"
	"github.com/helmut-steiner/finalmq/internal/serialize"
	"github.com/helmut-steiner/finalmq/internal/testschema"
)

func sample() *testschema.TestArrayStruct {
	return &testschema.TestArrayStruct{
		Value: []testschema.TestStruct{
			{StructInt32: testschema.TestInt32{Value: -2}, StructString: testschema.TestString{Value: "Hello"}, LastValue: 1},
			{LastValue: 2},
		},
		LastValue: 77,
	}
}

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{"json", "proto", "qt"}, Names())

	c, ok := Lookup("proto")
	require.True(t, ok)
	assert.Equal(t, ApplicationProtobuf, c.ContentType())

	c, ok = Lookup(ApplicationJson)
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	_, ok = Lookup("xml")
	assert.False(t, ok)
	_, err := MustLookup("xml")
	assert.True(t, errors.Is(err, ErrUnknownCodec))
}

func TestMarshalUnmarshal(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, _ := Lookup(name)
			data, err := Marshal(c, reg, sample())
			require.NoError(t, err)

			out := &testschema.TestArrayStruct{}
			require.NoError(t, Unmarshal(c, reg, data, out))
			assert.Equal(t, sample(), out)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Proto, reg, sample()))
	size := buf.Len()

	out := &testschema.TestArrayStruct{}
	require.NoError(t, Decode(bytes.NewReader(buf.Bytes()), Proto, reg, out, size))
	assert.Equal(t, sample(), out)

	err := Decode(bytes.NewReader(buf.Bytes()), Proto, reg, &testschema.TestArrayStruct{}, size-1)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestConvert(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	in := []byte(`{"value":[{"struct_int32":{"value":-2},"struct_string":{"value":"Hello"},"last_value":1},{"last_value":"2"}],"last_value":77}`)

	before := testutil.ToFloat64(observe.ConversionsTotal().WithLabelValues("json", "qt"))
	qt, err := Convert(reg, JSON, Qt, "test.TestArrayStruct", in)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(observe.ConversionsTotal().WithLabelValues("json", "qt")))

	pb, err := Convert(reg, Qt, Proto, "test.TestArrayStruct", qt)
	require.NoError(t, err)

	out := &testschema.TestArrayStruct{}
	require.NoError(t, Unmarshal(Proto, reg, pb, out))
	assert.Equal(t, sample(), out)

	back, err := Convert(reg, Proto, JSON, "test.TestArrayStruct", pb)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(back), `{"value":[{"struct_int32":{"value":-2}`), string(back))
}

// proto 省略零值字段、JSON 键可乱序，转成位置相关的 Qt 格式后仍能还原
func TestConvert_ToQt(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	want := &testschema.TestStruct{StructString: testschema.TestString{Value: "Hi"}, LastValue: 5}

	pb, err := Marshal(Proto, reg, want)
	require.NoError(t, err)
	qt, err := Convert(reg, Proto, Qt, "test.TestStruct", pb)
	require.NoError(t, err)
	out := &testschema.TestStruct{}
	require.NoError(t, Unmarshal(Qt, reg, qt, out))
	assert.Equal(t, want, out)

	js := []byte(`{"last_value":5,"struct_string":{"value":"Hi"},"struct_int32":{"value":7}}`)
	qt, err = Convert(reg, JSON, Qt, "test.TestStruct", js)
	require.NoError(t, err)
	out = &testschema.TestStruct{}
	require.NoError(t, Unmarshal(Qt, reg, qt, out))
	want.StructInt32.Value = 7
	assert.Equal(t, want, out)
}

func TestConvert_Errors(t *testing.T) {
	reg, _ := testschema.MustRegistry()

	_, err := Convert(reg, JSON, Proto, "test.BlaBla", []byte(`{}`))
	assert.True(t, errors.Is(err, serialize.ErrUnknownType))

	_, err = Convert(reg, JSON, Proto, "test.TestInt32", []byte(`{"value":`))
	assert.True(t, errors.Is(err, serialize.ErrSyntax))
}

func TestEnumAsNumber(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	data, err := Marshal(JSONWithEnumAsNumber(), reg, &testschema.TestEnum{Value: testschema.FooHello})
	require.NoError(t, err)
	assert.Equal(t, `{"value":-2}`, string(data))

	data, err = Marshal(JSON, reg, &testschema.TestEnum{Value: testschema.FooHello})
	require.NoError(t, err)
	assert.Equal(t, `{"value":"FOO_HELLO"}`, string(data))
}

func TestConvert_EnumAsNumber(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	tests := []struct {
		name, typeName, in, want string
	}{
		{"name", "test.TestEnum", `{"value":"FOO_HELLO"}`, `{"value":-2}`},
		{"unknown name", "test.TestEnum", `{"value":"blabla"}`, `{"value":0}`},
		{"array", "test.TestArrayEnum", `{"value":["FOO_WORLD2","FOO_HELLO",42]}`, `{"value":[1,-2,42]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Convert(reg, JSON, JSONWithEnumAsNumber(), tt.typeName, []byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}
