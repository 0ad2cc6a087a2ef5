package serializestruct_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
	. "github.com/helmut-steiner/finalmq/internal/serialize/serializetest"
	"github.com/helmut-steiner/finalmq/internal/serializestruct"
	"github.com/helmut-steiner/finalmq/internal/testschema"
)

func TestParser_Events(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	rec := &Recorder{}

	in := &testschema.TestArrayStruct{
		Value: []testschema.TestStruct{
			{StructInt32: testschema.TestInt32{Value: -2}, StructString: testschema.TestString{Value: "a"}, LastValue: 7},
			{},
		},
		LastValue: 9,
	}
	require.NoError(t, serializestruct.NewParser(reg, rec).ParseStruct(in))

	assert.Equal(t, []Event{
		E("EnterStruct", "", nil),
		E("EnterArrayStruct", "value", nil),
		E("EnterStruct", "value", nil),
		E("EnterStruct", "struct_int32", nil),
		E("EnterInt32", "value", int32(-2)),
		E("ExitStruct", "struct_int32", nil),
		E("EnterStruct", "struct_string", nil),
		E("EnterString", "value", "a"),
		E("ExitStruct", "struct_string", nil),
		E("EnterUInt32", "last_value", uint32(7)),
		E("ExitStruct", "value", nil),
		E("EnterStruct", "value", nil),
		E("EnterStruct", "struct_int32", nil),
		E("EnterInt32", "value", int32(0)),
		E("ExitStruct", "struct_int32", nil),
		E("EnterStruct", "struct_string", nil),
		E("EnterString", "value", ""),
		E("ExitStruct", "struct_string", nil),
		E("EnterUInt32", "last_value", uint32(0)),
		E("ExitStruct", "value", nil),
		E("ExitArrayStruct", "value", nil),
		E("EnterUInt32", "last_value", uint32(9)),
		E("ExitStruct", "", nil),
		E("Finished", "", nil),
	}, rec.Events)
}

type unknownType struct{}

func (*unknownType) TypeName() string { return "test.BlaBla" }

func TestParser_UnknownType(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	rec := &Recorder{}

	err := serializestruct.NewParser(reg, rec).ParseStruct(&unknownType{})
	assert.True(t, errors.Is(err, serialize.ErrUnknownType))
	assert.Equal(t, 1, rec.Count("NotifyError"))
	assert.Equal(t, 1, rec.Count("Finished"))
	assert.Equal(t, "Finished", rec.Events[len(rec.Events)-1].Op)
}

func roundTrip(t *testing.T, in, out serializestruct.Struct) {
	t.Helper()
	reg, _ := testschema.MustRegistry()
	ser := serializestruct.NewSerializer(reg, out)
	require.NoError(t, serializestruct.NewParser(reg, ser).ParseStruct(in))
	require.NoError(t, ser.Err())
	assert.Equal(t, in, out)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		in, out serializestruct.Struct
	}{
		{"bool", &testschema.TestBool{Value: true}, &testschema.TestBool{}},
		{"int8", &testschema.TestInt8{Value: -128}, &testschema.TestInt8{}},
		{"uint64", &testschema.TestUInt64{Value: 0xFFFFFFFFFFFFFFFF}, &testschema.TestUInt64{}},
		{"double", &testschema.TestDouble{Value: -1.25e300}, &testschema.TestDouble{}},
		{"bytes", &testschema.TestBytes{Value: []byte{0, 1, 0xff}}, &testschema.TestBytes{}},
		{"enum", &testschema.TestEnum{Value: testschema.FooHello}, &testschema.TestEnum{}},
		{"array enum", &testschema.TestArrayEnum{Value: []testschema.Foo{testschema.FooHello, testschema.FooWorld2}}, &testschema.TestArrayEnum{}},
		{"array bytes", &testschema.TestArrayBytes{Value: [][]byte{{1}, {2, 3}}}, &testschema.TestArrayBytes{}},
		{"array struct", &testschema.TestArrayStruct{
			Value:     []testschema.TestStruct{{LastValue: 1}, {StructString: testschema.TestString{Value: "x"}}},
			LastValue: 3,
		}, &testschema.TestArrayStruct{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roundTrip(t, tt.in, tt.out)
		})
	}
}

// partialStruct 只认识 test.TestStruct 的部分字段
type partialStruct struct {
	LastValue uint32 `fmq:"last_value"`
}

func (*partialStruct) TypeName() string { return "test.TestStruct" }

type pointerStruct struct {
	StructInt32 *testschema.TestInt32 `fmq:"struct_int32"`
	LastValue   uint32                `fmq:"last_value"`
}

func (*pointerStruct) TypeName() string { return "test.TestStruct" }

func TestSerializer_IgnoresUnknownFields(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	in := &testschema.TestStruct{
		StructInt32:  testschema.TestInt32{Value: 5},
		StructString: testschema.TestString{Value: "skip"},
		LastValue:    42,
	}

	out := &partialStruct{}
	ser := serializestruct.NewSerializer(reg, out)
	require.NoError(t, serializestruct.NewParser(reg, ser).ParseStruct(in))
	assert.Equal(t, uint32(42), out.LastValue)

	ptr := &pointerStruct{}
	ser = serializestruct.NewSerializer(reg, ptr)
	require.NoError(t, serializestruct.NewParser(reg, ser).ParseStruct(in))
	require.NotNil(t, ptr.StructInt32)
	assert.Equal(t, int32(5), ptr.StructInt32.Value)
	assert.Equal(t, uint32(42), ptr.LastValue)
}

func TestSerializer_EnumStrings(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	fd, ok := reg.FindField("test.TestEnum", "value")
	require.True(t, ok)

	tests := []struct {
		in   string
		want testschema.Foo
	}{
		{"FOO_HELLO", testschema.FooHello},
		{"FOO_WORLD2", testschema.FooWorld2},
		{"blabla", testschema.FooWorld},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			out := &testschema.TestEnum{Value: testschema.FooWorld2}
			ser := serializestruct.NewSerializer(reg, out)
			root := metadata.RootField(out.TypeName())
			ser.EnterStruct(root)
			ser.EnterEnumString(fd, tt.in)
			ser.ExitStruct(root)
			require.NoError(t, ser.Err())
			assert.Equal(t, tt.want, out.Value)
		})
	}
}

func TestSerializer_NotifyError(t *testing.T) {
	reg, _ := testschema.MustRegistry()
	ser := serializestruct.NewSerializer(reg, &testschema.TestInt32{})
	ser.NotifyError(nil, 4, "boom")
	ser.Finished()
	require.Error(t, ser.Err())
	assert.Contains(t, ser.Err().Error(), "boom")

	bad := serializestruct.NewSerializer(reg, nil)
	assert.True(t, errors.Is(bad.Err(), serializestruct.ErrNotStructPtr))
}

func TestFactory(t *testing.T) {
	f := serializestruct.NewFactory()
	require.NoError(t, f.RegisterType(&testschema.TestInt32{}))
	require.NoError(t, f.Register("test.TestString", func() serializestruct.Struct { return &testschema.TestString{} }))

	s, ok := f.Create("test.TestInt32")
	require.True(t, ok)
	v := s.(*testschema.TestInt32)
	v.Value = 3

	// every Create returns a fresh instance
	s2, _ := f.Create("test.TestInt32")
	assert.Equal(t, int32(0), s2.(*testschema.TestInt32).Value)

	_, ok = f.Create("test.BlaBla")
	assert.False(t, ok)

	assert.True(t, errors.Is(f.RegisterType(&testschema.TestInt32{}), serializestruct.ErrDuplicateMaker))
	f.Freeze()
	assert.True(t, errors.Is(f.RegisterType(&testschema.TestBool{}), serializestruct.ErrFactoryFrozen))
	assert.Equal(t, []string{"test.TestInt32", "test.TestString"}, f.TypeNames())
}
