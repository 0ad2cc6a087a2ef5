package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterEnum(NewEnum("test.Foo", "",
		EnumEntry{Name: "FOO_WORLD", Value: 0},
		EnumEntry{Name: "FOO_HELLO", Value: -2},
		EnumEntry{Name: "FOO_WORLD2", Value: 1},
	)))
	require.NoError(t, reg.RegisterStruct(NewStruct("test.TestInt32", "",
		FieldDescriptor{Kind: TypeInt32, Name: "value"},
	)))
	require.NoError(t, reg.RegisterStruct(NewStruct("test.TestStruct", "",
		FieldDescriptor{Kind: TypeStruct, TypeName: "test.TestInt32", Name: "struct_int32"},
		FieldDescriptor{Kind: TypeEnum, TypeName: "test.Foo", Name: "foo"},
		FieldDescriptor{Kind: TypeArrayStruct, TypeName: "test.TestInt32", Name: "items"},
	)))
	return reg
}

func TestRegistry_Find(t *testing.T) {
	reg := newTestRegistry(t)

	s, ok := reg.FindStruct("test.TestStruct")
	require.True(t, ok)
	assert.Equal(t, 3, s.NumFields())

	f, ok := reg.FindField("test.TestStruct", "foo")
	require.True(t, ok)
	assert.Equal(t, TypeEnum, f.Kind)
	assert.Equal(t, 1, f.Index)

	_, ok = reg.FindField("test.TestStruct", "nope")
	assert.False(t, ok)
	_, ok = reg.FindStruct("test.BlaBla")
	assert.False(t, ok)

	e, ok := reg.FindEnum("test.Foo")
	require.True(t, ok)
	v, ok := e.ValueOf("FOO_HELLO")
	assert.True(t, ok)
	assert.Equal(t, int32(-2), v)
	name, ok := e.NameOf(1)
	assert.True(t, ok)
	assert.Equal(t, "FOO_WORLD2", name)
	assert.False(t, e.IsValid(42))
	assert.Equal(t, int32(0), e.Default())
}

func TestRegistry_ArrayElementField(t *testing.T) {
	reg := newTestRegistry(t)
	f, ok := reg.FindField("test.TestStruct", "items")
	require.True(t, ok)

	elem := f.Element()
	assert.Equal(t, TypeStruct, elem.Kind)
	assert.Equal(t, "test.TestInt32", elem.TypeName)
	assert.Equal(t, f.Name, elem.Name)
	assert.Equal(t, f.Index, elem.Index)
}

func TestRegistry_DuplicateAndFrozen(t *testing.T) {
	reg := newTestRegistry(t)

	err := reg.RegisterStruct(NewStruct("test.TestInt32", "", FieldDescriptor{Kind: TypeInt32, Name: "value"}))
	assert.True(t, errors.Is(err, ErrDuplicateType))

	require.NoError(t, reg.Freeze())
	assert.True(t, reg.Frozen())

	err = reg.RegisterEnum(NewEnum("test.Bar", "", EnumEntry{Name: "BAR", Value: 0}))
	assert.True(t, errors.Is(err, ErrRegistryFrozen))
}

func TestRegistry_FreezeUnresolvedReferences(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterStruct(NewStruct("a.A", "",
		FieldDescriptor{Kind: TypeStruct, TypeName: "a.Missing", Name: "x"},
		FieldDescriptor{Kind: TypeArrayEnum, TypeName: "a.NoEnum", Name: "y"},
	)))

	err := reg.Freeze()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(errors.Unwrap(err)), 2)
	assert.False(t, reg.Frozen())
}

func TestRegistry_InvalidDescriptor(t *testing.T) {
	tests := []struct {
		name string
		desc *StructDescriptor
	}{
		{"empty type name", NewStruct("", "", FieldDescriptor{Kind: TypeInt32, Name: "v"})},
		{"duplicate field", NewStruct("x.A", "", FieldDescriptor{Kind: TypeInt32, Name: "v"}, FieldDescriptor{Kind: TypeInt64, Name: "v"})},
		{"missing type name", NewStruct("x.B", "", FieldDescriptor{Kind: TypeStruct, Name: "s"})},
		{"invalid kind", NewStruct("x.C", "", FieldDescriptor{Kind: TypeID(99), Name: "v"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().RegisterStruct(tt.desc)
			assert.True(t, errors.Is(err, ErrInvalidType), "got %v", err)
		})
	}
}

func TestTypeID(t *testing.T) {
	tests := []struct {
		in    string
		want  TypeID
		array bool
	}{
		{"int32", TypeInt32, false},
		{"struct[]", TypeArrayStruct, true},
		{"double", TypeFloat64, false},
		{"bytes[]", TypeArrayBytes, true},
		{"enum", TypeEnum, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTypeID(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.array, got.IsArray())
		})
	}
	_, ok := ParseTypeID("complex")
	assert.False(t, ok)
	assert.Equal(t, TypeInt32, TypeArrayInt32.Elem())
	assert.Equal(t, "uint16[]", TypeArrayUInt16.String())
}
