package metadata

import "strings"

// TypeID 字段类型标识，数组类型为标量类型加上 OffsetArray
type TypeID int

const (
	TypeNone TypeID = iota
	TypeBool
	TypeInt8
	TypeUInt8
	TypeInt16
	TypeUInt16
	TypeInt32
	TypeUInt32
	TypeInt64
	TypeUInt64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeBytes
	TypeStruct
	TypeEnum
)

const OffsetArray TypeID = 1024

const (
	TypeArrayBool    = OffsetArray + TypeBool
	TypeArrayInt8    = OffsetArray + TypeInt8
	TypeArrayUInt8   = OffsetArray + TypeUInt8
	TypeArrayInt16   = OffsetArray + TypeInt16
	TypeArrayUInt16  = OffsetArray + TypeUInt16
	TypeArrayInt32   = OffsetArray + TypeInt32
	TypeArrayUInt32  = OffsetArray + TypeUInt32
	TypeArrayInt64   = OffsetArray + TypeInt64
	TypeArrayUInt64  = OffsetArray + TypeUInt64
	TypeArrayFloat32 = OffsetArray + TypeFloat32
	TypeArrayFloat64 = OffsetArray + TypeFloat64
	TypeArrayString  = OffsetArray + TypeString
	TypeArrayBytes   = OffsetArray + TypeBytes
	TypeArrayStruct  = OffsetArray + TypeStruct
	TypeArrayEnum    = OffsetArray + TypeEnum
)

var typeNames = map[TypeID]string{
	TypeBool:    "bool",
	TypeInt8:    "int8",
	TypeUInt8:   "uint8",
	TypeInt16:   "int16",
	TypeUInt16:  "uint16",
	TypeInt32:   "int32",
	TypeUInt32:  "uint32",
	TypeInt64:   "int64",
	TypeUInt64:  "uint64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeBytes:   "bytes",
	TypeStruct:  "struct",
	TypeEnum:    "enum",
}

// IsArray 是否为数组类型
func (t TypeID) IsArray() bool { return t > OffsetArray && t <= TypeArrayEnum }

// Elem 返回数组的元素类型，非数组返回自身
func (t TypeID) Elem() TypeID {
	if t.IsArray() {
		return t - OffsetArray
	}
	return t
}

// Array 返回标量类型对应的数组类型
func (t TypeID) Array() TypeID {
	if t.IsArray() || t == TypeNone {
		return t
	}
	return t + OffsetArray
}

// Valid 是否为已知类型
func (t TypeID) Valid() bool {
	_, ok := typeNames[t.Elem()]
	return ok
}

// NeedsTypeName struct 与 enum 类型的字段必须引用一个类型名
func (t TypeID) NeedsTypeName() bool {
	e := t.Elem()
	return e == TypeStruct || e == TypeEnum
}

func (t TypeID) String() string {
	name, ok := typeNames[t.Elem()]
	if !ok {
		return "none"
	}
	if t.IsArray() {
		return name + "[]"
	}
	return name
}

// ParseTypeID 解析 "int32"、"struct[]" 形式的类型名
func ParseTypeID(s string) (TypeID, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	array := strings.HasSuffix(s, "[]")
	s = strings.TrimSuffix(s, "[]")
	switch s {
	case "float":
		s = "float32"
	case "double":
		s = "float64"
	}
	for id, name := range typeNames {
		if name == s {
			if array {
				return id.Array(), true
			}
			return id, true
		}
	}
	return TypeNone, false
}
