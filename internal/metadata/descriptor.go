package metadata

// FieldDescriptor 描述结构体中的一个字段，注册后不可修改
type FieldDescriptor struct {
	Kind        TypeID
	TypeName    string // struct/enum 字段引用的类型名
	Name        string
	Description string
	Index       int // 字段在结构体中的声明位置

	elem *FieldDescriptor
}

// Element 返回数组字段的元素描述（与数组字段同名、同序号）
func (f *FieldDescriptor) Element() *FieldDescriptor {
	if f.elem != nil {
		return f.elem
	}
	return f
}

// RootField 构造根结构体的合成字段，名称为空
func RootField(typeName string) *FieldDescriptor {
	return &FieldDescriptor{Kind: TypeStruct, TypeName: typeName, Index: -1}
}

// StructDescriptor 描述一个结构体类型，字段顺序即声明顺序
type StructDescriptor struct {
	TypeName    string
	Description string
	Fields      []*FieldDescriptor

	byName map[string]*FieldDescriptor
}

// NewStruct 按声明顺序构造结构体描述，并为每个字段设置序号
func NewStruct(typeName, description string, fields ...FieldDescriptor) *StructDescriptor {
	s := &StructDescriptor{
		TypeName:    typeName,
		Description: description,
		Fields:      make([]*FieldDescriptor, 0, len(fields)),
		byName:      make(map[string]*FieldDescriptor, len(fields)),
	}
	for i := range fields {
		f := fields[i]
		f.Index = i
		if f.Kind.IsArray() {
			f.elem = &FieldDescriptor{
				Kind:        f.Kind.Elem(),
				TypeName:    f.TypeName,
				Name:        f.Name,
				Description: f.Description,
				Index:       i,
			}
		}
		fp := &f
		s.Fields = append(s.Fields, fp)
		if _, dup := s.byName[f.Name]; !dup {
			s.byName[f.Name] = fp
		}
	}
	return s
}

// NumFields 字段数量
func (s *StructDescriptor) NumFields() int { return len(s.Fields) }

// Field 按序号查找字段
func (s *StructDescriptor) Field(index int) (*FieldDescriptor, bool) {
	if index < 0 || index >= len(s.Fields) {
		return nil, false
	}
	return s.Fields[index], true
}

// FieldByName 按名称查找字段
func (s *StructDescriptor) FieldByName(name string) (*FieldDescriptor, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// EnumEntry 枚举项
type EnumEntry struct {
	Name        string
	Value       int32
	Description string
}

// EnumDescriptor 枚举类型描述
type EnumDescriptor struct {
	TypeName    string
	Description string
	Entries     []EnumEntry
}

// NewEnum 构造枚举描述
func NewEnum(typeName, description string, entries ...EnumEntry) *EnumDescriptor {
	return &EnumDescriptor{TypeName: typeName, Description: description, Entries: entries}
}

// NameOf 返回数值对应的第一个枚举名
func (e *EnumDescriptor) NameOf(value int32) (string, bool) {
	for _, entry := range e.Entries {
		if entry.Value == value {
			return entry.Name, true
		}
	}
	return "", false
}

// ValueOf 返回枚举名对应的数值
func (e *EnumDescriptor) ValueOf(name string) (int32, bool) {
	for _, entry := range e.Entries {
		if entry.Name == name {
			return entry.Value, true
		}
	}
	return 0, false
}

// IsValid 数值是否为已声明的枚举值
func (e *EnumDescriptor) IsValid(value int32) bool {
	_, ok := e.NameOf(value)
	return ok
}

// Default 第一个枚举项的值，无枚举项时为 0
func (e *EnumDescriptor) Default() int32 {
	if len(e.Entries) == 0 {
		return 0
	}
	return e.Entries[0].Value
}
