package metadata

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

var (
	ErrRegistryFrozen = errors.New("registry is frozen")
	ErrDuplicateType  = errors.New("duplicate type name")
	ErrInvalidType    = errors.New("invalid type descriptor")
)

// Registry 类型注册表，保存结构体与枚举的描述
// 启动阶段注册完毕后调用 Freeze，之后只读，可并发查找
type Registry struct {
	mu      sync.RWMutex
	structs map[string]*StructDescriptor
	enums   map[string]*EnumDescriptor
	frozen  bool
}

// NewRegistry 创建空的注册表
func NewRegistry() *Registry {
	return &Registry{
		structs: make(map[string]*StructDescriptor),
		enums:   make(map[string]*EnumDescriptor),
	}
}

// RegisterStruct 注册结构体描述
func (r *Registry) RegisterStruct(s *StructDescriptor) error {
	if err := validateStruct(s); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("Registry.RegisterStruct %s: %w", s.TypeName, ErrRegistryFrozen)
	}
	if _, ok := r.structs[s.TypeName]; ok {
		return fmt.Errorf("Registry.RegisterStruct %s: %w", s.TypeName, ErrDuplicateType)
	}
	r.structs[s.TypeName] = s
	return nil
}

// RegisterEnum 注册枚举描述
func (r *Registry) RegisterEnum(e *EnumDescriptor) error {
	if err := validateEnum(e); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("Registry.RegisterEnum %s: %w", e.TypeName, ErrRegistryFrozen)
	}
	if _, ok := r.enums[e.TypeName]; ok {
		return fmt.Errorf("Registry.RegisterEnum %s: %w", e.TypeName, ErrDuplicateType)
	}
	r.enums[e.TypeName] = e
	return nil
}

// FindStruct 按类型名查找结构体
func (r *Registry) FindStruct(typeName string) (*StructDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.structs[typeName]
	return s, ok
}

// FindField 按类型名和字段名查找字段
func (r *Registry) FindField(typeName, fieldName string) (*FieldDescriptor, bool) {
	s, ok := r.FindStruct(typeName)
	if !ok {
		return nil, false
	}
	return s.FieldByName(fieldName)
}

// FindEnum 按类型名查找枚举
func (r *Registry) FindEnum(typeName string) (*EnumDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enums[typeName]
	return e, ok
}

// Freeze 校验类型引用并冻结注册表
// 存在无法解析的引用时返回错误，注册表保持可写
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for _, s := range r.structs {
		for _, f := range s.Fields {
			switch f.Kind.Elem() {
			case TypeStruct:
				if _, ok := r.structs[f.TypeName]; !ok {
					err = multierr.Append(err, fmt.Errorf("%s.%s: unknown struct %q", s.TypeName, f.Name, f.TypeName))
				}
			case TypeEnum:
				if _, ok := r.enums[f.TypeName]; !ok {
					err = multierr.Append(err, fmt.Errorf("%s.%s: unknown enum %q", s.TypeName, f.Name, f.TypeName))
				}
			}
		}
	}
	if err != nil {
		return fmt.Errorf("Registry.Freeze: %w", err)
	}
	r.frozen = true
	return nil
}

// Frozen 是否已冻结
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// StructNames 返回已注册的结构体名，按字典序
func (r *Registry) StructNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.structs))
	for name := range r.structs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnumNames 返回已注册的枚举名，按字典序
func (r *Registry) EnumNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.enums))
	for name := range r.enums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateStruct(s *StructDescriptor) error {
	if s == nil {
		return fmt.Errorf("nil struct descriptor: %w", ErrInvalidType)
	}
	var err error
	if s.TypeName == "" {
		err = multierr.Append(err, errors.New("empty struct type name"))
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			err = multierr.Append(err, fmt.Errorf("field #%d: empty name", i))
		}
		if _, dup := seen[f.Name]; dup {
			err = multierr.Append(err, fmt.Errorf("field %q: duplicate name", f.Name))
		}
		seen[f.Name] = struct{}{}
		if !f.Kind.Valid() {
			err = multierr.Append(err, fmt.Errorf("field %q: invalid kind %d", f.Name, f.Kind))
		}
		if f.Kind.NeedsTypeName() && f.TypeName == "" {
			err = multierr.Append(err, fmt.Errorf("field %q: %s needs a type name", f.Name, f.Kind))
		}
		if f.Index != i {
			err = multierr.Append(err, fmt.Errorf("field %q: index %d, declared at %d", f.Name, f.Index, i))
		}
	}
	if err != nil {
		return fmt.Errorf("struct %q: %w: %w", s.TypeName, ErrInvalidType, err)
	}
	return nil
}

func validateEnum(e *EnumDescriptor) error {
	if e == nil {
		return fmt.Errorf("nil enum descriptor: %w", ErrInvalidType)
	}
	var err error
	if e.TypeName == "" {
		err = multierr.Append(err, errors.New("empty enum type name"))
	}
	seen := make(map[string]struct{}, len(e.Entries))
	for _, entry := range e.Entries {
		if entry.Name == "" {
			err = multierr.Append(err, errors.New("entry with empty name"))
		}
		if _, dup := seen[entry.Name]; dup {
			err = multierr.Append(err, fmt.Errorf("entry %q: duplicate name", entry.Name))
		}
		seen[entry.Name] = struct{}{}
	}
	if err != nil {
		return fmt.Errorf("enum %q: %w: %w", e.TypeName, ErrInvalidType, err)
	}
	return nil
}
