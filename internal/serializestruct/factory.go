// Package serializestruct 在强类型 Go 结构体与访问者事件之间转换
package serializestruct

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	ErrFactoryFrozen  = errors.New("factory is frozen")
	ErrNotStructPtr   = errors.New("prototype must be a pointer to struct")
	ErrDuplicateMaker = errors.New("constructor already registered")
)

// Struct 可被序列化的消息，TypeName 对应注册表中的结构体类型名
type Struct interface {
	TypeName() string
}

// Factory 按类型名创建消息实例
type Factory struct {
	mu     sync.RWMutex
	ctors  map[string]func() Struct
	frozen bool
}

// NewFactory 创建空工厂
func NewFactory() *Factory {
	return &Factory{ctors: make(map[string]func() Struct)}
}

// Register 注册类型名对应的构造函数
func (f *Factory) Register(typeName string, ctor func() Struct) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frozen {
		return fmt.Errorf("Factory.Register %s: %w", typeName, ErrFactoryFrozen)
	}
	if _, ok := f.ctors[typeName]; ok {
		return fmt.Errorf("Factory.Register %s: %w", typeName, ErrDuplicateMaker)
	}
	f.ctors[typeName] = ctor
	return nil
}

// RegisterType 以原型注册，每次 Create 通过反射分配一个新的零值实例
func (f *Factory) RegisterType(prototype Struct) error {
	t := reflect.TypeOf(prototype)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("Factory.RegisterType %T: %w", prototype, ErrNotStructPtr)
	}
	elem := t.Elem()
	return f.Register(prototype.TypeName(), func() Struct {
		return reflect.New(elem).Interface().(Struct)
	})
}

// Create 创建类型名对应的新实例
func (f *Factory) Create(typeName string) (Struct, bool) {
	f.mu.RLock()
	ctor, ok := f.ctors[typeName]
	f.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Freeze 冻结工厂，之后的注册会失败
func (f *Factory) Freeze() {
	f.mu.Lock()
	f.frozen = true
	f.mu.Unlock()
}

// TypeNames 已注册的类型名
func (f *Factory) TypeNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.ctors))
	for name := range f.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
