package protocol

import (
	"sort"
	"sync"

	"github.com/helmut-steiner/finalmq/internal/serializestruct"
)

// Handler 处理一个请求，返回的结构体作为应答负载（可为 nil）
type Handler func(header *Header, payload serializestruct.Struct) (serializestruct.Struct, error)

// Router 按负载类型名分发请求
type Router struct {
	mu             sync.RWMutex
	handlers       map[string]Handler
	defaultHandler Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Handle 注册类型名对应的处理函数，重复注册覆盖旧值
func (r *Router) Handle(typeName string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typeName] = h
}

// SetDefaultHandler 没有匹配的处理函数时使用
func (r *Router) SetDefaultHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = h
}

// Lookup 先按类型名查找，再退回默认处理函数
func (r *Router) Lookup(typeName string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[typeName]; ok {
		return h, true
	}
	if r.defaultHandler != nil {
		return r.defaultHandler, true
	}
	return nil, false
}

// Types 已注册的类型名，按字母序
func (r *Router) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
