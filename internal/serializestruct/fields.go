package serializestruct

import (
	"reflect"
	"strings"
	"sync"
)

// TagName 结构体字段与 schema 字段名的绑定标签，例如 `fmq:"value"`
const TagName = "fmq"

// structInfo 缓存一个 Go 结构体类型的字段绑定
type structInfo struct {
	byName map[string][]int
}

var infoCache sync.Map // reflect.Type -> *structInfo

func infoOf(t reflect.Type) *structInfo {
	if v, ok := infoCache.Load(t); ok {
		return v.(*structInfo)
	}
	info := &structInfo{byName: make(map[string][]int)}
	collectFields(t, nil, info)
	v, _ := infoCache.LoadOrStore(t, info)
	return v.(*structInfo)
}

func collectFields(t reflect.Type, prefix []int, info *structInfo) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int{}, prefix...), i)
		// 匿名嵌入的结构体展开其字段
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Tag.Get(TagName) == "" {
			collectFields(sf.Type, index, info)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		name := sf.Tag.Get(TagName)
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(sf.Name)
		}
		if _, dup := info.byName[name]; !dup {
			info.byName[name] = index
		}
	}
}

// lookup 返回名称对应的可寻址字段
func (si *structInfo) lookup(v reflect.Value, name string) (reflect.Value, bool) {
	index, ok := si.byName[name]
	if !ok {
		return reflect.Value{}, false
	}
	return v.FieldByIndex(index), true
}
