package metadata

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"
)

// Schema file layout (YAML or JSON):
//
//	namespace: test
//	enums:
//	  - type: Foo
//	    entries:
//	      - {name: FOO_WORLD, id: 0}
//	structs:
//	  - type: TestStruct
//	    fields:
//	      - {tid: int32, name: value}
//	      - {tid: "struct[]", type: TestInt32, name: items}
//
// 不含点号的类型名加上 namespace 前缀
type schemaFile struct {
	Namespace string         `json:"namespace"`
	Enums     []schemaEnum   `json:"enums"`
	Structs   []schemaStruct `json:"structs"`
}

type schemaEnum struct {
	Type    string            `json:"type"`
	Desc    string            `json:"desc"`
	Entries []schemaEnumEntry `json:"entries"`
}

type schemaEnumEntry struct {
	Name string `json:"name"`
	ID   int32  `json:"id"`
	Desc string `json:"desc"`
}

type schemaStruct struct {
	Type   string        `json:"type"`
	Desc   string        `json:"desc"`
	Fields []schemaField `json:"fields"`
}

type schemaField struct {
	TID  string `json:"tid"`
	Type string `json:"type"`
	Name string `json:"name"`
	Desc string `json:"desc"`
}

// LoadSchemaFile 读取 schema 文件并注册其中的类型
func LoadSchemaFile(reg *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("LoadSchemaFile: %w", err)
	}
	if err := LoadSchema(reg, data); err != nil {
		return fmt.Errorf("LoadSchemaFile %s: %w", path, err)
	}
	return nil
}

// LoadSchema 解析 schema 文档并注册全部枚举和结构体，错误会被合并返回
func LoadSchema(reg *Registry, data []byte) error {
	var sf schemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("LoadSchema: %w", err)
	}
	qualify := func(name string) string {
		if name == "" || sf.Namespace == "" || strings.Contains(name, ".") {
			return name
		}
		return sf.Namespace + "." + name
	}

	var errs error
	for _, se := range sf.Enums {
		entries := make([]EnumEntry, 0, len(se.Entries))
		for _, e := range se.Entries {
			entries = append(entries, EnumEntry{Name: e.Name, Value: e.ID, Description: e.Desc})
		}
		errs = multierr.Append(errs, reg.RegisterEnum(NewEnum(qualify(se.Type), se.Desc, entries...)))
	}
	for _, ss := range sf.Structs {
		fields := make([]FieldDescriptor, 0, len(ss.Fields))
		for _, f := range ss.Fields {
			kind, ok := ParseTypeID(f.TID)
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s.%s: unknown tid %q", qualify(ss.Type), f.Name, f.TID))
				continue
			}
			typeName := ""
			if kind.NeedsTypeName() {
				typeName = qualify(f.Type)
			}
			fields = append(fields, FieldDescriptor{Kind: kind, TypeName: typeName, Name: f.Name, Description: f.Desc})
		}
		errs = multierr.Append(errs, reg.RegisterStruct(NewStruct(qualify(ss.Type), ss.Desc, fields...)))
	}
	return errs
}
