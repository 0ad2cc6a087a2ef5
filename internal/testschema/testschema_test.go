package testschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 每个 schema 结构体都有对应的 Go 类型
func TestAll_CoversSchema(t *testing.T) {
	reg, factory := MustRegistry()
	assert.ElementsMatch(t, reg.StructNames(), factory.TypeNames())
	for _, name := range reg.StructNames() {
		s, ok := factory.Create(name)
		if assert.True(t, ok, name) {
			assert.Equal(t, name, s.TypeName())
		}
	}
}
