package model

import (
	"strings"
	"sync"

	"github.com/gertd/go-pluralize"
	"github.com/iancoleman/strcase"
)

var plurals = sync.OnceValue(pluralize.NewClient)

// TableName derives a table name from a model type name: the name is snake
// cased, a "_model" or "_m" suffix and an "m_" prefix are removed and the last
// word is pluralised. UserModel becomes "users", BlogCategory_m "blog_categories".
func TableName(typeName string) string {
	name := strcase.ToSnake(typeName)
	for _, suffix := range []string{"_model", "_m"} {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok && trimmed != "" {
			name = trimmed
			break
		}
	}
	if trimmed, ok := strings.CutPrefix(name, "m_"); ok && trimmed != "" {
		name = trimmed
	}
	if name == "" {
		return ""
	}
	words := strings.Split(name, "_")
	last := len(words) - 1
	words[last] = plurals().Plural(words[last])
	return strings.Join(words, "_")
}
