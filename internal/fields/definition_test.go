package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestCheckDefinitionsAccepts(t *testing.T) {
	defs := []Definition{
		{Name: "title", Type: Text, Validation: Validation{Required: true, MaxLength: intPtr(100), Pattern: "[A-Z]"}},
		{Name: "score", Type: Number, Validation: Validation{Min: floatPtr(0), Max: floatPtr(5)}},
		{Name: "state", Type: Select, Validation: Validation{Values: []string{"a", "b"}}},
		{Name: "author", Type: Relation, Validation: Validation{Collection: "people"}},
		{Name: "attachments", Type: File},
	}
	assert.Empty(t, CheckDefinitions(defs))
}

func TestCheckDefinitionsRejects(t *testing.T) {
	cases := []struct {
		name string
		def  Definition
		msg  string
	}{
		{"bad name", Definition{Name: "1st", Type: Text}, "Field name must start with a letter and contain only letters, digits and underscores"},
		{"reserved", Definition{Name: "created", Type: Text}, "Field name 'created' is reserved"},
		{"unknown type", Definition{Name: "x", Type: "blob"}, "Unknown field type 'blob'"},
		{"foreign constraint", Definition{Name: "flag", Type: Bool, Validation: Validation{Unique: true}}, "Constraint 'unique' does not apply to type 'bool'"},
		{"min above max", Definition{Name: "n", Type: Number, Validation: Validation{Min: floatPtr(3), Max: floatPtr(1)}}, "min must not exceed max"},
		{"negative length", Definition{Name: "s", Type: Text, Validation: Validation{MinLength: intPtr(-1)}}, "Length bounds must not be negative"},
		{"length order", Definition{Name: "s", Type: Text, Validation: Validation{MinLength: intPtr(5), MaxLength: intPtr(2)}}, "min_length must not exceed max_length"},
		{"select without values", Definition{Name: "s", Type: Select}, "Select fields require 'values'"},
		{"relation without target", Definition{Name: "r", Type: Relation}, "Relation fields require a target 'collection'"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			problems := CheckDefinitions([]Definition{tc.def})
			key := tc.def.Name
			assert.Equal(t, tc.msg, problems[key])
		})
	}
}

func TestCheckDefinitionsDuplicateIgnoresCase(t *testing.T) {
	problems := CheckDefinitions([]Definition{
		{Name: "Title", Type: Text},
		{Name: "title", Type: Text},
	})
	assert.Equal(t, map[string]string{"title": "Duplicate field name"}, problems)
}

func TestCheckDefinitionsBadPattern(t *testing.T) {
	problems := CheckDefinitions([]Definition{{Name: "s", Type: Text, Validation: Validation{Pattern: "("}}})
	assert.Contains(t, problems["s"], "Invalid pattern")
}

func TestColumnSize(t *testing.T) {
	assert.Equal(t, 255, ColumnSize(Definition{Type: Email}))
	assert.Equal(t, 36, ColumnSize(Definition{Type: Relation}))
	assert.Equal(t, 40, ColumnSize(Definition{Type: Text, Validation: Validation{MaxLength: intPtr(40)}}))
	assert.Equal(t, 0, ColumnSize(Definition{Type: Text, Validation: Validation{MaxLength: intPtr(4000)}}))
	assert.Equal(t, 0, ColumnSize(Definition{Type: Number}))
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("posts_2024"))
	assert.False(t, IsIdentifier(""))
	assert.False(t, IsIdentifier("_hidden"))
	assert.False(t, IsIdentifier("with-dash"))
	assert.True(t, IsSystemColumn("updated"))
	assert.False(t, IsSystemColumn("title"))
}
