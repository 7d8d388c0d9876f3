package fields

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxNameLength bounds collection and field names
const MaxNameLength = 100

var identifier = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// SystemColumns are present on every record table
var SystemColumns = []string{"id", "created", "updated"}

var reservedFieldNames = map[string]struct{}{
	"id": {}, "created": {}, "updated": {}, "deleted": {},
	"select": {}, "from": {}, "where": {}, "insert": {}, "update": {}, "delete": {},
	"table": {}, "index": {}, "primary": {}, "foreign": {}, "key": {},
	"user": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
}

// IsIdentifier reports whether name is usable as a storage identifier
func IsIdentifier(name string) bool {
	return len(name) > 0 && len(name) <= MaxNameLength && identifier.MatchString(name)
}

// IsSystemColumn reports whether name is one of the record system columns
func IsSystemColumn(name string) bool {
	for _, c := range SystemColumns {
		if c == name {
			return true
		}
	}
	return false
}

// CheckDefinitions verifies a schema field list. It returns a message per
// offending field; an empty map means the list is acceptable.
func CheckDefinitions(defs []Definition) map[string]string {
	problems := make(map[string]string)
	seen := make(map[string]struct{}, len(defs))

	for i, def := range defs {
		key := def.Name
		if key == "" {
			key = fmt.Sprintf("schema[%d]", i)
		}
		if msg := checkDefinition(def); msg != "" {
			problems[key] = msg
			continue
		}
		lower := strings.ToLower(def.Name)
		if _, dup := seen[lower]; dup {
			problems[key] = "Duplicate field name"
			continue
		}
		seen[lower] = struct{}{}
	}

	return problems
}

func checkDefinition(def Definition) string {
	if !IsIdentifier(def.Name) {
		return "Field name must start with a letter and contain only letters, digits and underscores"
	}
	if _, reserved := reservedFieldNames[strings.ToLower(def.Name)]; reserved {
		return fmt.Sprintf("Field name '%s' is reserved", def.Name)
	}

	kind, ok := Lookup(def.Type)
	if !ok {
		return fmt.Sprintf("Unknown field type '%s'", def.Type)
	}

	v := def.Validation
	for constraint, set := range map[string]bool{
		ConstraintUnique:     v.Unique,
		ConstraintMin:        v.Min != nil,
		ConstraintMax:        v.Max != nil,
		ConstraintMinLength:  v.MinLength != nil,
		ConstraintMaxLength:  v.MaxLength != nil,
		ConstraintPattern:    v.Pattern != "",
		ConstraintValues:     len(v.Values) > 0,
		ConstraintCollection: v.Collection != "",
	} {
		if set && !kind.Allows(constraint) {
			return fmt.Sprintf("Constraint '%s' does not apply to type '%s'", constraint, def.Type)
		}
	}

	if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
		return "min must not exceed max"
	}
	if v.MinLength != nil && *v.MinLength < 0 || v.MaxLength != nil && *v.MaxLength < 0 {
		return "Length bounds must not be negative"
	}
	if v.MinLength != nil && v.MaxLength != nil && *v.MinLength > *v.MaxLength {
		return "min_length must not exceed max_length"
	}
	if v.Pattern != "" {
		if _, err := CompilePattern(v.Pattern); err != nil {
			return fmt.Sprintf("Invalid pattern: %v", err)
		}
	}

	switch def.Type {
	case Select:
		if len(v.Values) == 0 {
			return "Select fields require 'values'"
		}
	case Relation:
		if v.Collection == "" {
			return "Relation fields require a target 'collection'"
		}
	}

	return ""
}

// ColumnSize returns the column size for string storage, 0 meaning unbounded
func ColumnSize(def Definition) int {
	kind, ok := Lookup(def.Type)
	if !ok || kind.Storage != StorageString {
		return 0
	}
	if kind.Size > 0 {
		return kind.Size
	}
	if limit := def.Validation.MaxLength; limit != nil && *limit > 0 && *limit <= 255 {
		return *limit
	}
	return 0
}
