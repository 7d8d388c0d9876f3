package fields

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// Constraint keys used in Kind.Constraints
const (
	ConstraintRequired   = "required"
	ConstraintUnique     = "unique"
	ConstraintMin        = "min"
	ConstraintMax        = "max"
	ConstraintMinLength  = "min_length"
	ConstraintMaxLength  = "max_length"
	ConstraintPattern    = "pattern"
	ConstraintValues     = "values"
	ConstraintCollection = "collection"
)

// Kind is a catalog entry: accepted value shape, applicable constraints
// and storage representation for one field type.
type Kind struct {
	Type        Type
	Storage     Storage
	Size        int
	Constraints []string
	check       func(v interface{}, rules *Validation) (Value, error)
}

// Allows reports whether constraint applies to the kind
func (k *Kind) Allows(constraint string) bool {
	for _, c := range k.Constraints {
		if c == constraint {
			return true
		}
	}
	return false
}

// Check validates a non-null runtime value and returns its tagged form.
// The first failing check is reported.
func (k *Kind) Check(v interface{}, rules *Validation) (Value, error) {
	if rules == nil {
		rules = &Validation{}
	}
	value, err := k.check(v, rules)
	if err != nil {
		return Value{}, err
	}
	if k.Size > 0 && utf8.RuneCountInString(value.str) > k.Size {
		return Value{}, fmt.Errorf("Maximum length is %d", k.Size)
	}
	return value, nil
}

var textConstraints = []string{ConstraintRequired, ConstraintUnique, ConstraintMinLength, ConstraintMaxLength, ConstraintPattern}

var catalog = map[Type]*Kind{
	Text: {
		Type: Text, Storage: StorageString,
		Constraints: textConstraints,
		check:       checkText(Text),
	},
	Editor: {
		Type: Editor, Storage: StorageString,
		Constraints: textConstraints,
		check:       checkText(Editor),
	},
	Number: {
		Type: Number, Storage: StorageNumber,
		Constraints: []string{ConstraintRequired, ConstraintUnique, ConstraintMin, ConstraintMax},
		check:       checkNumber,
	},
	Bool: {
		Type: Bool, Storage: StorageBool,
		Constraints: []string{ConstraintRequired},
		check:       checkBool,
	},
	Email: {
		Type: Email, Storage: StorageString, Size: 255,
		Constraints: []string{ConstraintRequired, ConstraintUnique},
		check:       checkEmail,
	},
	URL: {
		Type: URL, Storage: StorageString, Size: 2048,
		Constraints: []string{ConstraintRequired, ConstraintUnique},
		check:       checkURL,
	},
	Date: {
		Type: Date, Storage: StorageTimestamp,
		Constraints: []string{ConstraintRequired, ConstraintUnique},
		check:       checkDate,
	},
	Select: {
		Type: Select, Storage: StorageString, Size: 255,
		Constraints: []string{ConstraintRequired, ConstraintValues},
		check:       checkSelect,
	},
	Relation: {
		Type: Relation, Storage: StorageString, Size: 36,
		Constraints: []string{ConstraintRequired, ConstraintUnique, ConstraintCollection},
		check:       checkRelation,
	},
	File: {
		Type: File, Storage: StorageSerialized,
		Constraints: []string{ConstraintRequired},
		check:       checkFile,
	},
	JSON: {
		Type: JSON, Storage: StorageSerialized,
		Constraints: []string{ConstraintRequired},
		check:       checkJSON,
	},
}

// Lookup returns the catalog entry for t
func Lookup(t Type) (*Kind, bool) {
	k, ok := catalog[t]
	return k, ok
}

// Types lists the catalog in a stable order
func Types() []Type {
	out := make([]Type, 0, len(catalog))
	for t := range catalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var patterns sync.Map

// CompilePattern compiles a text pattern anchored at the start of the value.
// Compiled patterns are cached.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, err
	}
	patterns.Store(pattern, re)
	return re, nil
}

func checkText(t Type) func(v interface{}, rules *Validation) (Value, error) {
	return func(v interface{}, rules *Validation) (Value, error) {
		s, ok := v.(string)
		if !ok {
			return Value{}, errors.New("Must be a string")
		}
		n := utf8.RuneCountInString(s)
		if rules.MinLength != nil && *rules.MinLength > 0 && n < *rules.MinLength {
			return Value{}, fmt.Errorf("Minimum length is %d", *rules.MinLength)
		}
		if rules.MaxLength != nil && *rules.MaxLength > 0 && n > *rules.MaxLength {
			return Value{}, fmt.Errorf("Maximum length is %d", *rules.MaxLength)
		}
		if rules.Pattern != "" {
			re, err := CompilePattern(rules.Pattern)
			if err != nil || !re.MatchString(s) {
				return Value{}, errors.New("Does not match required pattern")
			}
		}
		return StringValue(t, s), nil
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func checkNumber(v interface{}, rules *Validation) (Value, error) {
	n, ok := toFloat(v)
	if !ok {
		return Value{}, errors.New("Must be a number")
	}
	if rules.Min != nil && n < *rules.Min {
		return Value{}, fmt.Errorf("Minimum value is %s", formatNumber(*rules.Min))
	}
	if rules.Max != nil && n > *rules.Max {
		return Value{}, fmt.Errorf("Maximum value is %s", formatNumber(*rules.Max))
	}
	return NumberValue(n), nil
}

func checkBool(v interface{}, _ *Validation) (Value, error) {
	b, ok := v.(bool)
	if !ok {
		return Value{}, errors.New("Must be a boolean")
	}
	return BoolValue(b), nil
}

func checkEmail(v interface{}, _ *Validation) (Value, error) {
	s, ok := v.(string)
	if !ok {
		return Value{}, errors.New("Must be a string")
	}
	if !strings.Contains(s, "@") || !strings.Contains(s, ".") {
		return Value{}, errors.New("Invalid email format")
	}
	return StringValue(Email, s), nil
}

var urlSchemes = []string{"http://", "https://"}

func checkURL(v interface{}, _ *Validation) (Value, error) {
	s, ok := v.(string)
	if !ok {
		return Value{}, errors.New("Must be a string")
	}
	for _, scheme := range urlSchemes {
		if strings.HasPrefix(s, scheme) {
			return StringValue(URL, s), nil
		}
	}
	return Value{}, errors.New("Invalid URL format")
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date or date-time. Values without a zone are UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func checkDate(v interface{}, _ *Validation) (Value, error) {
	switch d := v.(type) {
	case string:
		t, err := ParseDate(d)
		if err != nil {
			return Value{}, errors.New("Invalid date format")
		}
		return TimeValue(t), nil
	case time.Time:
		return TimeValue(d.UTC()), nil
	}
	return Value{}, errors.New("Must be a date string")
}

func checkSelect(v interface{}, rules *Validation) (Value, error) {
	s, ok := v.(string)
	if !ok {
		return Value{}, errors.New("Must be a string")
	}
	if len(rules.Values) > 0 {
		for _, allowed := range rules.Values {
			if s == allowed {
				return StringValue(Select, s), nil
			}
		}
		return Value{}, fmt.Errorf("Must be one of: %s", strings.Join(rules.Values, ", "))
	}
	return StringValue(Select, s), nil
}

func checkRelation(v interface{}, _ *Validation) (Value, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return Value{}, errors.New("Must be a string (record ID)")
	}
	return StringValue(Relation, s), nil
}

func checkFile(v interface{}, _ *Validation) (Value, error) {
	var ids []string
	switch list := v.(type) {
	case []string:
		ids = append(ids, list...)
	case []interface{}:
		ids = make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return Value{}, errors.New("Must be an array of file IDs")
			}
			ids = append(ids, s)
		}
	default:
		return Value{}, errors.New("Must be an array of file IDs")
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return Value{}, errors.New("Must be an array of file IDs")
		}
	}
	return ListValue(ids), nil
}

func checkJSON(v interface{}, _ *Validation) (Value, error) {
	if _, err := json.Marshal(v); err != nil {
		return Value{}, errors.New("Must be JSON serializable")
	}
	return JSONValue(v), nil
}
