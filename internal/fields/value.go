package fields

import (
	"bytes"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Value is a tagged field value. Exactly one payload slot is meaningful,
// selected by the storage representation of Type.
type Value struct {
	Type Type
	Null bool

	str  string
	num  float64
	flag bool
	at   time.Time
	list []string
	doc  interface{}
}

// NullValue is an explicit null of type t
func NullValue(t Type) Value { return Value{Type: t, Null: true} }

// StringValue tags a string for one of the string-stored types
func StringValue(t Type, s string) Value { return Value{Type: t, str: s} }

// NumberValue tags a number
func NumberValue(n float64) Value { return Value{Type: Number, num: n} }

// BoolValue tags a boolean
func BoolValue(b bool) Value { return Value{Type: Bool, flag: b} }

// TimeValue tags a date, normalized to UTC
func TimeValue(t time.Time) Value { return Value{Type: Date, at: t.UTC()} }

// ListValue tags a list of opaque file identifiers
func ListValue(ids []string) Value {
	if ids == nil {
		ids = []string{}
	}
	return Value{Type: File, list: ids}
}

// JSONValue tags an arbitrary structured value
func JSONValue(doc interface{}) Value { return Value{Type: JSON, doc: doc} }

// String returns the string payload
func (v Value) String() string { return v.str }

// Float returns the number payload
func (v Value) Float() float64 { return v.num }

// Bool returns the boolean payload
func (v Value) Bool() bool { return v.flag }

// Time returns the date payload
func (v Value) Time() time.Time { return v.at }

// List returns the file identifier payload
func (v Value) List() []string { return v.list }

// Interface returns the value in its API (JSON) shape
func (v Value) Interface() interface{} {
	if v.Null {
		return nil
	}
	kind, ok := Lookup(v.Type)
	if !ok {
		return nil
	}
	switch kind.Storage {
	case StorageString:
		return v.str
	case StorageNumber:
		return v.num
	case StorageBool:
		return v.flag
	case StorageTimestamp:
		return v.at.Format(time.RFC3339Nano)
	case StorageSerialized:
		if v.Type == File {
			return v.list
		}
		return v.doc
	}
	return nil
}

// Serialize returns the serialized text form of a file or json value
func (v Value) Serialize() ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	if v.Type == File {
		return json.Marshal(v.list)
	}
	return json.Marshal(v.doc)
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Equal reports whether two values hold the same content
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.Null != o.Null {
		return false
	}
	a, errA := json.Marshal(v.Interface())
	b, errB := json.Marshal(o.Interface())
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Values is an ordered mapping from field name to tagged value.
// Iteration and JSON output follow insertion order.
type Values struct {
	keys []string
	m    map[string]Value
}

// NewValues creates an empty ordered value map
func NewValues() *Values {
	return &Values{m: make(map[string]Value)}
}

// Set stores v under name, keeping the first insertion position
func (vs *Values) Set(name string, v Value) {
	if _, ok := vs.m[name]; !ok {
		vs.keys = append(vs.keys, name)
	}
	vs.m[name] = v
}

// Get returns the value stored under name
func (vs *Values) Get(name string) (Value, bool) {
	if vs == nil {
		return Value{}, false
	}
	v, ok := vs.m[name]
	return v, ok
}

// Len is the number of stored values
func (vs *Values) Len() int {
	if vs == nil {
		return 0
	}
	return len(vs.keys)
}

// Keys returns the field names in order
func (vs *Values) Keys() []string {
	if vs == nil {
		return nil
	}
	return append([]string(nil), vs.keys...)
}

// Map returns the values in their API shape
func (vs *Values) Map() map[string]interface{} {
	out := make(map[string]interface{}, vs.Len())
	if vs == nil {
		return out
	}
	for _, k := range vs.keys {
		out[k] = vs.m[k].Interface()
	}
	return out
}

// MarshalJSON writes the values as an object in field order
func (vs *Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := vs.WriteFields(&buf, false); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteFields writes `"name":value` pairs in order, with a leading comma
// when leadingComma is set and at least one pair is written.
func (vs *Values) WriteFields(buf *bytes.Buffer, leadingComma bool) error {
	if vs == nil {
		return nil
	}
	for i, k := range vs.keys {
		if i > 0 || leadingComma {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return err
		}
		val, err := json.Marshal(vs.m[k])
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	return nil
}
