package models

import (
	"bytes"
	"time"

	"github.com/goccy/go-json"
	"github.com/localnerve/jam-build-recordsdb/internal/fields"
)

// Record is one row of a collection table in its response shape:
// the system columns followed by the field values in schema order.
type Record struct {
	ID      string
	Created time.Time
	Updated time.Time
	Values  *fields.Values
}

// Get returns the value of a field
func (r *Record) Get(name string) (fields.Value, bool) {
	return r.Values.Get(name)
}

// Map returns the record as a plain map
func (r *Record) Map() map[string]interface{} {
	out := r.Values.Map()
	out["id"] = r.ID
	out["created"] = r.Created.UTC().Format(time.RFC3339Nano)
	out["updated"] = r.Updated.UTC().Format(time.RFC3339Nano)
	return out
}

// MarshalJSON writes id, created, updated, then fields in schema order
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	head, err := json.Marshal(struct {
		ID      string `json:"id"`
		Created string `json:"created"`
		Updated string `json:"updated"`
	}{
		ID:      r.ID,
		Created: r.Created.UTC().Format(time.RFC3339Nano),
		Updated: r.Updated.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	buf.Write(head[:len(head)-1])
	if err := r.Values.WriteFields(&buf, true); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
