package tables

import (
	"fmt"
	"reflect"
	"time"

	"github.com/goccy/go-json"
	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"github.com/localnerve/jam-build-recordsdb/internal/models"
)

// Table is a resolved handle on a collection's physical table. Handles are
// immutable and shared; a schema change produces a new handle.
type Table struct {
	Name       string
	Version    uint64
	Collection *models.Collection

	fields []fields.Definition
	model  reflect.Type
}

func newTable(coll *models.Collection, version uint64) (*Table, error) {
	defs := coll.Fields()
	model, err := BuildModel(coll.Name, defs)
	if err != nil {
		return nil, err
	}
	return &Table{
		Name:       coll.Name,
		Version:    version,
		Collection: coll,
		fields:     defs,
		model:      model,
	}, nil
}

// Fields returns the field definitions in schema order
func (t *Table) Fields() []fields.Definition {
	return t.fields
}

// Field looks up a field definition by name
func (t *Table) Field(name string) (fields.Definition, bool) {
	return fields.Find(t.fields, name)
}

// NewRow returns a pointer to a zero row of the table model
func (t *Table) NewRow() interface{} {
	return reflect.New(t.model).Interface()
}

// NewRows returns a pointer to an empty slice of rows
func (t *Table) NewRows() interface{} {
	return reflect.New(reflect.SliceOf(t.model)).Interface()
}

// Decode converts a scanned row (pointer to the table model) to a record
func (t *Table) Decode(row interface{}) (*models.Record, error) {
	return t.decodeValue(reflect.Indirect(reflect.ValueOf(row)))
}

// DecodeAll converts a scanned slice of rows (from NewRows) to records
func (t *Table) DecodeAll(rows interface{}) ([]*models.Record, error) {
	rv := reflect.Indirect(reflect.ValueOf(rows))
	records := make([]*models.Record, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		rec, err := t.decodeValue(rv.Index(i))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (t *Table) decodeValue(rv reflect.Value) (*models.Record, error) {
	rec := &models.Record{
		ID:      rv.Field(idIndex).String(),
		Created: rv.Field(createdIndex).Interface().(time.Time).UTC(),
		Updated: rv.Field(updatedIndex).Interface().(time.Time).UTC(),
		Values:  fields.NewValues(),
	}

	for i, def := range t.fields {
		value, err := decodeColumn(def, rv.Field(firstFieldIndex+i))
		if err != nil {
			return nil, fmt.Errorf("table %s, column %s: %w", t.Name, def.Name, err)
		}
		rec.Values.Set(def.Name, value)
	}

	return rec, nil
}

func decodeColumn(def fields.Definition, f reflect.Value) (fields.Value, error) {
	if f.Kind() == reflect.Ptr && f.IsNil() {
		return fields.NullValue(def.Type), nil
	}

	switch v := f.Interface().(type) {
	case *string:
		return fields.StringValue(def.Type, *v), nil
	case *float64:
		return fields.NumberValue(*v), nil
	case *bool:
		return fields.BoolValue(*v), nil
	case *time.Time:
		return fields.TimeValue(*v), nil
	case models.JSON:
		if v.IsNull() {
			return fields.NullValue(def.Type), nil
		}
		if def.Type == fields.File {
			var ids []string
			if err := json.Unmarshal(v.JSON, &ids); err != nil {
				return fields.Value{}, err
			}
			return fields.ListValue(ids), nil
		}
		var doc interface{}
		if err := json.Unmarshal(v.JSON, &doc); err != nil {
			return fields.Value{}, err
		}
		return fields.JSONValue(doc), nil
	}

	return fields.Value{}, fmt.Errorf("unexpected column type %s", f.Type())
}

// Columns converts validated values to a column map for insert or update
func (t *Table) Columns(values *fields.Values) (map[string]interface{}, error) {
	out := make(map[string]interface{}, values.Len()+3)
	for _, name := range values.Keys() {
		v, _ := values.Get(name)
		col, err := ColumnValue(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		out[name] = col
	}
	return out, nil
}

// ColumnValue converts a single field value to its storage representation
func ColumnValue(v fields.Value) (interface{}, error) {
	if v.Null {
		return nil, nil
	}

	kind, ok := fields.Lookup(v.Type)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", v.Type)
	}

	switch kind.Storage {
	case fields.StorageString:
		return v.String(), nil
	case fields.StorageNumber:
		return v.Float(), nil
	case fields.StorageBool:
		return v.Bool(), nil
	case fields.StorageTimestamp:
		return v.Time(), nil
	case fields.StorageSerialized:
		raw, err := v.Serialize()
		if err != nil {
			return nil, err
		}
		return models.NewJSON(raw), nil
	}

	return nil, fmt.Errorf("unsupported storage %s", kind.Storage)
}
