// builder.go
//
// A schema-driven collections and records service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-recordsdb.
// jam-build-recordsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-recordsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-recordsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package tables

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"github.com/localnerve/jam-build-recordsdb/internal/models"
)

// Leading struct fields of every generated row model
const (
	idIndex = iota
	createdIndex
	updatedIndex
	firstFieldIndex
)

var (
	stringPtrType = reflect.TypeOf((*string)(nil))
	floatPtrType  = reflect.TypeOf((*float64)(nil))
	boolPtrType   = reflect.TypeOf((*bool)(nil))
	timePtrType   = reflect.TypeOf((*time.Time)(nil))
	timeType      = reflect.TypeOf(time.Time{})
	jsonType      = reflect.TypeOf(models.JSON{})
)

// BuildModel generates the gorm row model for a collection table: the
// system columns followed by one nullable column per field definition,
// typed by the storage representation of the field's catalog entry.
func BuildModel(table string, defs []fields.Definition) (reflect.Type, error) {
	sf := []reflect.StructField{
		{Name: "ID", Type: reflect.TypeOf(""), Tag: gormTag("column:id", "primaryKey", "size:36")},
		{Name: "Created", Type: timeType, Tag: gormTag("column:created", "not null", "index:"+IndexName(table, "created"))},
		{Name: "Updated", Type: timeType, Tag: gormTag("column:updated", "not null")},
	}

	for i, def := range defs {
		goType, parts, err := columnFor(table, def)
		if err != nil {
			return nil, err
		}
		sf = append(sf, reflect.StructField{
			Name: fmt.Sprintf("F%d", i),
			Type: goType,
			Tag:  gormTag(parts...),
		})
	}

	return reflect.StructOf(sf), nil
}

func columnFor(table string, def fields.Definition) (reflect.Type, []string, error) {
	kind, ok := fields.Lookup(def.Type)
	if !ok {
		return nil, nil, fmt.Errorf("field %s: unknown type %q", def.Name, def.Type)
	}

	parts := []string{"column:" + def.Name}
	var goType reflect.Type

	switch kind.Storage {
	case fields.StorageString:
		goType = stringPtrType
		if size := columnSize(def); size > 0 {
			parts = append(parts, fmt.Sprintf("size:%d", size))
		}
	case fields.StorageNumber:
		goType = floatPtrType
	case fields.StorageBool:
		goType = boolPtrType
	case fields.StorageTimestamp:
		goType = timePtrType
	case fields.StorageSerialized:
		goType = jsonType
	default:
		return nil, nil, fmt.Errorf("field %s: unsupported storage %s", def.Name, kind.Storage)
	}

	if name := indexFor(table, def); name != "" {
		if def.Validation.Unique {
			parts = append(parts, "uniqueIndex:"+name)
		} else {
			parts = append(parts, "index:"+name)
		}
	}

	return goType, parts, nil
}

// columnSize is the string column size. Indexed columns need a bound.
func columnSize(def fields.Definition) int {
	size := fields.ColumnSize(def)
	if size == 0 && indexed(def) && storageOf(def) == fields.StorageString {
		size = 255
	}
	return size
}

// IndexName is the physical index name for a column of table
func IndexName(table, column string) string {
	return "idx_" + table + "_" + column
}

// indexFor returns the index a field carries, if any. Relation columns are
// indexed for lookups, unique fields get a unique index.
func indexFor(table string, def fields.Definition) string {
	if def.Validation.Unique || def.Type == fields.Relation {
		return IndexName(table, def.Name)
	}
	return ""
}

func gormTag(parts ...string) reflect.StructTag {
	return reflect.StructTag(`gorm:"` + strings.Join(parts, ";") + `"`)
}

// ColumnDiff is the set of column changes needed to move a live table from
// one field list to another.
type ColumnDiff struct {
	Add     []fields.Definition
	Drop    []string
	Alter   []fields.Definition
	Reindex []fields.Definition
}

// Empty reports whether the diff changes nothing
func (d ColumnDiff) Empty() bool {
	return len(d.Add) == 0 && len(d.Drop) == 0 && len(d.Alter) == 0 && len(d.Reindex) == 0
}

// Diff computes the column changes between two field lists. Field order
// is not significant for storage.
func Diff(before, after []fields.Definition) ColumnDiff {
	var diff ColumnDiff

	for _, next := range after {
		prev, ok := fields.Find(before, next.Name)
		if !ok {
			diff.Add = append(diff.Add, next)
			continue
		}
		if storageOf(prev) != storageOf(next) || columnSize(prev) != columnSize(next) {
			diff.Alter = append(diff.Alter, next)
		}
		if indexed(prev) != indexed(next) || prev.Validation.Unique != next.Validation.Unique {
			diff.Reindex = append(diff.Reindex, next)
		}
	}

	for _, prev := range before {
		if _, ok := fields.Find(after, prev.Name); !ok {
			diff.Drop = append(diff.Drop, prev.Name)
		}
	}

	return diff
}

func storageOf(def fields.Definition) fields.Storage {
	kind, ok := fields.Lookup(def.Type)
	if !ok {
		return -1
	}
	return kind.Storage
}

func indexed(def fields.Definition) bool {
	return def.Validation.Unique || def.Type == fields.Relation
}
