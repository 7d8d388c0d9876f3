// types.go
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

// Package fields holds the closed catalog of field types a collection schema
// may use, the field definition model, and the tagged values records carry.
package fields

// Type names a member of the field type catalog
type Type string

// Supported field types
const (
	Text     Type = "text"
	Editor   Type = "editor"
	Number   Type = "number"
	Bool     Type = "bool"
	Email    Type = "email"
	URL      Type = "url"
	Date     Type = "date"
	Select   Type = "select"
	Relation Type = "relation"
	File     Type = "file"
	JSON     Type = "json"
)

// Storage is the physical representation of a field type
type Storage int

const (
	StorageString Storage = iota
	StorageNumber
	StorageBool
	StorageTimestamp
	StorageSerialized
)

func (s Storage) String() string {
	switch s {
	case StorageString:
		return "string"
	case StorageNumber:
		return "number"
	case StorageBool:
		return "boolean"
	case StorageTimestamp:
		return "timestamp"
	case StorageSerialized:
		return "serialized-text"
	}
	return "unknown"
}

// Validation is the constraint bundle of a field definition.
// Only the constraints the catalog lists for the field's type may be set.
type Validation struct {
	Required   bool     `json:"required"`
	Unique     bool     `json:"unique,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	MinLength  *int     `json:"min_length,omitempty"`
	MaxLength  *int     `json:"max_length,omitempty"`
	Pattern    string   `json:"pattern,omitempty"`
	Values     []string `json:"values,omitempty"`
	Collection string   `json:"collection,omitempty"`
}

// Definition is one entry of a collection schema
type Definition struct {
	Name       string     `json:"name"`
	Type       Type       `json:"type"`
	Validation Validation `json:"validation"`
	Label      string     `json:"label,omitempty"`
	Hint       string     `json:"hint,omitempty"`
}

// Find returns the definition named name
func Find(defs []Definition, name string) (Definition, bool) {
	for _, def := range defs {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}
