// data.go
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

package helpers

import (
	"context"
	"testing"

	puresqlite "github.com/glebarez/sqlite"
	"github.com/localnerve/jam-build-recordsdb/internal/config"
	"github.com/localnerve/jam-build-recordsdb/internal/database"
	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"github.com/localnerve/jam-build-recordsdb/internal/models"
	"github.com/localnerve/jam-build-recordsdb/internal/realtime"
	"github.com/localnerve/jam-build-recordsdb/internal/services"
	"github.com/localnerve/jam-build-recordsdb/internal/tables"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// Engine bundles the wired services over one test database
type Engine struct {
	DB          *gorm.DB
	Mapper      *tables.Mapper
	Bus         *realtime.Bus
	Collections *services.CollectionService
	Records     *services.RecordService
}

// NewTestDB opens a migrated in-memory SQLite database. The pool holds a
// single connection so every query sees the same memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := &config.Config{DBType: "sqlite", DBDatabase: ":memory:", DBLogLevel: "silent"}
	db, err := database.Open(puresqlite.Open(cfg.DBDatabase), cfg)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// NewTestEngine wires the schema store, table mapper, record engine and
// event bus over a fresh test database
func NewTestEngine(t *testing.T) *Engine {
	t.Helper()

	db := NewTestDB(t)
	log := zaptest.NewLogger(t).Sugar()

	mapper, err := tables.NewMapper(db, nil, tables.DefaultCacheSize, log)
	if err != nil {
		t.Fatalf("Failed to create table mapper: %v", err)
	}
	bus := realtime.NewBus(realtime.DefaultBuffer, log)
	t.Cleanup(bus.Close)

	return &Engine{
		DB:          db,
		Mapper:      mapper,
		Bus:         bus,
		Collections: services.NewCollectionService(db, mapper, bus, log),
		Records:     services.NewRecordService(db, mapper, bus, log),
	}
}

// CreateTestCollection creates a base collection with the given fields
func CreateTestCollection(t *testing.T, e *Engine, name string, defs ...fields.Definition) *models.Collection {
	t.Helper()

	schema := append([]fields.Definition{}, defs...)
	coll, err := e.Collections.Create(context.Background(), &services.CollectionInput{
		Name:   &name,
		Schema: &schema,
	})
	if err != nil {
		t.Fatalf("Failed to create collection %s: %v", name, err)
	}
	return coll
}

// CreateTestRecord inserts a record into a collection
func CreateTestRecord(t *testing.T, e *Engine, collection string, payload map[string]interface{}) *models.Record {
	t.Helper()

	rec, err := e.Records.Create(context.Background(), collection, payload, "")
	if err != nil {
		t.Fatalf("Failed to create record in %s: %v", collection, err)
	}
	return rec
}

// Field builds a field definition
func Field(name string, fieldType fields.Type, rules fields.Validation) fields.Definition {
	return fields.Definition{Name: name, Type: fieldType, Validation: rules}
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
