// mapper.go
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
	"context"
	"errors"
	"reflect"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/localnerve/jam-build-recordsdb/internal/models"
	"github.com/localnerve/jam-build-recordsdb/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// DefaultCacheSize is the number of table handles kept when no size is configured
const DefaultCacheSize = 256

// maxResolveAttempts bounds the retries when a schema changes during a load
const maxResolveAttempts = 3

// SchemaSource loads the current definition of a collection by name.
// A missing collection is reported as a not_found CustomError.
type SchemaSource interface {
	FindCollection(ctx context.Context, name string) (*models.Collection, error)
}

// MetaTable reads collection definitions straight from the collections meta-table
type MetaTable struct {
	DB *gorm.DB
}

// FindCollection implements SchemaSource
func (s MetaTable) FindCollection(ctx context.Context, name string) (*models.Collection, error) {
	var coll models.Collection
	err := s.DB.WithContext(ctx).Where("name = ?", name).Take(&coll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("Collection '%s' not found", name)
	}
	if err != nil {
		return nil, types.StorageFailure(err, "Failed to load collection '%s'", name)
	}
	return &coll, nil
}

// Mapper owns the physical tables behind collections. It creates, alters and
// drops them, and resolves collection names to cached table handles.
// Every DDL change invalidates the cached handle for the affected names.
type Mapper struct {
	db     *gorm.DB
	source SchemaSource
	log    *zap.SugaredLogger
	cache  *lru.Cache
	group  singleflight.Group

	mu       sync.RWMutex
	versions map[string]uint64
}

// NewMapper creates a Mapper. A nil source reads from the meta-table.
func NewMapper(db *gorm.DB, source SchemaSource, cacheSize int, log *zap.SugaredLogger) (*Mapper, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	if source == nil {
		source = MetaTable{DB: db}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Mapper{
		db:       db,
		source:   source,
		log:      log,
		cache:    cache,
		versions: make(map[string]uint64),
	}, nil
}

// CreateTable creates the physical table for a collection
func (m *Mapper) CreateTable(ctx context.Context, coll *models.Collection) error {
	db := m.db.WithContext(ctx)
	if db.Migrator().HasTable(coll.Name) {
		return types.Conflict("Table '%s' already exists", coll.Name)
	}

	model, err := BuildModel(coll.Name, coll.Fields())
	if err != nil {
		return types.BadRequest("Invalid schema: %v", err)
	}

	if err := db.Table(coll.Name).Migrator().CreateTable(reflect.New(model).Interface()); err != nil {
		return types.StorageFailure(err, "Failed to create table '%s'", coll.Name)
	}

	m.log.Debugw("created table", "table", coll.Name, "fields", len(coll.Schema))
	m.Invalidate(coll.Name)
	return nil
}

// DropTable drops a collection table. Dropping an absent table succeeds.
func (m *Mapper) DropTable(ctx context.Context, name string) error {
	defer m.Invalidate(name)

	mig := m.db.WithContext(ctx).Migrator()
	if !mig.HasTable(name) {
		m.log.Warnw("drop of absent table", "table", name)
		return nil
	}

	if err := mig.DropTable(name); err != nil {
		return types.StorageFailure(err, "Failed to drop table '%s'", name)
	}

	m.log.Debugw("dropped table", "table", name)
	return nil
}

// AlterTable moves a table from one definition to another: a rename when the
// name changed, then the column diff. Dropped columns lose their data.
func (m *Mapper) AlterTable(ctx context.Context, before, after *models.Collection) error {
	db := m.db.WithContext(ctx)
	defer m.Invalidate(before.Name)
	defer m.Invalidate(after.Name)

	if before.Name != after.Name {
		mig := db.Migrator()
		if mig.HasTable(after.Name) {
			return types.Conflict("Table '%s' already exists", after.Name)
		}
		if err := mig.RenameTable(before.Name, after.Name); err != nil {
			return types.StorageFailure(err, "Failed to rename table '%s' to '%s'", before.Name, after.Name)
		}
		if err := renameIndexes(db.Table(after.Name), before, after.Name); err != nil {
			return err
		}
		m.log.Debugw("renamed table", "from", before.Name, "to", after.Name)
	}

	diff := Diff(before.Fields(), after.Fields())
	if diff.Empty() {
		return nil
	}

	model, err := BuildModel(after.Name, after.Fields())
	if err != nil {
		return types.BadRequest("Invalid schema: %v", err)
	}
	row := reflect.New(model).Interface()
	mig := db.Table(after.Name).Migrator()

	for _, col := range diff.Drop {
		if !mig.HasColumn(row, col) {
			continue
		}
		// Indexes on the column go with it on every dialect but sqlserver
		if idx := IndexName(after.Name, col); mig.HasIndex(row, idx) {
			if err := mig.DropIndex(row, idx); err != nil {
				return types.StorageFailure(err, "Failed to drop index '%s'", idx)
			}
		}
		if err := mig.DropColumn(row, col); err != nil {
			return types.StorageFailure(err, "Failed to drop column '%s.%s'", after.Name, col)
		}
	}

	for _, def := range diff.Add {
		if !mig.HasColumn(row, def.Name) {
			if err := mig.AddColumn(row, def.Name); err != nil {
				return types.StorageFailure(err, "Failed to add column '%s.%s'", after.Name, def.Name)
			}
		}
		if indexed(def) {
			if err := m.ensureIndex(mig, row, after.Name, def.Name); err != nil {
				return err
			}
		}
	}

	for _, def := range diff.Alter {
		if err := mig.AlterColumn(row, def.Name); err != nil {
			return types.StorageFailure(err, "Failed to alter column '%s.%s'", after.Name, def.Name)
		}
	}

	for _, def := range diff.Reindex {
		idx := IndexName(after.Name, def.Name)
		if mig.HasIndex(row, idx) {
			if err := mig.DropIndex(row, idx); err != nil {
				return types.StorageFailure(err, "Failed to drop index '%s'", idx)
			}
		}
		if indexed(def) {
			if err := m.ensureIndex(mig, row, after.Name, def.Name); err != nil {
				return err
			}
		}
	}

	m.log.Debugw("altered table", "table", after.Name,
		"added", len(diff.Add), "dropped", len(diff.Drop), "altered", len(diff.Alter), "reindexed", len(diff.Reindex))
	return nil
}

// renameIndexes moves the indexes of a renamed table to names derived from
// its new name. Index names share one namespace on sqlite and postgres.
func renameIndexes(db *gorm.DB, before *models.Collection, table string) error {
	model, err := BuildModel(table, before.Fields())
	if err != nil {
		return types.BadRequest("Invalid schema: %v", err)
	}
	row := reflect.New(model).Interface()
	mig := db.Migrator()

	columns := []string{"created"}
	for _, def := range before.Fields() {
		if indexed(def) {
			columns = append(columns, def.Name)
		}
	}

	for _, col := range columns {
		from, to := IndexName(before.Name, col), IndexName(table, col)
		if !mig.HasIndex(row, from) {
			continue
		}
		if err := mig.RenameIndex(row, from, to); err != nil {
			return types.StorageFailure(err, "Failed to rename index '%s' to '%s'", from, to)
		}
	}
	return nil
}

func (m *Mapper) ensureIndex(mig gorm.Migrator, row interface{}, table, column string) error {
	idx := IndexName(table, column)
	if mig.HasIndex(row, idx) {
		return nil
	}
	if err := mig.CreateIndex(row, idx); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return types.Conflict("Existing values of '%s' are not unique", column)
		}
		return types.StorageFailure(err, "Failed to create index '%s'", idx)
	}
	return nil
}

// GetTable resolves a collection name to its table handle, loading and
// caching it on a miss. Concurrent misses for one name share a single load.
func (m *Mapper) GetTable(ctx context.Context, name string) (*Table, error) {
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		version := m.version(name)
		if v, ok := m.cache.Get(name); ok {
			if t := v.(*Table); t.Version == version {
				return t, nil
			}
		}

		key := name + "@" + strconv.FormatUint(version, 10)
		v, err, _ := m.group.Do(key, func() (interface{}, error) {
			return m.load(ctx, name, version)
		})
		if err != nil {
			return nil, err
		}

		table := v.(*Table)
		if table.Version == m.version(name) {
			return table, nil
		}
		m.log.Debugw("table changed during load, reloading", "table", name, "attempt", attempt+1)
	}

	return nil, types.StorageFailure(nil, "Collection '%s' kept changing while loading", name)
}

func (m *Mapper) load(ctx context.Context, name string, version uint64) (*Table, error) {
	coll, err := m.source.FindCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if coll.System {
		return nil, types.BadRequest("Collection '%s' is a system collection", name)
	}

	if !m.db.WithContext(ctx).Migrator().HasTable(name) {
		return nil, types.StorageFailure(nil, "Table for collection '%s' is missing", name)
	}

	table, err := newTable(coll, version)
	if err != nil {
		return nil, types.StorageFailure(err, "Failed to map collection '%s'", name)
	}

	// Publish only if no invalidation raced the load
	m.mu.RLock()
	if m.versions[name] == version {
		m.cache.Add(name, table)
	}
	m.mu.RUnlock()

	return table, nil
}

// Invalidate discards the cached handle for name. Loads already in flight
// for the previous version are not published to the cache.
func (m *Mapper) Invalidate(name string) {
	m.mu.Lock()
	m.versions[name]++
	m.cache.Remove(name)
	m.mu.Unlock()
}

func (m *Mapper) version(name string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[name]
}

// Cached reports how many table handles are held
func (m *Mapper) Cached() int {
	return m.cache.Len()
}
