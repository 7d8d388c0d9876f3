// collection_service.go
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

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"github.com/localnerve/jam-build-recordsdb/internal/models"
	"github.com/localnerve/jam-build-recordsdb/internal/realtime"
	"github.com/localnerve/jam-build-recordsdb/internal/tables"
	"github.com/localnerve/jam-build-recordsdb/internal/types"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// MaxPerPage bounds every paginated list
const MaxPerPage = 200

// OwnerFieldOption is the collection option naming the field stamped with
// the creating user's id
const OwnerFieldOption = "owner_field"

var reservedCollectionNames = map[string]struct{}{
	"collections": {}, "users": {}, "system": {},
}

// Publisher receives change events
type Publisher interface {
	Publish(e *realtime.Event)
}

// CollectionInput is the create or partial update body of a collection.
// Absent members are left unchanged on update. An empty rule string clears
// the rule.
type CollectionInput struct {
	Name       *string                 `json:"name"`
	Type       *string                 `json:"type"`
	Schema     *[]fields.Definition    `json:"schema"`
	Options    *map[string]interface{} `json:"options"`
	ListRule   *string                 `json:"list_rule"`
	ViewRule   *string                 `json:"view_rule"`
	CreateRule *string                 `json:"create_rule"`
	UpdateRule *string                 `json:"update_rule"`
	DeleteRule *string                 `json:"delete_rule"`
}

// CollectionService is the schema store. It owns the collections meta-table
// and keeps it in step with the physical tables.
type CollectionService struct {
	db     *gorm.DB
	mapper *tables.Mapper
	events Publisher
	log    *zap.SugaredLogger
}

// NewCollectionService creates the schema store
func NewCollectionService(db *gorm.DB, mapper *tables.Mapper, events Publisher, log *zap.SugaredLogger) *CollectionService {
	if log == nil {
		log = zap.S()
	}
	return &CollectionService{db: db, mapper: mapper, events: events, log: log}
}

func (s *CollectionService) quiet(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Session(&gorm.Session{Logger: s.db.Logger.LogMode(logger.Silent)})
}

// Create validates and persists a collection definition, then creates its table.
// The definition row is removed again if the table cannot be created.
func (s *CollectionService) Create(ctx context.Context, input *CollectionInput) (*models.Collection, error) {
	coll := &models.Collection{Type: models.CollectionBase}
	if input.Name == nil {
		return nil, types.BadRequest("Collection name is required")
	}
	if err := s.apply(ctx, coll, input); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, coll.Name, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	coll.ID = uuid.NewString()
	coll.Created = now
	coll.Updated = now

	// Storage steps are not interrupted by a departing caller
	ctx = context.WithoutCancel(ctx)

	if err := s.db.WithContext(ctx).Create(coll).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, types.Conflict("Collection '%s' already exists", coll.Name)
		}
		return nil, types.StorageFailure(err, "Failed to save collection '%s'", coll.Name)
	}

	if err := s.mapper.CreateTable(ctx, coll); err != nil {
		if rbErr := s.db.WithContext(ctx).Delete(&models.Collection{}, "id = ?", coll.ID).Error; rbErr != nil {
			s.log.Errorw("collection create rollback failed", "collection", coll.Name, "error", rbErr)
		}
		return nil, err
	}

	s.log.Infow("collection created", "collection", coll.Name, "id", coll.ID, "fields", len(coll.Schema))
	s.publish(realtime.CollectionCreated, coll)
	return coll, nil
}

// GetByID returns a collection by id
func (s *CollectionService) GetByID(ctx context.Context, id string) (*models.Collection, error) {
	var coll models.Collection
	err := s.quiet(ctx).Where("id = ?", id).Take(&coll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("Collection '%s' not found", id)
	}
	if err != nil {
		return nil, types.StorageFailure(err, "Failed to load collection '%s'", id)
	}
	return &coll, nil
}

// GetByName returns a collection by name
func (s *CollectionService) GetByName(ctx context.Context, name string) (*models.Collection, error) {
	var coll models.Collection
	err := s.quiet(ctx).Where("name = ?", name).Take(&coll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("Collection '%s' not found", name)
	}
	if err != nil {
		return nil, types.StorageFailure(err, "Failed to load collection '%s'", name)
	}
	return &coll, nil
}

// List returns a page of collections, newest first, and the total matching count
func (s *CollectionService) List(ctx context.Context, page, perPage int, includeSystem bool) ([]models.Collection, int64, error) {
	if page < 1 || perPage < 1 || perPage > MaxPerPage {
		return nil, 0, types.BadRequest("page must be >= 1 and per_page between 1 and %d", MaxPerPage)
	}

	query := s.db.WithContext(ctx).Model(&models.Collection{})
	if !includeSystem {
		query = query.Where(clause.Eq{Column: clause.Column{Name: "system"}, Value: false})
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, types.StorageFailure(err, "Failed to count collections")
	}

	items := make([]models.Collection, 0, perPage)
	err := query.Order("created desc").Order("id desc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&items).Error
	if err != nil {
		return nil, 0, types.StorageFailure(err, "Failed to list collections")
	}

	return items, total, nil
}

// Update applies a partial change to a collection and alters its table to
// match. On a table failure the previous definition is restored.
func (s *CollectionService) Update(ctx context.Context, id string, input *CollectionInput) (*models.Collection, error) {
	before, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.System {
		return nil, types.BadRequest("System collection '%s' cannot be modified", before.Name)
	}

	after := *before
	after.Schema = append(datatypes.JSONSlice[fields.Definition]{}, before.Schema...)
	if err := s.apply(ctx, &after, input); err != nil {
		return nil, err
	}
	if after.Name != before.Name {
		if err := s.checkNameFree(ctx, after.Name, before.ID); err != nil {
			return nil, err
		}
	}
	after.Updated = time.Now().UTC()

	ctx = context.WithoutCancel(ctx)

	if err := s.db.WithContext(ctx).Save(&after).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, types.Conflict("Collection '%s' already exists", after.Name)
		}
		return nil, types.StorageFailure(err, "Failed to save collection '%s'", after.Name)
	}

	if err := s.mapper.AlterTable(ctx, before, &after); err != nil {
		if rbErr := s.db.WithContext(ctx).Save(before).Error; rbErr != nil {
			s.log.Errorw("collection update rollback failed", "collection", before.Name, "error", rbErr)
		}
		s.resync(ctx, before, &after)
		return nil, err
	}

	s.log.Infow("collection updated", "collection", after.Name, "id", after.ID)
	s.publish(realtime.CollectionUpdated, &after)
	return &after, nil
}

// resync moves a partially altered table back to the restored definition.
// Columns dropped before the failure cannot be recovered.
func (s *CollectionService) resync(ctx context.Context, before, after *models.Collection) {
	current := *after
	if before.Name != after.Name && !s.db.WithContext(ctx).Migrator().HasTable(after.Name) {
		current.Name = before.Name
	}
	if err := s.mapper.AlterTable(ctx, &current, before); err != nil {
		s.log.Errorw("table resync after failed update", "collection", before.Name, "error", err)
	}
}

// Delete removes a collection definition and drops its table. The definition
// is restored if the table cannot be dropped.
func (s *CollectionService) Delete(ctx context.Context, id string) (*models.Collection, error) {
	coll, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if coll.System {
		return nil, types.BadRequest("System collection '%s' cannot be deleted", coll.Name)
	}

	ctx = context.WithoutCancel(ctx)

	result := s.db.WithContext(ctx).Delete(&models.Collection{}, "id = ?", coll.ID)
	if result.Error != nil {
		return nil, types.StorageFailure(result.Error, "Failed to delete collection '%s'", coll.Name)
	}
	if result.RowsAffected == 0 {
		return nil, types.NotFound("Collection '%s' not found", id)
	}

	if err := s.mapper.DropTable(ctx, coll.Name); err != nil {
		if rbErr := s.db.WithContext(ctx).Create(coll).Error; rbErr != nil {
			s.log.Errorw("collection delete rollback failed", "collection", coll.Name, "error", rbErr)
		}
		return nil, err
	}

	s.log.Infow("collection deleted", "collection", coll.Name, "id", coll.ID)
	s.publish(realtime.CollectionDeleted, coll)
	return coll, nil
}

// apply merges input into coll and validates the result
func (s *CollectionService) apply(ctx context.Context, coll *models.Collection, input *CollectionInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := CheckCollectionName(name); err != nil {
			return err
		}
		coll.Name = name
	}

	if input.Type != nil {
		switch *input.Type {
		case models.CollectionBase, models.CollectionAuth, models.CollectionView:
			coll.Type = *input.Type
		default:
			return types.BadRequest("Invalid collection type '%s'", *input.Type)
		}
	}

	if input.Schema != nil {
		coll.Schema = datatypes.JSONSlice[fields.Definition](*input.Schema)
	}
	if coll.Schema == nil {
		coll.Schema = datatypes.JSONSlice[fields.Definition]{}
	}
	if problems := fields.CheckDefinitions(coll.Fields()); len(problems) > 0 {
		e := types.BadRequest("Invalid schema")
		e.Fields = problems
		return e
	}
	if err := s.checkRelations(ctx, coll); err != nil {
		return err
	}

	if input.Options != nil {
		raw, err := json.Marshal(*input.Options)
		if err != nil {
			return types.BadRequest("Invalid options: %v", err)
		}
		coll.Options = models.NewJSON(raw)
	}
	if err := checkOptions(coll); err != nil {
		return err
	}

	setRule(&coll.ListRule, input.ListRule)
	setRule(&coll.ViewRule, input.ViewRule)
	setRule(&coll.CreateRule, input.CreateRule)
	setRule(&coll.UpdateRule, input.UpdateRule)
	setRule(&coll.DeleteRule, input.DeleteRule)
	return nil
}

func setRule(rule **string, input *string) {
	if input == nil {
		return
	}
	if *input == "" {
		*rule = nil
		return
	}
	value := *input
	*rule = &value
}

// CheckCollectionName verifies a collection name is usable as a table name
func CheckCollectionName(name string) error {
	if !fields.IsIdentifier(name) {
		return types.BadRequest("Collection name must be 1 to %d characters, start with a letter and contain only letters, digits and underscores", fields.MaxNameLength)
	}
	if _, reserved := reservedCollectionNames[strings.ToLower(name)]; reserved {
		return types.BadRequest("Collection name '%s' is reserved", name)
	}
	return nil
}

// checkNameFree fails with Conflict when another collection or table holds name
func (s *CollectionService) checkNameFree(ctx context.Context, name, exceptID string) error {
	query := s.db.WithContext(ctx).Model(&models.Collection{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return types.StorageFailure(err, "Failed to check collection name '%s'", name)
	}
	if count > 0 {
		return types.Conflict("Collection '%s' already exists", name)
	}
	return nil
}

// checkRelations requires every relation target to exist. A collection may
// relate to itself.
func (s *CollectionService) checkRelations(ctx context.Context, coll *models.Collection) error {
	problems := make(map[string]string)
	for _, def := range coll.Fields() {
		if def.Type != fields.Relation || def.Validation.Collection == coll.Name {
			continue
		}
		if _, err := s.GetByName(ctx, def.Validation.Collection); err != nil {
			if !types.IsKind(err, types.KindNotFound) {
				return err
			}
			problems[def.Name] = "Related collection '" + def.Validation.Collection + "' does not exist"
		}
	}
	if len(problems) > 0 {
		e := types.BadRequest("Invalid schema")
		e.Fields = problems
		return e
	}
	return nil
}

// checkOptions verifies the options a collection understands
func checkOptions(coll *models.Collection) error {
	owner, ok := OwnerField(coll)
	if !ok {
		return nil
	}
	def, found := fields.Find(coll.Fields(), owner)
	if !found || (def.Type != fields.Text && def.Type != fields.Relation) {
		return types.BadRequest("Option '%s' must name a text or relation field", OwnerFieldOption)
	}
	return nil
}

// Options decodes a collection's options object
func Options(coll *models.Collection) map[string]interface{} {
	if coll.Options.IsNull() {
		return nil
	}
	var opts map[string]interface{}
	if err := json.Unmarshal(coll.Options.JSON, &opts); err != nil {
		return nil
	}
	return opts
}

// OwnerField returns the name of the ownership field, if configured
func OwnerField(coll *models.Collection) (string, bool) {
	name, ok := Options(coll)[OwnerFieldOption].(string)
	return name, ok && name != ""
}

func (s *CollectionService) publish(eventType string, coll *models.Collection) {
	if s.events == nil {
		return
	}
	s.events.Publish(realtime.NewEvent(eventType, coll.Name, "", coll))
}
