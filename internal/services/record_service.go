// record_service.go
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

	"github.com/google/uuid"
	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"github.com/localnerve/jam-build-recordsdb/internal/models"
	"github.com/localnerve/jam-build-recordsdb/internal/realtime"
	"github.com/localnerve/jam-build-recordsdb/internal/tables"
	"github.com/localnerve/jam-build-recordsdb/internal/types"
	"github.com/localnerve/jam-build-recordsdb/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/hints"
)

// Filter operators
const (
	OpEq   = "eq"
	OpNe   = "ne"
	OpGt   = "gt"
	OpGte  = "gte"
	OpLt   = "lt"
	OpLte  = "lte"
	OpLike = "like"
	OpIn   = "in"
)

// Filter is one (field, operator, value) condition of a record list.
// Conditions are combined with AND.
type Filter struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// ListQuery selects a page of records
type ListQuery struct {
	Page    int
	PerPage int
	Filters []Filter
	Sort    string
	Order   string
}

// RecordPage is one page of a record list
type RecordPage struct {
	Items      []*models.Record `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalPages int              `json:"total_pages"`
}

// RecordService is the record engine. Every operation is bound to a
// collection name and resolves the collection's table on each call.
type RecordService struct {
	db     *gorm.DB
	mapper *tables.Mapper
	events Publisher
	log    *zap.SugaredLogger
}

// NewRecordService creates the record engine
func NewRecordService(db *gorm.DB, mapper *tables.Mapper, events Publisher, log *zap.SugaredLogger) *RecordService {
	if log == nil {
		log = zap.S()
	}
	return &RecordService{db: db, mapper: mapper, events: events, log: log}
}

func (s *RecordService) quiet(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Session(&gorm.Session{Logger: s.db.Logger.LogMode(logger.Silent)})
}

// Create validates a payload and inserts it as a new record. When the
// collection names an owner field and the payload leaves it out, it is
// filled with userID.
func (s *RecordService) Create(ctx context.Context, collection string, payload map[string]interface{}, userID string) (*models.Record, error) {
	t, err := s.mapper.GetTable(ctx, collection)
	if err != nil {
		return nil, err
	}

	if owner, ok := OwnerField(t.Collection); ok && userID != "" {
		if _, present := payload[owner]; !present {
			stamped := make(map[string]interface{}, len(payload)+1)
			for k, v := range payload {
				stamped[k] = v
			}
			stamped[owner] = userID
			payload = stamped
		}
	}

	values, err := validation.Validate(payload, t.Fields(), true)
	if err != nil {
		return nil, err
	}

	cols, err := t.Columns(values)
	if err != nil {
		return nil, types.StorageFailure(err, "Failed to map record for '%s'", collection)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	cols["id"] = id
	cols["created"] = now
	cols["updated"] = now

	ctx = context.WithoutCancel(ctx)

	if err := s.db.WithContext(ctx).Table(t.Name).Create(cols).Error; err != nil {
		return nil, writeError(err, collection)
	}

	rec, err := s.get(ctx, t, id)
	if err != nil {
		return nil, err
	}

	s.log.Debugw("record created", "collection", collection, "id", id)
	s.publish(realtime.RecordCreated, collection, rec)
	return rec, nil
}

// Get returns one record
func (s *RecordService) Get(ctx context.Context, collection, id string) (*models.Record, error) {
	t, err := s.mapper.GetTable(ctx, collection)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, t, id)
}

func (s *RecordService) get(ctx context.Context, t *tables.Table, id string) (*models.Record, error) {
	row := t.NewRow()
	err := s.quiet(ctx).Table(t.Name).Where("id = ?", id).Take(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("Record '%s' not found in '%s'", id, t.Name)
	}
	if err != nil {
		return nil, types.StorageFailure(err, "Failed to load record '%s'", id)
	}

	rec, err := t.Decode(row)
	if err != nil {
		return nil, types.StorageFailure(err, "Failed to read record '%s'", id)
	}
	return rec, nil
}

// List returns a filtered, sorted page of records. The total counts every
// record matching the same filters.
func (s *RecordService) List(ctx context.Context, collection string, q ListQuery) (*RecordPage, error) {
	if q.Page < 1 || q.PerPage < 1 || q.PerPage > MaxPerPage {
		return nil, types.BadRequest("page must be >= 1 and per_page between 1 and %d", MaxPerPage)
	}

	t, err := s.mapper.GetTable(ctx, collection)
	if err != nil {
		return nil, err
	}

	order, err := orderBy(t, q.Sort, q.Order)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Table(t.Name)
	for _, f := range q.Filters {
		expr, err := filterExpr(t, f)
		if err != nil {
			return nil, err
		}
		query = query.Where(expr)
	}
	query = query.Clauses(hints.CommentBefore("select", "collection:"+t.Name)).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, types.StorageFailure(err, "Failed to count records in '%s'", collection)
	}

	rows := t.NewRows()
	err = query.Order(order).Offset((q.Page - 1) * q.PerPage).Limit(q.PerPage).Find(rows).Error
	if err != nil {
		return nil, types.StorageFailure(err, "Failed to list records in '%s'", collection)
	}

	items, err := t.DecodeAll(rows)
	if err != nil {
		return nil, types.StorageFailure(err, "Failed to read records in '%s'", collection)
	}

	return &RecordPage{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: int((total + int64(q.PerPage) - 1) / int64(q.PerPage)),
	}, nil
}

// Update validates and writes the provided fields of a record. Fields left
// out of the payload keep their values.
func (s *RecordService) Update(ctx context.Context, collection, id string, payload map[string]interface{}) (*models.Record, error) {
	if len(payload) == 0 {
		return nil, types.BadRequest("Update data cannot be empty")
	}

	t, err := s.mapper.GetTable(ctx, collection)
	if err != nil {
		return nil, err
	}

	values, err := validation.Validate(payload, t.Fields(), false)
	if err != nil {
		return nil, err
	}

	cols, err := t.Columns(values)
	if err != nil {
		return nil, types.StorageFailure(err, "Failed to map record for '%s'", collection)
	}
	cols["updated"] = time.Now().UTC()

	if _, err := s.get(ctx, t, id); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	result := s.db.WithContext(ctx).Table(t.Name).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return nil, writeError(result.Error, collection)
	}

	rec, err := s.get(ctx, t, id)
	if err != nil {
		return nil, err
	}

	s.log.Debugw("record updated", "collection", collection, "id", id, "fields", values.Len())
	s.publish(realtime.RecordUpdated, collection, rec)
	return rec, nil
}

// Delete removes a record
func (s *RecordService) Delete(ctx context.Context, collection, id string) error {
	t, err := s.mapper.GetTable(ctx, collection)
	if err != nil {
		return err
	}

	rec, err := s.get(ctx, t, id)
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)

	result := s.db.WithContext(ctx).Table(t.Name).Where("id = ?", id).Delete(t.NewRow())
	if result.Error != nil {
		return types.StorageFailure(result.Error, "Failed to delete record '%s'", id)
	}
	if result.RowsAffected == 0 {
		return types.NotFound("Record '%s' not found in '%s'", id, collection)
	}

	s.log.Debugw("record deleted", "collection", collection, "id", id)
	s.publish(realtime.RecordDeleted, collection, rec)
	return nil
}

func (s *RecordService) publish(eventType, collection string, rec *models.Record) {
	if s.events == nil {
		return
	}
	s.events.Publish(realtime.NewEvent(eventType, collection, rec.ID, rec))
}

func writeError(err error, collection string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return types.Conflict("A record in '%s' already has this unique value", collection)
	}
	return types.StorageFailure(err, "Failed to write record in '%s'", collection)
}

// orderBy builds the list ordering. Without a sort field records are newest
// first; id breaks ties so pages are stable.
func orderBy(t *tables.Table, sort, order string) (clause.OrderBy, error) {
	if sort == "" {
		if order != "" {
			return clause.OrderBy{}, types.BadRequest("order requires a sort field")
		}
		return clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "created"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}, nil
	}

	if _, ok := t.Field(sort); !ok && !fields.IsSystemColumn(sort) {
		return clause.OrderBy{}, types.BadRequest("Unknown sort field '%s'", sort)
	}

	var desc bool
	switch strings.ToLower(order) {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return clause.OrderBy{}, types.BadRequest("order must be 'asc' or 'desc'")
	}

	columns := []clause.OrderByColumn{{Column: clause.Column{Name: sort}, Desc: desc}}
	if sort != "id" {
		columns = append(columns, clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
	}
	return clause.OrderBy{Columns: columns}, nil
}

// filterExpr turns a filter into a condition on a declared field
func filterExpr(t *tables.Table, f Filter) (clause.Expression, error) {
	def, ok := t.Field(f.Field)
	if !ok {
		return nil, types.BadRequest("Unknown filter field '%s'", f.Field)
	}
	kind, _ := fields.Lookup(def.Type)
	if kind.Storage == fields.StorageSerialized {
		return nil, types.BadRequest("Field '%s' cannot be filtered", f.Field)
	}

	col := clause.Column{Name: def.Name}
	op := strings.ToLower(f.Op)
	if op == "" {
		op = OpEq
	}

	switch op {
	case OpEq, OpNe:
		var value interface{}
		if f.Value != nil {
			v, err := filterValue(def, f.Value)
			if err != nil {
				return nil, err
			}
			value = v
		}
		if op == OpEq {
			return clause.Eq{Column: col, Value: value}, nil
		}
		return clause.Neq{Column: col, Value: value}, nil

	case OpGt, OpGte, OpLt, OpLte:
		if kind.Storage == fields.StorageBool {
			return nil, types.BadRequest("Operator '%s' does not apply to field '%s'", op, f.Field)
		}
		value, err := filterValue(def, f.Value)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpGt:
			return clause.Gt{Column: col, Value: value}, nil
		case OpGte:
			return clause.Gte{Column: col, Value: value}, nil
		case OpLt:
			return clause.Lt{Column: col, Value: value}, nil
		}
		return clause.Lte{Column: col, Value: value}, nil

	case OpLike:
		pattern, ok := f.Value.(string)
		if !ok || kind.Storage != fields.StorageString {
			return nil, types.BadRequest("Operator 'like' needs a string value on a text field")
		}
		return clause.Expr{
			SQL:  "? LIKE ? ESCAPE '!'",
			Vars: []interface{}{col, "%" + likeEscaper.Replace(pattern) + "%"},
		}, nil

	case OpIn:
		list, ok := f.Value.([]interface{})
		if !ok || len(list) == 0 {
			return nil, types.BadRequest("Operator 'in' needs a non-empty array value")
		}
		values := make([]interface{}, 0, len(list))
		for _, raw := range list {
			v, err := filterValue(def, raw)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return clause.IN{Column: col, Values: values}, nil
	}

	return nil, types.BadRequest("Unsupported filter operator '%s'", f.Op)
}

// likeEscaper makes wildcard characters literal under ESCAPE '!'.
// Brackets are wildcards on sqlserver.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_", "[", "![")

// filterValue checks a filter operand against the field's type and converts
// it to storage form. Only the shape is checked, not the write constraints.
func filterValue(def fields.Definition, raw interface{}) (interface{}, error) {
	kind, ok := fields.Lookup(def.Type)
	if !ok {
		return nil, types.BadRequest("Field '%s' cannot be filtered", def.Name)
	}
	v, err := kind.Check(raw, &fields.Validation{Values: def.Validation.Values})
	if err != nil {
		return nil, types.BadRequest("Invalid filter value for '%s': %s", def.Name, err.Error())
	}
	value, err := tables.ColumnValue(v)
	if err != nil {
		return nil, types.BadRequest("Invalid filter value for '%s'", def.Name)
	}
	return value, nil
}
