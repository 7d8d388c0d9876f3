package models

import (
	"time"

	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"gorm.io/datatypes"
)

// Collection types
const (
	CollectionBase = "base"
	CollectionAuth = "auth"
	CollectionView = "view"
)

// Collection is a row of the collections meta-table: a named schema
// definition whose name is also its physical table name.
type Collection struct {
	ID      string                               `gorm:"primaryKey;size:36" json:"id"`
	Name    string                               `gorm:"uniqueIndex:uidx_collections_name;size:100;not null" json:"name"`
	Type    string                               `gorm:"size:16;not null;default:base" json:"type"`
	Schema  datatypes.JSONSlice[fields.Definition] `json:"schema"`
	Options JSON                                 `json:"options"`

	ListRule   *string `gorm:"type:text" json:"list_rule"`
	ViewRule   *string `gorm:"type:text" json:"view_rule"`
	CreateRule *string `gorm:"type:text" json:"create_rule"`
	UpdateRule *string `gorm:"type:text" json:"update_rule"`
	DeleteRule *string `gorm:"type:text" json:"delete_rule"`

	System  bool      `gorm:"not null;default:false;index:idx_collections_system" json:"system"`
	Created time.Time `gorm:"column:created;not null;index:idx_collections_created" json:"created"`
	Updated time.Time `gorm:"column:updated;not null" json:"updated"`
}

// TableName overrides the table name for Collection
func (Collection) TableName() string {
	return "collections"
}

// Fields returns the field definitions in schema order
func (c *Collection) Fields() []fields.Definition {
	return []fields.Definition(c.Schema)
}
