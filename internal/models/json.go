package models

import (
	"database/sql/driver"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSON is a wrapper around gorm.io/datatypes.JSON used for serialized-text
// columns (collection options, json and file fields).
type JSON struct {
	datatypes.JSON
}

// NewJSON wraps already serialized JSON text
func NewJSON(raw []byte) JSON {
	return JSON{JSON: datatypes.JSON(raw)}
}

// Value promotes the embedded JSON's Value method; empty is stored as NULL
func (j JSON) Value() (driver.Value, error) {
	return j.JSON.Value()
}

// Scan accepts NULL as empty, otherwise defers to the embedded JSON
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		j.JSON = nil
		return nil
	}
	return j.JSON.Scan(value)
}

// IsNull reports whether the column held NULL or nothing
func (j JSON) IsNull() bool {
	return len(j.JSON) == 0 || string(j.JSON) == "null"
}

// GormDBDataType ensures the correct data type is used for each database driver.
// MSSQL does not support the 'json' data type.
func (JSON) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	case "sqlserver", "mssql":
		return "NVARCHAR(MAX)"
	case "sqlite":
		return "JSON"
	}
	return "TEXT"
}
