package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"github.com/localnerve/jam-build-recordsdb/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SystemCollection is a built-in collection definition
type SystemCollection struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"`
	Schema  []fields.Definition    `json:"schema"`
	Options map[string]interface{} `json:"options"`
}

// ParseSystemCollections decodes the embedded system collection definitions
func ParseSystemCollections(raw []byte) ([]SystemCollection, error) {
	var defs []SystemCollection
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("invalid system collections: %w", err)
	}
	for _, def := range defs {
		if !fields.IsIdentifier(def.Name) {
			return nil, fmt.Errorf("invalid system collection name %q", def.Name)
		}
		if problems := fields.CheckDefinitions(def.Schema); len(problems) > 0 {
			return nil, fmt.Errorf("invalid schema for system collection %s: %v", def.Name, problems)
		}
	}
	return defs, nil
}

// SeedSystemCollections inserts missing system collections and refreshes the
// schema of existing ones. System collections have no mapped table.
func SeedSystemCollections(ctx context.Context, db *gorm.DB, defs []SystemCollection, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.S()
	}

	for _, def := range defs {
		options, err := json.Marshal(def.Options)
		if err != nil {
			return err
		}

		var existing models.Collection
		err = db.WithContext(ctx).Where("name = ?", def.Name).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			now := time.Now().UTC()
			coll := models.Collection{
				ID:      uuid.NewString(),
				Name:    def.Name,
				Type:    def.Type,
				Schema:  datatypes.JSONSlice[fields.Definition](def.Schema),
				Options: models.NewJSON(options),
				System:  true,
				Created: now,
				Updated: now,
			}
			if err := db.WithContext(ctx).Create(&coll).Error; err != nil {
				return fmt.Errorf("failed to seed system collection %s: %w", def.Name, err)
			}
			log.Infow("seeded system collection", "collection", def.Name)

		case err != nil:
			return fmt.Errorf("failed to load system collection %s: %w", def.Name, err)

		default:
			if !existing.System {
				return fmt.Errorf("collection %s shadows a system collection", def.Name)
			}
			err := db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
				"type":    def.Type,
				"schema":  datatypes.JSONSlice[fields.Definition](def.Schema),
				"options": models.NewJSON(options),
				"updated": time.Now().UTC(),
			}).Error
			if err != nil {
				return fmt.Errorf("failed to refresh system collection %s: %w", def.Name, err)
			}
		}
	}

	return nil
}
