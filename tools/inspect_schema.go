package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-json"
	"github.com/localnerve/jam-build-recordsdb/internal/database"
	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"github.com/localnerve/jam-build-recordsdb/internal/models"
	"github.com/localnerve/jam-build-recordsdb/internal/tables"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// inspect_schema prints the DDL the table mapper produces for a collection.
// Usage: go run ./tools/inspect_schema.go -name posts schema.json
// where schema.json holds the collection's field definition array.
func main() {
	name := flag.String("name", "inspected", "collection name")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("usage: inspect_schema -name <collection> <schema.json>")
	}

	raw, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	var defs []fields.Definition
	if err := json.Unmarshal(raw, &defs); err != nil {
		log.Fatal(err)
	}
	if problems := fields.CheckDefinitions(defs); len(problems) > 0 {
		log.Fatalf("invalid schema: %v", problems)
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		log.Fatal(err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal(err)
	}

	mapper, err := tables.NewMapper(db, nil, 1, nil)
	if err != nil {
		log.Fatal(err)
	}
	coll := &models.Collection{Name: *name, Schema: datatypes.JSONSlice[fields.Definition](defs)}
	if err := mapper.CreateTable(context.Background(), coll); err != nil {
		log.Fatal(err)
	}

	// Get the schema
	var statements []string
	db.Raw("SELECT sql FROM sqlite_master WHERE tbl_name = ? AND sql IS NOT NULL", *name).Scan(&statements)

	fmt.Printf("\n=== Table: %s ===\n", *name)
	for _, stmt := range statements {
		fmt.Println(stmt + ";")
	}
}
