package data

import (
	_ "embed"
)

// SystemCollections holds the definitions of the built-in collections,
// seeded into the collections meta-table at start-up.
//
//go:embed system/collections.json
var SystemCollections []byte
