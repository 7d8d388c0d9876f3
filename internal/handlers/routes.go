package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-recordsdb/internal/middleware"
)

// Routes groups the handlers mounted under /api
type Routes struct {
	Collections *CollectionsHandler
	Records     *RecordsHandler
	Realtime    *RealtimeHandler

	// Auth validates sessions on mutating routes; nil leaves them open
	Auth middleware.SessionValidator
}

// Register mounts every route on the api router
func (r *Routes) Register(api fiber.Router) {
	admin := middleware.AuthAdmin(r.Auth)
	user := middleware.AuthUser(r.Auth)

	// Collection routes (public GET, admin mutations)
	collections := api.Group("/collections")
	collections.Post("/", admin, r.Collections.CreateCollection)
	collections.Get("/", r.Collections.ListCollections)
	collections.Get("/by-name/:name", r.Collections.GetCollectionByName)
	collections.Get("/:id", r.Collections.GetCollection)
	collections.Patch("/:id", admin, r.Collections.UpdateCollection)
	collections.Delete("/:id", admin, r.Collections.DeleteCollection)

	// Record routes (public GET, user mutations)
	records := collections.Group("/:collection/records")
	records.Post("/", user, r.Records.CreateRecord)
	records.Get("/", r.Records.ListRecords)
	records.Get("/:id", r.Records.GetRecord)
	records.Patch("/:id", user, r.Records.UpdateRecord)
	records.Delete("/:id", user, r.Records.DeleteRecord)

	// Realtime streams
	api.Get("/realtime", r.Realtime.Subscribe)
	api.Get("/realtime/:collection", r.Realtime.Subscribe)
}
