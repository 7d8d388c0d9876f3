package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/jam-build-recordsdb/data"
	"github.com/localnerve/jam-build-recordsdb/internal/config"
	"github.com/localnerve/jam-build-recordsdb/internal/database"
	"github.com/localnerve/jam-build-recordsdb/internal/handlers"
	"github.com/localnerve/jam-build-recordsdb/internal/logging"
	"github.com/localnerve/jam-build-recordsdb/internal/middleware"
	"github.com/localnerve/jam-build-recordsdb/internal/realtime"
	"github.com/localnerve/jam-build-recordsdb/internal/services"
	"github.com/localnerve/jam-build-recordsdb/internal/tables"
	"github.com/localnerve/jam-build-recordsdb/internal/utils"

	_ "github.com/localnerve/jam-build-recordsdb/docs/api" // Swagger docs
)

// @title RecordsDB API
// @version 1.0.0
// @description Runtime-defined collections and records with realtime change events
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/jam-build-recordsdb
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	sugar := zlog.Sugar()

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("failed to connect to database", "error", err)
	}
	defer database.Close(db)

	// Run auto-migrations for the meta-table
	if err := database.AutoMigrate(db); err != nil {
		sugar.Fatalw("failed to run migrations", "error", err)
	}

	systemCollections, err := services.ParseSystemCollections(data.SystemCollections)
	if err != nil {
		sugar.Fatalw("invalid system collections", "error", err)
	}
	if err := services.SeedSystemCollections(ctx, db, systemCollections, sugar); err != nil {
		sugar.Fatalw("failed to seed system collections", "error", err)
	}

	// Engine
	bus := realtime.NewBus(cfg.RealtimeBuffer, sugar.Named("realtime"))
	defer bus.Close()

	mapper, err := tables.NewMapper(db, nil, cfg.TableCacheSize, sugar.Named("tables"))
	if err != nil {
		sugar.Fatalw("failed to create table mapper", "error", err)
	}
	collectionService := services.NewCollectionService(db, mapper, bus, sugar.Named("collections"))
	recordService := services.NewRecordService(db, mapper, bus, sugar.Named("records"))

	var auth middleware.SessionValidator
	if cfg.AuthzEnabled() {
		auth = services.NewAuthService(cfg, sugar.Named("auth"))
		sugar.Infow("authorizer will be initialized on first authenticated request", "url", cfg.AuthzURL)
	} else {
		sugar.Warn("AUTHZ_URL not set, mutating routes are open")
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New(compress.Config{
		// Event streams are flushed frame by frame
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/realtime")
		},
	}))

	// Prometheus metrics
	prometheus := fiberprometheus.New("recordsdb")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())

	routes := &handlers.Routes{
		Collections: &handlers.CollectionsHandler{Collections: collectionService},
		Records:     &handlers.RecordsHandler{Records: recordService},
		Realtime: &handlers.RealtimeHandler{
			Bus:         bus,
			Collections: collectionService,
			KeepAlive:   time.Duration(cfg.RealtimeKeepAliveSeconds) * time.Second,
			Log:         sugar.Named("sse"),
		},
		Auth: auth,
	}
	routes.Register(api)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return utils.NotFoundResponse(c, "[404] Resource Not Found")
	})

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		sugar.Info("gracefully shutting down")
		// Closing the bus ends every open event stream
		bus.Close()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	// Start server
	sugar.Infow("starting server", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		sugar.Fatalw("failed to start server", "error", err)
	}

	sugar.Info("server stopped")
}
