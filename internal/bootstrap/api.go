package bootstrap

import (
	"recap_server/adapter/in/http"
	"recap_server/config"
	"recap_server/infra/middleware"
	"recap_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"
)

// NewAPI builds the fiber app with the full middleware stack and routes.
func NewAPI(cfg *config.Config, log zerolog.Logger) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(logger.Component(log, "http")),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             1 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover(logger.Component(log, "http")))
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(logger.Component(log, "http")))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	// Health checks (no auth)
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis, deps.MongoDB)
	healthHandler.Register(app)

	// API routes (authenticated)
	api := app.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTSecret))

	http.NewRecapHandler(deps.RecapBuilder).Register(api)
	http.NewThreadHandler(deps.Tracker).Register(api)
	http.NewSettingsHandler(deps.SilenceService).Register(api)
	http.NewNotificationHandler(deps.NotificationService).Register(api)
	http.NewMemoryHandler(deps.MemoryService).Register(api)

	log.Info().Msg("API server initialized")

	return app, cleanup, nil
}
