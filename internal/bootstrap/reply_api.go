package bootstrap

import (
	"context"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"autoreply/adapter/in/http"
	"autoreply/config"
	"autoreply/infra/middleware"
	"autoreply/pkg/logger"
)

const (
	webhookBodyLimit = 64 * 1024
	apiBodyLimit     = 1024 * 1024
)

// NewAPI builds the HTTP server and its dependencies.
func NewAPI(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}
	return NewApp(deps), cleanup, nil
}

// NewApp mounts middleware and routes on a new Fiber app.
func NewApp(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		AppName:               "autoreply",
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json for the Fiber codec
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:    2 * apiBodyLimit,
		ServerHeader: "",
	})

	// Global middleware stack (order matters)
	app.Use(middleware.RequestID())       // 1. Request ID
	app.Use(middleware.RequestLogger())   // 2. Request logging, sees recovered panics
	app.Use(middleware.Recover())         // 3. Panic recovery
	app.Use(middleware.SecurityHeaders()) // 4. Security headers
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders: "X-Request-ID",
		MaxAge:        86400,
	}))

	// Health
	checks := map[string]http.HealthChecker{"redis": nil}
	if deps.Redis.Enabled() {
		checks["redis"] = deps.Redis
	}
	http.NewHealthHandler(checks).Register(app)

	// Inbound webhook (called by Twilio)
	guards := []fiber.Handler{middleware.MaxBodySize(webhookBodyLimit)}
	if cfg.TwilioValidateSignature {
		guards = append(guards, middleware.TwilioSignature(cfg.TwilioAuthToken, cfg.PublicBaseURL))
		logger.Info("Twilio signature validation enabled")
	}
	webhookHandler := http.NewWebhookHandler(deps.Conversation, deps.Deduper)
	webhookHandler.Register(app, guards...)

	// Operator API
	api := app.Group("/api", middleware.NoCache(), middleware.MaxBodySize(apiBodyLimit))
	http.NewConfigHandler(
		http.BusinessInfo{Name: cfg.BusinessName, Website: cfg.WebsiteURL},
		deps.Intents,
		deps.Messages,
		deps.Generator,
		deps.Conversation,
		cfg.LogWindow,
		deps.Metrics,
		webhookHandler,
	).Register(api)

	// Dashboard
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		app.Static("/", cfg.StaticDir, fiber.Static{Index: "index.html", Compress: true})
		logger.Info("Serving dashboard from %s", cfg.StaticDir)
	} else {
		logger.Debug("Dashboard directory %q not found, static files disabled", cfg.StaticDir)
	}

	logger.Info("API server initialized")
	return app
}
