package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/authkit/session-auth/internal/api/http/handlers"
	"github.com/authkit/session-auth/internal/auth"
	"github.com/authkit/session-auth/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Session *auth.SessionMiddleware
	// Limiter throttles register and login; nil disables throttling.
	Limiter fiber.Handler
}

// NewApp builds the Fiber application with middlewares and routes attached.
func NewApp(appName string, logger *zap.Logger, metrics *observability.Metrics, mw MiddlewareConfig, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger, metrics),
	})
	RegisterMiddlewares(app, logger, metrics, mw)
	RegisterRoutes(app, routes)
	return app
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Health.Root)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	authGroup := app.Group("/api/auth")
	authGroup.Post("/register", limiter, cfg.Auth.Register)
	authGroup.Post("/login", limiter, cfg.Auth.Login)
	authGroup.Get("/verify", cfg.Session.Handle, cfg.Auth.Verify)
	authGroup.Post("/logout", cfg.Auth.Logout)
}
