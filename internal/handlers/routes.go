package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/linkhub/backend/internal/middleware"
	"github.com/linkhub/backend/internal/models"
	"github.com/linkhub/backend/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
)

// Store is everything the HTTP layer persists directly.
// *database.Store implements it.
type Store interface {
	LinkStore
	LinkFinder
	MemberStore
	LimitsStore
	UsageHistory
}

// Deps wires the HTTP layer
type Deps struct {
	JWTSecret string
	Store     Store
	Usage     *services.UsageService
	Sync      *services.UsageSyncService
	Alerts    *services.UsageAlertService
	Limiter   *limiter.Limiter
	Gatherer  prometheus.Gatherer
	Logger    zerolog.Logger
}

// Register mounts every route on app
func Register(app *fiber.App, d Deps) {
	validate := validator.New()

	usageHandler := NewUsageHandler(d.Usage, d.Alerts, validate)
	linkHandler := NewLinkHandler(d.Store, d.Usage, validate)
	memberHandler := NewMemberHandler(d.Store, d.Usage, validate)
	redirectHandler := NewRedirectHandler(d.Store, d.Usage, d.Logger)
	analyticsHandler := NewAnalyticsHandler(d.Store)
	adminHandler := NewAdminHandler(d.Store, d.Usage, d.Sync, validate, d.Logger)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "linkhub-api",
		})
	})
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	var rateLimit fiber.Handler = func(c *fiber.Ctx) error { return c.Next() }
	if d.Limiter != nil {
		rateLimit = middleware.RateLimiter(d.Limiter, d.Logger)
	}

	// Public redirect
	app.Get("/r/:slug", rateLimit, redirectHandler.Redirect)

	api := app.Group("/api", rateLimit, middleware.AuthRequired(d.JWTSecret), middleware.AuditLogger(d.Store, d.Logger))

	ws := api.Group("/workspaces/:workspaceId", middleware.WorkspaceMember(d.Store))
	ws.Get("/usage", usageHandler.Get)
	ws.Post("/usage/check", usageHandler.Check)
	ws.Get("/usage/alerts", usageHandler.Alerts)

	ws.Post("/links", middleware.UsageLimit(d.Usage, models.MetricLinks, services.EnforceOptions{}), linkHandler.Create)
	ws.Delete("/links/:linkId", linkHandler.Delete)

	ws.Post("/members", middleware.UsageLimit(d.Usage, models.MetricUsers, services.EnforceOptions{}), memberHandler.Add)
	ws.Delete("/members/:userId", memberHandler.Remove)

	ws.Get("/analytics",
		middleware.UsageLimit(d.Usage, models.MetricClicks, services.EnforceOptions{Increment: 1, GracefulDegradation: true}),
		analyticsHandler.Get)

	admin := api.Group("/admin", middleware.AdminOnly())
	admin.Put("/workspaces/:workspaceId/limits", adminHandler.UpdateLimits)
	admin.Post("/workspaces/:workspaceId/usage/recalculate", adminHandler.Recalculate)
	admin.Post("/workspaces/:workspaceId/usage/sync", adminHandler.Sync)
	admin.Post("/usage/reset-monthly", adminHandler.ResetMonthly)
}

// ErrorHandler is the app-wide fiber error handler
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		} else {
			log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
		}
		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"message": message,
		})
	}
}
