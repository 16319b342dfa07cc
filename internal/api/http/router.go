package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/trust-core/internal/api/http/handlers"
	"github.com/spec-kit/trust-core/internal/auth"
	"github.com/spec-kit/trust-core/internal/domain"
	"github.com/spec-kit/trust-core/internal/rbac"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Auth            *handlers.AuthHandler
	MFA             *handlers.MFAHandler
	Permissions     *handlers.PermissionsHandler
	AuthMiddleware  *auth.Middleware
	Guard           *rbac.Guard
	MetricsGatherer prometheus.Gatherer

	// Per-route limiter middlewares, built by main from the named
	// policies. Nil entries are skipped.
	RefreshLimit   fiber.Handler
	EnrollLimit    fiber.Handler
	MFAVerifyLimit fiber.Handler
	AdminLimit     fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{})))

	authGroup := app.Group("/auth")
	authGroup.Post("/refresh", limited(cfg.RefreshLimit, cfg.Auth.Refresh)...)

	mfaGroup := app.Group("/mfa", cfg.AuthMiddleware.Handle)
	mfaGroup.Post("/setup", limited(cfg.EnrollLimit, cfg.MFA.Setup)...)
	mfaGroup.Post("/verify", limited(cfg.MFAVerifyLimit, cfg.MFA.Verify)...)
	mfaGroup.Post("/enable", limited(cfg.MFAVerifyLimit, cfg.MFA.Enable)...)
	mfaGroup.Post("/disable", cfg.MFA.Disable)
	mfaGroup.Get("/status", cfg.MFA.Status)

	admin := app.Group("/admin/permissions",
		cfg.AuthMiddleware.Handle,
		cfg.Guard.RequirePermission(domain.PermManagePermissions),
	)
	admin.Post("/grant", limited(cfg.AdminLimit, cfg.Permissions.Grant)...)
	admin.Post("/revoke", limited(cfg.AdminLimit, cfg.Permissions.Revoke)...)
	admin.Delete("/:userId/:permission", limited(cfg.AdminLimit, cfg.Permissions.Reset)...)
	admin.Get("/:userId", cfg.Permissions.List)
}

func limited(limit fiber.Handler, handler fiber.Handler) []fiber.Handler {
	if limit == nil {
		return []fiber.Handler{handler}
	}
	return []fiber.Handler{limit, handler}
}
