package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ehealth-cst/ehealth-client/internal/api/http/handlers"
	"github.com/ehealth-cst/ehealth-client/internal/auth"
	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	BasePath       string
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Sessions       *handlers.SessionHandler
	Feeds          *handlers.FeedHandler
	Users          *handlers.UserHandler
	Treatments     *handlers.TreatmentHandler
	HA             *handlers.HAHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group(cfg.BasePath)
	requireAuth := cfg.AuthMiddleware.Handle

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", requireAuth, cfg.Auth.Logout)

	api.Post("/mfa/verify-login", cfg.Auth.VerifyMFA)

	sessions := api.Group("/session", requireAuth)
	sessions.Get("/", cfg.Sessions.Current)
	sessions.Get("/all", cfg.Sessions.List)
	sessions.Delete("/delete/all", cfg.Sessions.DeleteAll)
	sessions.Delete("/:id", cfg.Sessions.Delete)

	api.Get("/feed", requireAuth, cfg.Feeds.List)

	users := api.Group("/user", requireAuth)
	users.Put("/update", cfg.Users.UpdateProfile)
	users.Get("/programmes", cfg.Users.Programmes)

	api.Get("/treatment/patient/:id", requireAuth, cfg.Treatments.ForPatient)

	ha := api.Group("/ha", requireAuth, auth.RequireUserType(domain.UserTypeHA))
	ha.Put("/toggle-availability", cfg.HA.ToggleAvailability)
	ha.Post("/set-leave", cfg.HA.SetLeave)
	ha.Get("/get-leave", cfg.HA.GetLeave)
	ha.Put("/cancel-leave", cfg.HA.CancelLeave)
}
