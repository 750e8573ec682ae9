package http

import (
	"path"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ehealth-cst/ehealth-client/internal/api/http/handlers"
	"github.com/ehealth-cst/ehealth-client/internal/auth"
	"github.com/ehealth-cst/ehealth-client/internal/config"
	"github.com/ehealth-cst/ehealth-client/internal/observability"
	"github.com/ehealth-cst/ehealth-client/internal/repository"
	"github.com/ehealth-cst/ehealth-client/internal/service"
)

// AppDeps are the stores and probes the devserver runs on.
type AppDeps struct {
	Config     config.Config
	Logger     *zap.Logger
	Users      repository.UserRepository
	Sessions   repository.SessionRepository
	Feeds      repository.FeedRepository
	Programmes repository.ProgrammeRepository
	Treatments repository.TreatmentRepository
	Leaves     repository.LeaveRepository
	// Registry receives server metrics and backs /metrics. Optional.
	Registry *prometheus.Registry
	Probes   map[string]handlers.Pinger
}

// NewApp builds the fiber application with every route mounted.
func NewApp(deps AppDeps) *fiber.App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config

	var (
		metrics  *observability.ServerMetrics
		gatherer prometheus.Gatherer
	)
	if deps.Registry != nil {
		metrics = observability.NewServerMetrics(deps.Registry)
		gatherer = deps.Registry
	}

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:    deps.Users,
		SessionRepo: deps.Sessions,
		Logger:      logger,
	})
	// Stores left nil fall back to process-local ones.
	if deps.Programmes == nil {
		deps.Programmes = repository.NewMemoryProgrammeRepository()
	}
	if deps.Treatments == nil {
		deps.Treatments = repository.NewMemoryTreatmentRepository()
	}
	if deps.Leaves == nil {
		deps.Leaves = repository.NewMemoryLeaveRepository()
	}
	leaveService := service.NewLeaveService(deps.Leaves)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), deps.Users, deps.Sessions)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, metrics, cfg.Server.RequestTimeout())

	RegisterRoutes(app, RouteConfig{
		BasePath: cfg.Server.BasePath,
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps.Probes),
		Auth: handlers.NewAuthHandler(authService, handlers.CookieSettings{
			Secure:      cfg.Server.CookieSecure,
			RefreshPath: path.Join("/", cfg.Server.BasePath, "auth", "refresh"),
		}),
		Sessions:       handlers.NewSessionHandler(authService, leaveService),
		Feeds:          handlers.NewFeedHandler(service.NewFeedService(deps.Feeds)),
		Users:          handlers.NewUserHandler(service.NewProfileService(deps.Users, deps.Programmes)),
		Treatments:     handlers.NewTreatmentHandler(service.NewTreatmentService(deps.Treatments)),
		HA:             handlers.NewHAHandler(authService, leaveService),
		AuthMiddleware: authMiddleware,
		Gatherer:       gatherer,
	})
	return app
}
