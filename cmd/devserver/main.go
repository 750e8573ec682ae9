package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/ehealth-cst/ehealth-client/internal/api/http"
	"github.com/ehealth-cst/ehealth-client/internal/api/http/handlers"
	"github.com/ehealth-cst/ehealth-client/internal/config"
	"github.com/ehealth-cst/ehealth-client/internal/observability"
	"github.com/ehealth-cst/ehealth-client/internal/persistence"
	"github.com/ehealth-cst/ehealth-client/internal/repository"
	"github.com/ehealth-cst/ehealth-client/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := &persistence.Redis{}
	if cfg.Server.SessionStore == "redis" {
		rdb, err = persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
	}
	defer rdb.Close()

	stores := service.SeedStores{
		Users:      repository.NewMemoryUserRepository(),
		Feeds:      repository.NewMemoryFeedRepository(),
		Programmes: repository.NewMemoryProgrammeRepository(),
		Treatments: repository.NewMemoryTreatmentRepository(),
	}
	leaves := repository.NewMemoryLeaveRepository()
	if pg.Enabled() {
		pool := pg.PoolHandle()
		stores = service.SeedStores{
			Users:      repository.NewUserRepository(pool),
			Feeds:      repository.NewFeedRepository(pool),
			Programmes: repository.NewProgrammeRepository(pool),
			Treatments: repository.NewTreatmentRepository(pool),
		}
		leaves = repository.NewLeaveRepository(pool)
	}
	sessions := repository.NewMemorySessionRepository()
	if rdb.Enabled() {
		sessions = repository.NewRedisSessionRepository(rdb.Client, cfg.App.Name)
	}

	if cfg.Server.SeedDemoData {
		if err := service.SeedDemoData(ctx, stores, cfg.Auth, logger); err != nil {
			logger.Fatal("failed to seed demo data", zap.Error(err))
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := httptransport.NewApp(httptransport.AppDeps{
		Config:     *cfg,
		Logger:     logger,
		Users:      stores.Users,
		Sessions:   sessions,
		Feeds:      stores.Feeds,
		Programmes: stores.Programmes,
		Treatments: stores.Treatments,
		Leaves:     leaves,
		Registry:   registry,
		Probes: map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    rdb,
		},
	})

	go func() {
		logger.Info("devserver listening", zap.String("addr", cfg.Server.Addr()), zap.String("base_path", cfg.Server.BasePath))
		if err := app.Listen(cfg.Server.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
