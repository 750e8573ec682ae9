package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ehealth-cst/ehealth-client/internal/apiclient"
	"github.com/ehealth-cst/ehealth-client/internal/config"
	"github.com/ehealth-cst/ehealth-client/internal/cookies"
	"github.com/ehealth-cst/ehealth-client/internal/ehealth"
	"github.com/ehealth-cst/ehealth-client/internal/events"
	"github.com/ehealth-cst/ehealth-client/internal/observability"
	"github.com/ehealth-cst/ehealth-client/internal/persistence"
	"github.com/ehealth-cst/ehealth-client/internal/session"
	"github.com/ehealth-cst/ehealth-client/internal/tokenstore"
	"github.com/ehealth-cst/ehealth-client/internal/worker"
)

// app is one CLI invocation's session stack.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	redis      *persistence.Redis
	store      *tokenstore.Store
	controller *session.Controller
	api        *ehealth.Client
	audit      *worker.SessionAudit
	out        io.Writer
	in         io.Reader
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	logger, err := observability.NewLogger(cfg.Logger, "stderr")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	rdb := &persistence.Redis{}
	if cfg.TokenStore.Backend == "redis" {
		rdb, err = persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	backend, err := tokenstore.NewBackend(cfg.TokenStore, rdb.Client)
	if err != nil {
		rdb.Close()
		return nil, err
	}
	store := tokenstore.New(backend, logger)

	jar, err := cookies.NewJar()
	if err != nil {
		rdb.Close()
		return nil, err
	}
	bridge, err := cookies.NewBridge(jar, cfg.API.BaseURL, logger)
	if err != nil {
		rdb.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	client, err := apiclient.New(apiclient.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout(),
		UserAgent: cfg.API.UserAgent,
		Jar:       jar,
		Store:     store,
		Cookies:   bridge,
		Logger:    logger,
		Metrics:   observability.NewClientMetrics(registry),
	})
	if err != nil {
		rdb.Close()
		return nil, err
	}

	dispatcher := events.NewInMemoryDispatcher()
	controller := session.New(session.Deps{
		API:        client,
		Store:      store,
		Cookies:    bridge,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		redis:      rdb,
		store:      store,
		controller: controller,
		api:        ehealth.New(controller),
		audit:      worker.StartSessionAudit(dispatcher, logger),
		out:        out,
	}, nil
}

// Close stops the audit worker and flushes metrics and logs.
func (a *app) Close() {
	a.audit.Stop()
	if path := a.cfg.API.MetricsFile; path != "" {
		if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
			a.logger.Warn("write metrics file", zap.String("path", path), zap.Error(err))
		}
	}
	a.redis.Close()
	_ = a.logger.Sync()
}
