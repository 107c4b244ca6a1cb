// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shelfkeep/shelfkeep/internal/access"
	"github.com/shelfkeep/shelfkeep/internal/auth"
	authpg "github.com/shelfkeep/shelfkeep/internal/auth/postgres"
	"github.com/shelfkeep/shelfkeep/internal/catalog"
	catalogpg "github.com/shelfkeep/shelfkeep/internal/catalog/postgres"
	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/observability"
	"github.com/shelfkeep/shelfkeep/internal/store"
	"github.com/shelfkeep/shelfkeep/internal/web"
)

// readinessTimeout bounds the database ping behind /healthz/readiness.
const readinessTimeout = 2 * time.Second

// serveConfig holds flags of the serve command that are not configuration keys.
type serveConfig struct {
	autoMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	sc := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the catalog HTTP API and the metrics/health server.

Configuration is read from the config file, the environment (DATABASE_URL,
SHELFKEEP_*) and flags, in increasing order of precedence. The server
shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, sc, nil)
		},
	}

	config.RegisterServeFlags(cmd.Flags())
	cmd.Flags().BoolVar(&sc.autoMigrate, "auto-migrate", true, "apply pending database migrations on startup")

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies and
// blocks until ctx is cancelled or a server fails. If deps is nil, default
// implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, sc *serveConfig, deps *ServeDeps) error {
	deps = deps.withDefaults()

	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	logger := setupLogging(cfg)
	logger.Info("starting shelfkeep",
		"version", version,
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
	)

	db, err := deps.DatabaseFactory(ctx, cfg.Database, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	if sc.autoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	health := store.NewHealthChecker(db, readinessTimeout)
	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, health.Check)
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	tokens := authpg.NewTokenRepository(db)
	authOpts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithRecorder(metrics),
		auth.WithStoreTimeout(cfg.Auth.StoreTimeout),
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
		auth.WithPruneOnValidate(cfg.Auth.PruneOnValidate),
	}
	authService, err := auth.NewAuthService(tokens, authpg.NewUserRepository(db), auth.NewArgon2idHasher(), authOpts...)
	if err != nil {
		return err
	}

	var sweeper *auth.TokenSweeper
	if cfg.Auth.SweepInterval > 0 {
		if sweeper, err = auth.NewTokenSweeper(tokens, cfg.Auth.SweepInterval, authOpts...); err != nil {
			return err
		}
	}

	policy, err := access.NewPolicy(cfg.Roles(access.DefaultRoles))
	if err != nil {
		return err
	}
	if policy.Enabled() {
		logger.Info("role policy enabled", "roles", policy.Roles())
	}

	images, err := catalog.NewImageStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		return err
	}
	catalogService, err := catalog.NewService(
		catalogpg.NewCatalogRepository(db),
		catalogpg.NewItemRepository(db),
		images,
		logger,
	)
	if err != nil {
		return err
	}

	httpServer, err := web.NewServer(cfg.HTTP.Addr, authService, catalogService, web.Options{
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		SkipPaths:         cfg.Log.SkipPaths,
		Access:            policy,
		Recorder:          metrics,
		Logger:            logger,
		MaxUploadBytes:    cfg.Uploads.MaxBytes,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var metricsAddr string
	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		metricsAddr = obsServer.Addr()
		g.Go(func() error { return watchServer(obsErrCh, "observability") })
	}

	httpErrCh, err := httpServer.Start()
	if err != nil {
		stopServers(cfg.HTTP.ShutdownTimeout, logger, obsServer)
		return err
	}
	g.Go(func() error { return watchServer(httpErrCh, "http") })

	if sweeper != nil {
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		stopServers(cfg.HTTP.ShutdownTimeout, logger, httpServer, obsServer)
		return nil
	})

	logger.Info("shelfkeep ready", "http_addr", httpServer.Addr(), "metrics_addr", metricsAddr)
	deps.OnReady(httpServer.Addr(), metricsAddr)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// autoMigrate applies pending migrations before the servers start.
func autoMigrate(databaseURL string, factory func(string) (AutoMigrator, error), logger *slog.Logger) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	logger.Info("running database migrations")
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	logger.Info("database migrations complete")
	return nil
}

// stoppable is a server that shuts down gracefully.
type stoppable interface {
	Stop(ctx context.Context) error
}

// stopServers stops every server within timeout. A nil entry is a disabled
// server.
func stopServers(timeout time.Duration, logger *slog.Logger, servers ...stoppable) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, s := range servers {
		if s == nil {
			continue
		}
		if err := s.Stop(ctx); err != nil {
			logger.Warn("error stopping server", "error", err)
		}
	}
}

// watchServer turns a server's error channel into an errgroup result. A
// closed channel means the server stopped gracefully.
func watchServer(errCh <-chan error, name string) error {
	err, ok := <-errCh
	if !ok || err == nil {
		return nil
	}
	return oops.Code("SERVER_FAILED").With("server", name).Wrap(err)
}
