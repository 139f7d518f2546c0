// Package main provides the entry point for the researcher identity service
// HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forskardb/researcher-identity-service/internal/config"
	"github.com/forskardb/researcher-identity-service/internal/database"
	"github.com/forskardb/researcher-identity-service/internal/observability"
	"github.com/forskardb/researcher-identity-service/internal/reconcile"
	"github.com/forskardb/researcher-identity-service/internal/repository"
	httpserver "github.com/forskardb/researcher-identity-service/internal/server/http"
	"github.com/forskardb/researcher-identity-service/internal/upstream/bibliography"
	"github.com/forskardb/researcher-identity-service/internal/upstream/registry"
	"github.com/forskardb/researcher-identity-service/internal/upstream/scholarweb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("researcher-identity-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create repositories.
	mappingRepo := repository.NewPgMappingRepository(db)
	researcherRepo := repository.NewPgResearcherRepository(db)

	// Set up Prometheus metrics.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	// Create upstream clients.
	registryClient := registry.New(registry.Config{
		BaseURL:         cfg.Upstreams.Registry.BaseURL,
		TokenURL:        cfg.Upstreams.Registry.TokenURL,
		ClientID:        cfg.Upstreams.Registry.ClientID,
		ClientSecret:    cfg.Upstreams.Registry.ClientSecret,
		Scope:           cfg.Upstreams.Registry.Scope,
		Timeout:         cfg.Upstreams.Registry.Timeout,
		RateLimit:       cfg.Upstreams.Registry.RateLimit,
		BurstSize:       cfg.Upstreams.Registry.BurstSize,
		MaxAttempts:     cfg.Upstreams.Registry.MaxAttempts,
		RetryDelay:      cfg.Upstreams.Registry.RetryDelay,
		DetailThreshold: cfg.Upstreams.Registry.DetailThreshold,
		Logger:          logger.With().Str("component", "registry-client").Logger(),
		Metrics:         metrics,
	})

	bibliographyClient := bibliography.New(bibliography.Config{
		BaseURL:    cfg.Upstreams.Bibliography.BaseURL,
		APIKey:     cfg.Upstreams.Bibliography.APIKey,
		Timeout:    cfg.Upstreams.Bibliography.Timeout,
		RateLimit:  cfg.Upstreams.Bibliography.RateLimit,
		BurstSize:  cfg.Upstreams.Bibliography.BurstSize,
		MaxResults: cfg.Upstreams.Bibliography.MaxResults,
		Logger:     logger.With().Str("component", "bibliography-client").Logger(),
		Metrics:    metrics,
	})

	scholarClient := scholarweb.New(scholarweb.Config{
		BaseURL:     cfg.Upstreams.Scholar.BaseURL,
		Timeout:     cfg.Upstreams.Scholar.Timeout,
		RateLimit:   cfg.Upstreams.Scholar.RateLimit,
		BurstSize:   cfg.Upstreams.Scholar.BurstSize,
		MaxAttempts: cfg.Upstreams.Scholar.MaxAttempts,
		UserAgent:   cfg.Upstreams.Scholar.UserAgent,
		Logger:      logger.With().Str("component", "scholar-client").Logger(),
		Metrics:     metrics,
	})

	// Create the reconciliation engine.
	engine := reconcile.NewEngine(
		registryClient,
		mappingRepo,
		logger.With().Str("component", "reconcile-engine").Logger(),
	)
	engine.SetMetrics(metrics)

	// Create HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
	}

	httpSrv := httpserver.NewServer(httpCfg, httpserver.Deps{
		Matcher:        engine,
		Registry:       registryClient,
		Bibliography:   bibliographyClient,
		Scholar:        scholarClient,
		MappingRepo:    mappingRepo,
		ResearcherRepo: researcherRepo,
		DB:             db,
		Metrics:        metrics,
		Logger:         logger,
	})

	// Channel to collect server errors.
	errCh := make(chan error, 1)

	// Start HTTP server in background.
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", httpCfg.Address).
		Msg("researcher-identity-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down researcher-identity-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("researcher-identity-service shutdown complete")
	return nil
}
