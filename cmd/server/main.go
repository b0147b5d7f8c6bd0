// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

// Package main is the UroSentinel server.
//
// UroSentinel guards a clinical application's audit trail and watches its
// authentication traffic. It keeps a hash-chained, append-only audit log in
// PostgreSQL, raises deduplicated security alerts from login heuristics,
// learns per-user behavioral baselines and flags deviations as anomalies.
//
// # Startup Order
//
//  1. Configuration (koanf: defaults, optional YAML, environment)
//  2. Logging (zerolog)
//  3. PostgreSQL pool and, with DATABASE_MIGRATE_ON_START, the schema
//  4. Audit store and asynchronous audit logger
//  5. Behavior service, heuristics monitor, alert notifiers and engine
//  6. JWT verification and Casbin authorization
//  7. HTTP router and WebSocket hub
//  8. Supervisor tree (chain verifier, baseline scheduler, hub, HTTP server)
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. After it stops, pending
// notifier deliveries are awaited, the audit logger drains its buffer, and
// the event bus and database pool are closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/urosentinel/internal/audit"
	"github.com/tomtom215/urosentinel/internal/behavior"
	"github.com/tomtom215/urosentinel/internal/config"
	"github.com/tomtom215/urosentinel/internal/database"
	"github.com/tomtom215/urosentinel/internal/eventbus"
	"github.com/tomtom215/urosentinel/internal/logging"
	"github.com/tomtom215/urosentinel/internal/metrics"
	"github.com/tomtom215/urosentinel/internal/supervisor"
	"github.com/tomtom215/urosentinel/internal/supervisor/services"
	ws "github.com/tomtom215/urosentinel/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// poolStatsInterval is how often connection pool gauges are refreshed.
const poolStatsInterval = 15 * time.Second

//nolint:gocyclo // sequential startup wiring
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Msg("Starting UroSentinel")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === DATA LAYER ===

	db, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(ctx, audit.Backfill); err != nil {
			db.Close()
			logging.Fatal().Err(err).Msg("Failed to apply database migrations")
		}
		logging.Info().Msg("Database schema is up to date")
	}

	auditStore := audit.NewStore(db.Pool(), audit.WithSerializedAppends(cfg.Audit.SerializeAppends))
	auditConfig := audit.DefaultConfig()
	if cfg.Audit.BufferSize > 0 {
		auditConfig.BufferSize = cfg.Audit.BufferSize
	}
	auditLogger := audit.NewLogger(auditStore, auditConfig)

	behaviorService := behavior.NewService(behavior.NewStore(db.Pool()), behavior.Config{
		MinHistory:    cfg.Analytics.MinHistory,
		HourDeviation: cfg.Analytics.HourDeviation,
		HistoryWindow: cfg.Analytics.HistoryWindow,
	})

	// === MESSAGING ===

	hub := ws.NewHub()

	bus, err := eventbus.New(eventbus.Config{
		NATSEnabled:   cfg.NATS.Enabled,
		NATSURL:       cfg.NATS.URL,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
	})
	if err != nil {
		db.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}

	engine, dispatcher := initDetection(cfg, db, hub, bus, behaviorService, auditLogger)

	// === HTTP ===

	router, enforcer, err := initRouter(cfg, db, hub, auditStore, auditLogger, behaviorService, engine)
	if err != nil {
		db.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize HTTP layer")
	}
	defer enforcer.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// === SUPERVISOR TREE ===

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	if cfg.Audit.VerifyInterval > 0 {
		tree.AddDataService(services.NewChainVerifierService(auditStore, hub, cfg.Audit.VerifyInterval))
	}
	if cfg.Analytics.RecomputeInterval > 0 {
		tree.AddDataService(services.NewBaselineSchedulerService(
			behaviorService, cfg.Analytics.RecomputeInterval, cfg.Analytics.RecomputeInterval))
	}
	tree.AddDataService(services.NewPoolStatsService(func() (int32, int32, int32) {
		s := db.Stats()
		return s.AcquiredConns(), s.IdleConns(), s.TotalConns()
	}, poolStatsInterval))
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	// Alert deliveries and audit writes still reference the pool.
	dispatcher.Wait()
	if err := auditLogger.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing audit logger")
	}
	if err := bus.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing event bus")
	}

	logging.Info().Msg("UroSentinel stopped")
}
