// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package main

import (
	"github.com/tomtom215/urosentinel/internal/api"
	"github.com/tomtom215/urosentinel/internal/audit"
	"github.com/tomtom215/urosentinel/internal/auth"
	"github.com/tomtom215/urosentinel/internal/authz"
	"github.com/tomtom215/urosentinel/internal/behavior"
	"github.com/tomtom215/urosentinel/internal/config"
	"github.com/tomtom215/urosentinel/internal/database"
	"github.com/tomtom215/urosentinel/internal/detection"
	"github.com/tomtom215/urosentinel/internal/eventbus"
	"github.com/tomtom215/urosentinel/internal/logging"
	ws "github.com/tomtom215/urosentinel/internal/websocket"
)

// initDetection builds the alert pipeline: heuristics monitor, notifier
// dispatcher, deduplicating alert service and the engine that ties them to
// anomaly detection and the audit log.
func initDetection(
	cfg *config.Config,
	db *database.DB,
	hub *ws.Hub,
	bus *eventbus.Publisher,
	anomalies *behavior.Service,
	auditLogger *audit.Logger,
) (*detection.Engine, *detection.Dispatcher) {
	monitor := detection.NewMonitor(db.Pool(), detection.MonitorConfig{
		FailedAttemptThreshold: cfg.Monitoring.FailedAttemptThreshold,
		FailedAttemptWindow:    cfg.Monitoring.FailedAttemptWindow,
		LockoutThreshold:       cfg.Monitoring.LockoutThreshold,
	})

	dispatcher := detection.NewDispatcher(detection.NewLogNotifier())

	if cfg.Notify.WebhookURL != "" {
		dispatcher.Register(detection.NewWebhookNotifier(detection.WebhookConfig{
			URL:           cfg.Notify.WebhookURL,
			Timeout:       cfg.Notify.WebhookTimeout,
			RatePerMinute: cfg.Notify.WebhookRateLimit,
		}))
		logging.Info().Int("rate_per_minute", cfg.Notify.WebhookRateLimit).Msg("Alert webhook notifier registered")
	}

	opts := []detection.EngineOption{
		detection.WithAnomalyDetector(anomalies),
		detection.WithAuditRecorder(auditLogger),
	}
	if cfg.Notify.WebSocketEnabled {
		dispatcher.Register(detection.NewBroadcastNotifier(hub))
		opts = append(opts, detection.WithBroadcaster(hub))
	}

	if cfg.NATS.Enabled {
		dispatcher.Register(detection.NewPublisherNotifier(bus, cfg.NATS.Topic))
		logging.Info().Str("topic", cfg.NATS.Topic).Msg("Alert event publication enabled")
	}

	alerts := detection.NewAlertService(db.Pool(), monitor, dispatcher)
	engine := detection.NewEngine(monitor, alerts, opts...)

	logging.Info().
		Int("failed_attempt_threshold", cfg.Monitoring.FailedAttemptThreshold).
		Int("lockout_threshold", cfg.Monitoring.LockoutThreshold).
		Int("notifiers", len(dispatcher.Notifiers())).
		Msg("Detection engine initialized")

	return engine, dispatcher
}

// initRouter wires authentication, authorization and the API handlers. The
// caller owns the returned enforcer and must Close it.
func initRouter(
	cfg *config.Config,
	db *database.DB,
	hub *ws.Hub,
	auditStore *audit.Store,
	auditLogger *audit.Logger,
	behaviorService *behavior.Service,
	engine *detection.Engine,
) (*api.Router, *authz.Enforcer, error) {
	verifier, err := auth.NewVerifier(&cfg.Security)
	if err != nil {
		return nil, nil, err
	}
	enforcer, err := authz.NewEnforcer(authz.EnforcerConfigFromSecurity(&cfg.Security))
	if err != nil {
		return nil, nil, err
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (RATE_LIMIT_DISABLED=true)")
	}
	if len(cfg.Security.CORSOrigins) == 0 {
		logging.Info().Msg("No CORS origins configured; cross-origin requests are not allowed")
	}

	var hubForRoutes *ws.Hub
	if cfg.Notify.WebSocketEnabled {
		hubForRoutes = hub
	}

	router := &api.Router{
		Audit:         api.NewAuditHandlers(auditStore, auditLogger, hub),
		Analytics:     api.NewAnalyticsHandlers(behaviorService, behaviorService.Store(), auditLogger),
		Security:      api.NewSecurityHandlers(detection.NewAlertStore(db.Pool()), engine, auditLogger),
		System:        api.NewSystemHandlers(db, hubForRoutes, cfg.Security.CORSOrigins),
		Authenticator: auth.NewMiddleware(verifier, api.AuthFailureHook(auditLogger)),
		Authorizer:    authz.NewMiddleware(enforcer, api.AccessDeniedHook(auditLogger)),
		Middleware:    api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)),
	}
	return router, enforcer, nil
}
