// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/urosentinel/internal/auth"
	"github.com/tomtom215/urosentinel/internal/authz"
	"github.com/tomtom215/urosentinel/internal/middleware"
)

// Router wires handlers to routes.
type Router struct {
	Audit     *AuditHandlers
	Analytics *AnalyticsHandlers
	Security  *SecurityHandlers
	System    *SystemHandlers

	Authenticator *auth.Middleware
	Authorizer    *authz.Middleware
	Middleware    *ChiMiddleware

	// Metrics defaults to promhttp.Handler().
	Metrics http.Handler
}

// Handler builds the chi router.
func (rt *Router) Handler() http.Handler {
	mw := rt.Middleware
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	metricsHandler := rt.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog(middleware.DefaultSlowThreshold))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(mw.RateLimitCustom(RateLimitHealth))
		r.Use(APISecurityHeaders)
		r.Get("/live", rt.System.HealthLive)
		r.Get("/ready", rt.System.HealthReady)
	})

	// The live feed is not compressed; gzip writers cannot be hijacked.
	r.With(mw.RateLimit(), rt.Authenticator.Authenticate, rt.Authorizer.AuthorizeRequest).
		Get("/ws", rt.System.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders)
		r.Use(middleware.Compression)
		r.Use(rt.Authenticator.Authenticate)
		r.Use(rt.Authorizer.AuthorizeRequest)

		r.Route("/audit", func(r chi.Router) {
			r.Use(mw.RateLimit())
			r.Get("/logs", rt.Audit.ListLogs)
			r.Get("/logs/{id}", rt.Audit.GetLog)
			r.With(mw.RateLimitCustom(RateLimitVerify)).Get("/verify", rt.Audit.VerifyChain)
			r.Get("/immutability", rt.Audit.Immutability)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Use(mw.RateLimit())
			r.Get("/baselines/{userId}", rt.Analytics.GetBaselines)
			r.Post("/baselines/{userId}/calculate", rt.Analytics.CalculateBaselines)
			r.Get("/anomalies", rt.Analytics.ListAnomalies)
			r.Patch("/anomalies/{id}", rt.Analytics.UpdateAnomaly)
			r.Get("/stats", rt.Analytics.Stats)
		})

		r.Route("/security", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimit())
				r.Get("/alerts", rt.Security.ListAlerts)
				r.Post("/alerts/{id}/acknowledge", rt.Security.AcknowledgeAlert)
				r.Post("/alerts/{id}/resolve", rt.Security.ResolveAlert)
			})
			r.With(mw.RateLimitCustom(RateLimitIngest)).Post("/events", rt.Security.IngestEvent)
		})
	})

	return r
}
