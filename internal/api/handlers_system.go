// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package api

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/urosentinel/internal/auth"
	"github.com/tomtom215/urosentinel/internal/logging"
	ws "github.com/tomtom215/urosentinel/internal/websocket"
)

// readinessTimeout bounds the database ping behind /health/ready.
const readinessTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandlers serves health checks and the live feed.
type SystemHandlers struct {
	db             Pinger
	hub            *ws.Hub
	allowedOrigins []string
	startTime      time.Time
}

// NewSystemHandlers creates the system handlers. hub may be nil, which
// disables /ws.
func NewSystemHandlers(db Pinger, hub *ws.Hub, allowedOrigins []string) *SystemHandlers {
	return &SystemHandlers{db: db, hub: hub, allowedOrigins: allowedOrigins, startTime: time.Now()}
}

// HealthLive handles GET /api/v1/health/live.
func (h *SystemHandlers) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data: map[string]any{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	})
}

// HealthReady handles GET /api/v1/health/ready. It returns 503 until the
// database answers a ping.
func (h *SystemHandlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	dbConnected := h.db != nil && h.db.Ping(ctx) == nil

	status, code := "ready", http.StatusOK
	if !dbConnected {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	data := map[string]any{
		"database_connected": dbConnected,
		"ready_to_serve":     dbConnected,
		"uptime":             time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		data["websocket_clients"] = h.hub.GetClientCount()
	}

	respondJSON(w, code, &APIResponse{
		Status:   status,
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	})
}

// WebSocket handles GET /ws.
func (h *SystemHandlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	subject := ""
	if s := auth.SubjectFromContext(r.Context()); s != nil {
		subject = s.Name()
	}
	client := ws.NewClient(h.hub, conn, subject)
	h.hub.Register <- client
	client.Start()
}

// checkOrigin accepts same-host origins and configured CORS origins.
// Browsers always send Origin on WebSocket handshakes, so a missing header
// is rejected.
func (h *SystemHandlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	if slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
