// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/urosentinel/internal/audit"
)

// AuditStore is the read side of the audit trail.
type AuditStore interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
	Count(ctx context.Context, filter audit.Filter) (int64, error)
	Get(ctx context.Context, id int64) (*audit.Entry, error)
	VerifyChain(ctx context.Context) (*audit.ChainReport, error)
	ImmutabilityStatus(ctx context.Context) (*audit.ImmutabilityStatus, error)
}

// ChainBroadcaster publishes verification results to live clients.
type ChainBroadcaster interface {
	BroadcastChainReport(report *audit.ChainReport, err error)
}

// AuditHandlers serves the audit trail and its integrity checks.
type AuditHandlers struct {
	store    AuditStore
	recorder ActivityRecorder
	chain    ChainBroadcaster
}

// NewAuditHandlers creates the audit handlers. recorder and chain may be nil.
func NewAuditHandlers(store AuditStore, recorder ActivityRecorder, chain ChainBroadcaster) *AuditHandlers {
	return &AuditHandlers{store: store, recorder: recorder, chain: chain}
}

// ListLogs handles GET /api/v1/audit/logs.
func (h *AuditHandlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := newQueryParams(r)
	filter := audit.Filter{
		UserID:       q.Int64Ptr("userId"),
		UserEmail:    q.String("userEmail"),
		Action:       q.String("action"),
		ResourceType: q.String("resourceType"),
		ResourceID:   q.String("resourceId"),
		Status:       q.String("status"),
		IPAddress:    q.String("ipAddress"),
		StartTime:    q.Time("startDate"),
		EndTime:      q.Time("endDate"),
		Limit:        q.Int("limit"),
		Offset:       q.Int("offset"),
	}
	if err := q.Err(); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		respondServiceError(w, r, badRequest("limit and offset must not be negative"))
		return
	}

	entries, err := h.store.Query(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.recordAccess(r, "audit_logs", "")
	respondOK(w, Page[audit.Entry]{
		Items:  entries,
		Total:  total,
		Limit:  effectiveLimit(filter.Limit, 100, 1000),
		Offset: filter.Offset,
	}, start)
}

// GetLog handles GET /api/v1/audit/logs/{id}.
func (h *AuditHandlers) GetLog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	entry, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.recordAccess(r, "audit_log", strconv.FormatInt(id, 10))
	respondOK(w, entry, start)
}

// VerifyChain handles GET /api/v1/audit/verify. A broken chain is still a
// 200; the report carries the first break.
func (h *AuditHandlers) VerifyChain(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	report, err := h.store.VerifyChain(r.Context())
	if h.chain != nil {
		h.chain.BroadcastChainReport(report, err)
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.recordAccess(r, "audit_chain", "")
	respondOK(w, report, start)
}

// Immutability handles GET /api/v1/audit/immutability.
func (h *AuditHandlers) Immutability(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status, err := h.store.ImmutabilityStatus(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondOK(w, status, start)
}

func (h *AuditHandlers) recordAccess(r *http.Request, resourceType, resourceID string) {
	if h.recorder == nil {
		return
	}
	h.recorder.LogDataAccess(r.Context(), actorFromRequest(r), audit.SourceFromRequest(r), resourceType, resourceID)
}

// effectiveLimit mirrors the store's pagination clamp.
func effectiveLimit(limit, def, max int) int {
	switch {
	case limit <= 0:
		return def
	case limit > max:
		return max
	default:
		return limit
	}
}
