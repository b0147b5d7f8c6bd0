// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/urosentinel/internal/audit"
	"github.com/tomtom215/urosentinel/internal/detection"
	"github.com/tomtom215/urosentinel/internal/validation"
)

// AlertStore lists security alerts and moves them through their lifecycle.
type AlertStore interface {
	List(ctx context.Context, filter detection.AlertFilter) ([]detection.Alert, error)
	Count(ctx context.Context, filter detection.AlertFilter) (int64, error)
	Acknowledge(ctx context.Context, id int64, by string) (*detection.Alert, error)
	Resolve(ctx context.Context, id int64, by string) (*detection.Alert, error)
}

// EventProcessor runs an authentication event through monitoring,
// deduplication and anomaly detection.
type EventProcessor interface {
	Process(ctx context.Context, event detection.AuthEvent) *detection.ProcessResult
}

// SecurityHandlers serves the alert queue and event ingestion.
type SecurityHandlers struct {
	alerts    AlertStore
	processor EventProcessor
	recorder  ActivityRecorder
	now       func() time.Time
}

// NewSecurityHandlers creates the security handlers. recorder may be nil.
func NewSecurityHandlers(alerts AlertStore, processor EventProcessor, recorder ActivityRecorder) *SecurityHandlers {
	return &SecurityHandlers{alerts: alerts, processor: processor, recorder: recorder, now: time.Now}
}

// ListAlerts handles GET /api/v1/security/alerts.
func (h *SecurityHandlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := newQueryParams(r)
	filter := detection.AlertFilter{
		Status:    q.String("status"),
		Severity:  q.String("severity"),
		AlertType: q.String("alertType"),
		UserEmail: q.String("userEmail"),
		UserID:    q.Int64Ptr("userId"),
		StartDate: q.Time("startDate"),
		EndDate:   q.Time("endDate"),
		Limit:     q.Int("limit"),
		Offset:    q.Int("offset"),
	}
	if err := q.Err(); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&filter); verr != nil {
		respondValidation(w, verr)
		return
	}

	alerts, err := h.alerts.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	total, err := h.alerts.Count(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondOK(w, Page[detection.Alert]{
		Items:  alerts,
		Total:  total,
		Limit:  effectiveLimit(filter.Limit, 50, 500),
		Offset: filter.Offset,
	}, start)
}

// AcknowledgeAlert handles POST /api/v1/security/alerts/{id}/acknowledge.
func (h *SecurityHandlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, audit.ActionAlertAcknowledged, h.alerts.Acknowledge)
}

// ResolveAlert handles POST /api/v1/security/alerts/{id}/resolve.
func (h *SecurityHandlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, audit.ActionAlertResolved, h.alerts.Resolve)
}

func (h *SecurityHandlers) transition(w http.ResponseWriter, r *http.Request, action string,
	move func(ctx context.Context, id int64, by string) (*detection.Alert, error)) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	alert, err := move(r.Context(), id, reviewerName(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if h.recorder != nil {
		h.recorder.LogReview(r.Context(), actorFromRequest(r), audit.SourceFromRequest(r),
			action, "security_alert", id, string(alert.Status))
	}
	respondOK(w, alert, start)
}

// IngestEvent handles POST /api/v1/security/events. Monitoring failures
// never fail the request; the result lists whatever was detected.
func (h *SecurityHandlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var event detection.AuthEvent
	if err := decodeJSON(w, r, &event, false); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&event); verr != nil {
		respondValidation(w, verr)
		return
	}
	if event.UserEmail == "" && event.UserID == nil {
		respondServiceError(w, r, badRequest("userEmail or userId is required"))
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = h.now().UTC()
	}

	respondOK(w, h.processor.Process(r.Context(), event), start)
}
