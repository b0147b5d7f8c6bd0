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
	"github.com/tomtom215/urosentinel/internal/auth"
	"github.com/tomtom215/urosentinel/internal/behavior"
	"github.com/tomtom215/urosentinel/internal/validation"
)

// BaselineCalculator recomputes user baselines.
type BaselineCalculator interface {
	CalculateBaseline(ctx context.Context, userID int64, baselineType behavior.BaselineType) (*behavior.Baseline, error)
	CalculateAllBaselines(ctx context.Context, userID int64) ([]behavior.Baseline, error)
}

// AnomalyStore reads baselines and anomalies and records review decisions.
type AnomalyStore interface {
	GetBaselines(ctx context.Context, userID int64) ([]behavior.Baseline, error)
	ListAnomalies(ctx context.Context, filter behavior.AnomalyFilter) ([]behavior.Anomaly, error)
	CountAnomalies(ctx context.Context, filter behavior.AnomalyFilter) (int64, error)
	UpdateAnomalyStatus(ctx context.Context, id int64, status behavior.AnomalyStatus, reviewerID int64) (*behavior.Anomaly, error)
	Stats(ctx context.Context) (*behavior.Stats, error)
}

// AnalyticsHandlers serves behavioral baselines and anomalies.
type AnalyticsHandlers struct {
	calculator BaselineCalculator
	store      AnomalyStore
	recorder   ActivityRecorder
}

// NewAnalyticsHandlers creates the analytics handlers. recorder may be nil.
func NewAnalyticsHandlers(calculator BaselineCalculator, store AnomalyStore, recorder ActivityRecorder) *AnalyticsHandlers {
	return &AnalyticsHandlers{calculator: calculator, store: store, recorder: recorder}
}

// CalculateBaselineRequest selects one baseline type. Empty means all.
type CalculateBaselineRequest struct {
	BaselineType string `json:"baselineType,omitempty" validate:"omitempty,oneof=location time access_pattern"`
}

// UpdateAnomalyRequest is a review decision.
type UpdateAnomalyRequest struct {
	Status string `json:"status" validate:"required,oneof=reviewed dismissed"`
}

// GetBaselines handles GET /api/v1/analytics/baselines/{userId}.
func (h *AnalyticsHandlers) GetBaselines(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID, err := pathID(r, "userId")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	baselines, err := h.store.GetBaselines(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondOK(w, baselines, start)
}

// CalculateBaselines handles POST /api/v1/analytics/baselines/{userId}/calculate.
func (h *AnalyticsHandlers) CalculateBaselines(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID, err := pathID(r, "userId")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var req CalculateBaselineRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}

	var baselines []behavior.Baseline
	if req.BaselineType == "" {
		baselines, err = h.calculator.CalculateAllBaselines(r.Context(), userID)
	} else {
		var b *behavior.Baseline
		b, err = h.calculator.CalculateBaseline(r.Context(), userID, behavior.BaselineType(req.BaselineType))
		if b != nil {
			baselines = []behavior.Baseline{*b}
		}
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if h.recorder != nil {
		h.recorder.LogReview(r.Context(), actorFromRequest(r), audit.SourceFromRequest(r),
			audit.ActionBaselineComputed, "user_baseline", userID, req.BaselineType)
	}
	respondOK(w, baselines, start)
}

// ListAnomalies handles GET /api/v1/analytics/anomalies.
func (h *AnalyticsHandlers) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := newQueryParams(r)
	filter := behavior.AnomalyFilter{
		Status:    q.String("status"),
		Severity:  q.String("severity"),
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

	anomalies, err := h.store.ListAnomalies(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	total, err := h.store.CountAnomalies(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondOK(w, Page[behavior.Anomaly]{
		Items:  anomalies,
		Total:  total,
		Limit:  effectiveLimit(filter.Limit, 50, 500),
		Offset: filter.Offset,
	}, start)
}

// UpdateAnomaly handles PATCH /api/v1/analytics/anomalies/{id}. The reviewer
// must be a user account since reviewed_by references users.
func (h *AnalyticsHandlers) UpdateAnomaly(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var req UpdateAnomalyRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}

	subject := auth.SubjectFromContext(r.Context())
	if subject == nil || subject.UserID == nil {
		respondServiceError(w, r, badRequest("reviewer must be a user account"))
		return
	}

	anomaly, err := h.store.UpdateAnomalyStatus(r.Context(), id, behavior.AnomalyStatus(req.Status), *subject.UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if h.recorder != nil {
		h.recorder.LogReview(r.Context(), actorFromSubject(subject), audit.SourceFromRequest(r),
			audit.ActionAnomalyReviewed, "anomaly", id, req.Status)
	}
	respondOK(w, anomaly, start)
}

// Stats handles GET /api/v1/analytics/stats.
func (h *AnalyticsHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondOK(w, stats, start)
}
