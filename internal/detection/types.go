// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package detection

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// AlertType identifies the heuristic that produced an alert.
type AlertType string

const (
	AlertMultipleFailedAttempts AlertType = "multiple_failed_attempts"
	AlertUnusualLocation        AlertType = "unusual_location"
	AlertSimultaneousLogins     AlertType = "simultaneous_logins"
	AlertLockoutThreshold       AlertType = "lockout_threshold"
)

// Severity indicates the severity level of an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertStatus tracks the human workflow: new, acknowledged, resolved.
type AlertStatus string

const (
	StatusNew          AlertStatus = "new"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// EventType is the kind of authentication event observed.
type EventType string

const (
	EventLoginFailure EventType = "login_failure"
	EventLoginSuccess EventType = "login_success"
)

var (
	// ErrNotFound is returned when an alert does not exist.
	ErrNotFound = errors.New("alert not found")

	// ErrValidation wraps invalid caller input or an illegal status change.
	ErrValidation = errors.New("invalid alert request")
)

// AuthEvent is one authentication outcome reported by the clinical application.
type AuthEvent struct {
	UserID    *int64    `json:"userId,omitempty"`
	UserEmail string    `json:"userEmail,omitempty" validate:"omitempty,email"`
	IPAddress string    `json:"ipAddress,omitempty" validate:"omitempty,ip"`
	UserAgent string    `json:"userAgent,omitempty"`
	EventType EventType `json:"eventType" validate:"required"`
	Reason    string    `json:"reason,omitempty" validate:"max=500"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Verdict is the result of one heuristic. Only ShouldAlert is meaningful
// when it is false.
type Verdict struct {
	ShouldAlert bool           `json:"shouldAlert"`
	AlertType   AlertType      `json:"alertType,omitempty"`
	Severity    Severity       `json:"severity,omitempty"`
	UserID      *int64         `json:"userId,omitempty"`
	UserEmail   string         `json:"userEmail,omitempty"`
	IPAddress   string         `json:"ipAddress,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Alert is a persisted security alert.
type Alert struct {
	ID              int64           `json:"id"`
	AlertType       AlertType       `json:"alertType"`
	Severity        Severity        `json:"severity"`
	UserID          *int64          `json:"userId,omitempty"`
	UserEmail       string          `json:"userEmail,omitempty"`
	IPAddress       string          `json:"ipAddress,omitempty"`
	Message         string          `json:"message"`
	Details         json.RawMessage `json:"details,omitempty"`
	Status          AlertStatus     `json:"status"`
	OccurrenceCount int             `json:"occurrenceCount"`
	AcknowledgedBy  string          `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt  *time.Time      `json:"acknowledgedAt,omitempty"`
	ResolvedBy      string          `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time      `json:"resolvedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// AlertFilter selects alerts. Zero values are ignored.
type AlertFilter struct {
	Status    string     `json:"status,omitempty" validate:"omitempty,oneof=new acknowledged resolved"`
	Severity  string     `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	AlertType string     `json:"alertType,omitempty"`
	UserEmail string     `json:"userEmail,omitempty"`
	UserID    *int64     `json:"userId,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Limit     int        `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`
	Offset    int        `json:"offset,omitempty" validate:"omitempty,min=0"`
}

// DedupOutcome is what Raise did with a verdict.
type DedupOutcome string

const (
	OutcomeInserted    DedupOutcome = "inserted"
	OutcomeUpdated     DedupOutcome = "updated"
	OutcomeReactivated DedupOutcome = "reactivated"
	OutcomeSkipped     DedupOutcome = "skipped"
	OutcomeFailed      DedupOutcome = "failed"
)

// DedupResult reports the outcome of Raise. Err is set only for OutcomeFailed.
type DedupResult struct {
	Outcome  DedupOutcome `json:"outcome"`
	Alert    *Alert       `json:"alert,omitempty"`
	Notified bool         `json:"notified"`
	Verdict  Verdict      `json:"-"`
	Err      error        `json:"-"`
}

// Notifier delivers alerts to an external channel.
type Notifier interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, alert *Alert) error
}
