// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package audit

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// Action names recorded in audit_logs.action.
const (
	ActionLoginSuccess      = "login_success"
	ActionLoginFailure      = "login_failure"
	ActionLogout            = "logout"
	ActionDataAccess        = "data_access"
	ActionAccessDenied      = "access_denied"
	ActionSecurityAlert     = "security_alert"
	ActionAlertAcknowledged = "alert_acknowledged"
	ActionAlertResolved     = "alert_resolved"
	ActionAnomalyReviewed   = "anomaly_reviewed"
	ActionBaselineComputed  = "baseline_calculated"
	ActionChainVerified     = "audit_chain_verified"
)

// Status values recorded in audit_logs.status.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// HintUserIDNulled marks a chain break whose predecessor lost its user_id
// through ON DELETE SET NULL after the link was computed.
const HintUserIDNulled = "user_id_nulled"

var (
	// ErrNotFound is returned when an audit entry does not exist.
	ErrNotFound = errors.New("audit entry not found")

	// ErrValidation wraps entries rejected before reaching the database.
	ErrValidation = errors.New("invalid audit entry")
)

// Entry is one immutable row of audit_logs.
//
// Empty strings are stored as NULL and hash as null. PreviousHash is the
// digest of the preceding row; the row's own digest is derived, never stored.
type Entry struct {
	ID            int64           `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	UserID        *int64          `json:"userId,omitempty"`
	UserEmail     string          `json:"userEmail,omitempty"`
	UserRole      string          `json:"userRole,omitempty"`
	Action        string          `json:"action"`
	ResourceType  string          `json:"resourceType,omitempty"`
	ResourceID    string          `json:"resourceId,omitempty"`
	IPAddress     string          `json:"ipAddress,omitempty"`
	UserAgent     string          `json:"userAgent,omitempty"`
	RequestMethod string          `json:"requestMethod,omitempty"`
	RequestPath   string          `json:"requestPath,omitempty"`
	Status        string          `json:"status,omitempty"`
	ErrorCode     string          `json:"errorCode,omitempty"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	PreviousHash  string          `json:"previousHash"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Filter selects audit entries for the read API.
type Filter struct {
	UserID       *int64
	UserEmail    string
	Action       string
	ResourceType string
	ResourceID   string
	Status       string
	IPAddress    string
	StartTime    *time.Time
	EndTime      *time.Time
	Limit        int
	Offset       int
}

// ChainBreak describes the first link that does not match its predecessor.
type ChainBreak struct {
	EntryID    int64  `json:"entryId"`
	PreviousID int64  `json:"previousId"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
	Hint       string `json:"hint,omitempty"`
}

// ChainReport is the result of a full hash chain walk.
type ChainReport struct {
	Valid          bool        `json:"valid"`
	EntriesChecked int64       `json:"entriesChecked"`
	LastEntryID    int64       `json:"lastEntryId,omitempty"`
	LastHash       string      `json:"lastHash,omitempty"`
	FirstBreak     *ChainBreak `json:"firstBreak,omitempty"`
	VerifiedAt     time.Time   `json:"verifiedAt"`
	Duration       string      `json:"duration"`
}

// TriggerStatus is one row of verify_audit_log_immutability().
type TriggerStatus struct {
	TriggerName       string `json:"triggerName"`
	EventManipulation string `json:"eventManipulation"`
	ActionTiming      string `json:"actionTiming"`
	ActionStatement   string `json:"actionStatement"`
	Status            string `json:"status"`
}

// ImmutabilityStatus summarizes the storage-layer protection of audit_logs.
type ImmutabilityStatus struct {
	Enforced bool            `json:"enforced"`
	Triggers []TriggerStatus `json:"triggers"`
}

// Actor identifies who performed an audited action.
type Actor struct {
	UserID *int64
	Email  string
	Role   string
}

// Source describes where an audited request came from.
type Source struct {
	IPAddress     string
	UserAgent     string
	RequestMethod string
	RequestPath   string
}
