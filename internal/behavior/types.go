// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package behavior

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// BaselineType identifies a behavioral fingerprint.
type BaselineType string

const (
	BaselineLocation      BaselineType = "location"
	BaselineTime          BaselineType = "time"
	BaselineAccessPattern BaselineType = "access_pattern"
)

// BaselineTypes lists every recognized type in calculation order.
var BaselineTypes = []BaselineType{BaselineLocation, BaselineTime, BaselineAccessPattern}

// Valid reports whether t is a recognized baseline type.
func (t BaselineType) Valid() bool {
	switch t {
	case BaselineLocation, BaselineTime, BaselineAccessPattern:
		return true
	default:
		return false
	}
}

// AnomalyType classifies a detected deviation.
type AnomalyType string

const (
	AnomalyUnusualLocation AnomalyType = "unusual_location"
	AnomalyUnusualTime     AnomalyType = "unusual_time"
	AnomalyUnusualAccess   AnomalyType = "unusual_access"
)

// Severity of an anomaly.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AnomalyStatus tracks the review workflow: new, then reviewed or dismissed.
type AnomalyStatus string

const (
	StatusNew       AnomalyStatus = "new"
	StatusReviewed  AnomalyStatus = "reviewed"
	StatusDismissed AnomalyStatus = "dismissed"
)

var (
	// ErrNotFound is returned when an anomaly does not exist.
	ErrNotFound = errors.New("anomaly not found")

	// ErrValidation wraps invalid caller input.
	ErrValidation = errors.New("invalid argument")
)

// Baseline is one stored fingerprint. Data holds the type-specific JSON
// document (LocationBaseline, TimeBaseline or AccessBaseline).
type Baseline struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	BaselineType BaselineType    `json:"baselineType"`
	Data         json.RawMessage `json:"baselineData"`
	CalculatedAt time.Time       `json:"calculatedAt"`
	LastUpdated  time.Time       `json:"lastUpdated"`
}

// LocationFrequency counts logins from one IP address.
type LocationFrequency struct {
	IP        string `json:"ip"`
	Frequency int64  `json:"frequency"`
}

// LocationBaseline is the baseline_data of a location baseline.
type LocationBaseline struct {
	CommonLocations []LocationFrequency `json:"commonLocations"`
	TotalLogins     int64               `json:"totalLogins"`
}

// HourFrequency counts logins within one UTC hour.
type HourFrequency struct {
	Hour      int   `json:"hour"`
	Frequency int64 `json:"frequency"`
}

// TimeBaseline is the baseline_data of a time baseline.
type TimeBaseline struct {
	CommonHours []HourFrequency `json:"commonHours"`
	AverageHour float64         `json:"averageHour"`
	TotalLogins int64           `json:"totalLogins"`
}

// ActionFrequency counts audit entries with one action.
type ActionFrequency struct {
	Action    string `json:"action"`
	Frequency int64  `json:"frequency"`
}

// AccessBaseline is the baseline_data of an access_pattern baseline.
type AccessBaseline struct {
	CommonActions []ActionFrequency `json:"commonActions"`
	TotalActions  int64             `json:"totalActions"`
}

// Event is the observed activity compared against a user's baselines.
// Zero-valued fields skip the corresponding check, except Timestamp which
// defaults to the current time.
type Event struct {
	IPAddress string    `json:"ipAddress,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Action    string    `json:"action,omitempty"`
}

// Anomaly is a persisted deviation from a baseline.
type Anomaly struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	AnomalyType AnomalyType     `json:"anomalyType"`
	Severity    Severity        `json:"severity"`
	Details     json.RawMessage `json:"details,omitempty"`
	DetectedAt  time.Time       `json:"detectedAt"`
	Status      AnomalyStatus   `json:"status"`
	ReviewedBy  *int64          `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time      `json:"reviewedAt,omitempty"`
}

// AnomalyFilter selects anomalies. Zero values are ignored.
type AnomalyFilter struct {
	Status    string     `json:"status,omitempty" validate:"omitempty,oneof=new reviewed dismissed"`
	Severity  string     `json:"severity,omitempty" validate:"omitempty,oneof=low medium high"`
	UserID    *int64     `json:"userId,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Limit     int        `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`
	Offset    int        `json:"offset,omitempty" validate:"omitempty,min=0"`
}

// Stats aggregates anomaly counts.
type Stats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	BySeverity map[string]int64 `json:"bySeverity"`
	ByType     map[string]int64 `json:"byType"`
	Last24h    int64            `json:"last24h"`
}
