// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordDBQuery tests database query metric recording
func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		err       error
		wantError string
	}{
		{name: "successful insert", operation: "insert", table: "audit_logs"},
		{name: "short error", operation: "select", table: "anomalies", err: errors.New("connection refused"), wantError: "connection refused"},
		{
			name:      "long error truncated to 50 chars",
			operation: "update",
			table:     "security_alerts",
			err:       errors.New(strings.Repeat("x", 80)),
			wantError: strings.Repeat("x", 50),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before float64
			if tt.err != nil {
				before = testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, tt.table, tt.wantError))
			}

			RecordDBQuery(tt.operation, tt.table, 5*time.Millisecond, tt.err)

			if tt.err != nil {
				after := testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, tt.table, tt.wantError))
				if after != before+1 {
					t.Errorf("error counter = %v, want %v", after, before+1)
				}
			}
		})
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/audit/logs", "200"))
	RecordAPIRequest("GET", "/api/v1/audit/logs", "200", 20*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/audit/logs", "200"))
	if after != before+1 {
		t.Errorf("api_requests_total = %v, want %v", after, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("after inc = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("after dec = %v, want %v", got, before)
	}
}

func TestRecordAuditAppend(t *testing.T) {
	ok := testutil.ToFloat64(AuditAppends.WithLabelValues("success"))
	failed := testutil.ToFloat64(AuditAppends.WithLabelValues("failure"))

	RecordAuditAppend(nil)
	RecordAuditAppend(errors.New("boom"))

	if got := testutil.ToFloat64(AuditAppends.WithLabelValues("success")); got != ok+1 {
		t.Errorf("success = %v, want %v", got, ok+1)
	}
	if got := testutil.ToFloat64(AuditAppends.WithLabelValues("failure")); got != failed+1 {
		t.Errorf("failure = %v, want %v", got, failed+1)
	}
}

func TestRecordChainVerification(t *testing.T) {
	tests := []struct {
		name    string
		valid   bool
		entries int64
		err     error
		label   string
	}{
		{name: "valid chain", valid: true, entries: 42, label: "valid"},
		{name: "broken chain", valid: false, entries: 7, label: "broken"},
		{name: "query error", err: errors.New("timeout"), label: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(AuditChainVerifications.WithLabelValues(tt.label))
			RecordChainVerification(tt.valid, tt.entries, tt.err)
			if got := testutil.ToFloat64(AuditChainVerifications.WithLabelValues(tt.label)); got != before+1 {
				t.Errorf("%s counter = %v, want %v", tt.label, got, before+1)
			}
			if tt.err == nil {
				if got := testutil.ToFloat64(AuditChainEntriesVerified); got != float64(tt.entries) {
					t.Errorf("entries gauge = %v, want %d", got, tt.entries)
				}
			}
		})
	}
}

func TestRecordHeuristic(t *testing.T) {
	alert := testutil.ToFloat64(HeuristicVerdicts.WithLabelValues("lockout_threshold", "alert"))
	clearBefore := testutil.ToFloat64(HeuristicVerdicts.WithLabelValues("lockout_threshold", "clear"))

	RecordHeuristic("lockout_threshold", true)
	RecordHeuristic("lockout_threshold", false)
	RecordHeuristic("lockout_threshold", false)

	if got := testutil.ToFloat64(HeuristicVerdicts.WithLabelValues("lockout_threshold", "alert")); got != alert+1 {
		t.Errorf("alert = %v, want %v", got, alert+1)
	}
	if got := testutil.ToFloat64(HeuristicVerdicts.WithLabelValues("lockout_threshold", "clear")); got != clearBefore+2 {
		t.Errorf("clear = %v, want %v", got, clearBefore+2)
	}
}

func TestRecordNotification(t *testing.T) {
	before := testutil.ToFloat64(NotificationsSent.WithLabelValues("webhook", "failure"))
	RecordNotification("webhook", errors.New("503"))
	if got := testutil.ToFloat64(NotificationsSent.WithLabelValues("webhook", "failure")); got != before+1 {
		t.Errorf("failure = %v, want %v", got, before+1)
	}
}

func TestUpdatePoolStats(t *testing.T) {
	UpdatePoolStats(3, 7, 10)
	if got := testutil.ToFloat64(DBPoolConnections.WithLabelValues("acquired")); got != 3 {
		t.Errorf("acquired = %v, want 3", got)
	}
	if got := testutil.ToFloat64(DBPoolConnections.WithLabelValues("total")); got != 10 {
		t.Errorf("total = %v, want 10", got)
	}
}
