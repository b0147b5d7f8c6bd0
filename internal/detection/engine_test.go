// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package detection

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/urosentinel/internal/audit"
	"github.com/tomtom215/urosentinel/internal/behavior"
	"github.com/tomtom215/urosentinel/internal/testinfra"
)

type fakeAnomalyDetector struct {
	mu     sync.Mutex
	calls  []int64
	events []behavior.Event
	out    []behavior.Anomaly
}

func (f *fakeAnomalyDetector) DetectAnomalies(_ context.Context, userID int64, event *behavior.Event) []behavior.Anomaly {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	f.events = append(f.events, *event)
	return f.out
}

type auditEntry struct {
	alertID   int64
	alertType string
	outcome   string
	ip        string
}

type loginEntry struct {
	action string
	userID *int64
	email  string
	source audit.Source
	reason string
}

type fakeAuditRecorder struct {
	mu      sync.Mutex
	entries []auditEntry
	logins  []loginEntry
}

func (f *fakeAuditRecorder) LogAuthSuccess(_ context.Context, actor audit.Actor, source audit.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins = append(f.logins, loginEntry{action: audit.ActionLoginSuccess, userID: actor.UserID, email: actor.Email, source: source})
}

func (f *fakeAuditRecorder) LogAuthFailure(_ context.Context, email string, source audit.Source, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins = append(f.logins, loginEntry{action: audit.ActionLoginFailure, email: email, source: source, reason: reason})
}

func (f *fakeAuditRecorder) LogSecurityAlert(_ context.Context, alertID int64, alertType, _, outcome string, _ *int64, _, ip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, auditEntry{alertID: alertID, alertType: alertType, outcome: outcome, ip: ip})
}

// engineConn answers every statement the engine issues for one event.
func engineConn(failures, counter int64, priorLogins int64) *testinfra.FakeConn {
	conn := dedupConn{}.build()
	dedup := conn.OnQueryRow
	conn.OnQueryRow = func(sql string, args []any) pgx.Row {
		switch {
		case strings.Contains(sql, "SET failed_login_attempts = COALESCE"):
			if counter == 0 {
				return testinfra.FakeRow{Err: pgx.ErrNoRows}
			}
			return testinfra.FakeRow{Values: []any{counter}}
		case strings.Contains(sql, "NOT success"):
			return testinfra.FakeRow{Values: []any{failures}}
		case strings.Contains(sql, "FROM users WHERE email"):
			if counter == 0 {
				return testinfra.FakeRow{Err: pgx.ErrNoRows}
			}
			return testinfra.FakeRow{Values: []any{int64(5), counter}}
		case strings.Contains(sql, "AND success"):
			return testinfra.FakeRow{Values: []any{priorLogins}}
		case strings.Contains(sql, "FROM active_sessions"):
			return testinfra.FakeRow{Values: []any{int64(0), []string{}}}
		}
		return dedup(sql, args)
	}
	return conn
}

func newTestEngine(conn *testinfra.FakeConn, opts ...EngineOption) (*Engine, *recordingNotifier) {
	svc, rec := newTestAlertService(conn)
	return NewEngine(svc.monitor, svc, opts...), rec
}

func TestEngine_LoginFailure(t *testing.T) {
	conn := engineConn(4, 10, 0)
	detector := &fakeAnomalyDetector{}
	recorder := &fakeAuditRecorder{}
	engine, rec := newTestEngine(conn, WithAnomalyDetector(detector), WithAuditRecorder(recorder))

	res := engine.Process(context.Background(), AuthEvent{
		UserEmail: "a@x.com",
		IPAddress: "10.0.0.1",
		UserAgent: "curl/8",
		EventType: EventLoginFailure,
		Reason:    "bad password",
	})
	engine.alerts.Dispatcher().Wait()

	if res.FailedAttempts != 10 {
		t.Errorf("FailedAttempts = %d, want 10", res.FailedAttempts)
	}
	var types []AlertType
	for _, v := range res.Verdicts {
		types = append(types, v.AlertType)
	}
	if want := []AlertType{AlertMultipleFailedAttempts, AlertLockoutThreshold}; !reflect.DeepEqual(types, want) {
		t.Fatalf("verdicts = %v, want %v", types, want)
	}
	if len(res.Alerts) != 2 {
		t.Fatalf("alerts = %d, want 2", len(res.Alerts))
	}
	for _, a := range res.Alerts {
		if a.Outcome != OutcomeInserted {
			t.Errorf("outcome = %s, err = %v", a.Outcome, a.Err)
		}
	}
	if len(rec.sent()) != 2 {
		t.Errorf("notifications = %d, want 2", len(rec.sent()))
	}
	if len(recorder.entries) != 2 || recorder.entries[0].outcome != "inserted" || recorder.entries[0].ip != "10.0.0.1" {
		t.Errorf("audit entries = %+v", recorder.entries)
	}
	if len(detector.calls) != 0 {
		t.Error("anomaly detection runs only for successful logins")
	}
	if len(conn.CallsMatching("SET failed_login_attempts = COALESCE")) != 1 {
		t.Error("failure counter should be incremented once")
	}
	if n := len(conn.CallsMatching("FROM users WHERE email")); n != 1 {
		t.Errorf("lockout checks = %d, want 1", n)
	}
	lockoutInserts := 0
	for _, c := range conn.CallsMatching("INSERT INTO security_alerts") {
		if c.Args[0] == string(AlertLockoutThreshold) {
			lockoutInserts++
		}
	}
	if lockoutInserts != 1 {
		t.Errorf("lockout alerts written = %d, want 1", lockoutInserts)
	}
	if res.Alerts[1].Verdict.IPAddress != "10.0.0.1" {
		t.Errorf("lockout verdict = %+v", res.Alerts[1].Verdict)
	}

	want := loginEntry{
		action: audit.ActionLoginFailure,
		email:  "a@x.com",
		source: audit.Source{IPAddress: "10.0.0.1", UserAgent: "curl/8"},
		reason: "bad password",
	}
	if len(recorder.logins) != 1 || !reflect.DeepEqual(recorder.logins[0], want) {
		t.Errorf("login audit = %+v, want %+v", recorder.logins, want)
	}
}

func TestEngine_LoginFailureCounterErrorFallsBackToMonitor(t *testing.T) {
	conn := engineConn(1, 10, 0)
	lookup := conn.OnQueryRow
	conn.OnQueryRow = func(sql string, args []any) pgx.Row {
		if strings.Contains(sql, "SET failed_login_attempts = COALESCE") {
			return testinfra.FakeRow{Err: errors.New("read-only transaction")}
		}
		return lookup(sql, args)
	}
	recorder := &fakeAuditRecorder{}
	engine, _ := newTestEngine(conn, WithAuditRecorder(recorder))

	res := engine.Process(context.Background(), AuthEvent{
		UserEmail: "a@x.com",
		IPAddress: "10.0.0.1",
		EventType: EventLoginFailure,
	})
	engine.alerts.Dispatcher().Wait()

	if res.FailedAttempts != 0 {
		t.Errorf("FailedAttempts = %d, want 0", res.FailedAttempts)
	}
	if len(res.Verdicts) != 1 || res.Verdicts[0].AlertType != AlertLockoutThreshold || res.Verdicts[0].IPAddress != "10.0.0.1" {
		t.Fatalf("verdicts = %+v", res.Verdicts)
	}
	if len(recorder.logins) != 1 || recorder.logins[0].reason != "authentication failed" {
		t.Errorf("login audit = %+v", recorder.logins)
	}
}

func TestEngine_LoginFailureUnknownEmail(t *testing.T) {
	conn := engineConn(1, 0, 0)
	engine, _ := newTestEngine(conn)

	res := engine.Process(context.Background(), AuthEvent{
		UserEmail: "ghost@x.com",
		IPAddress: "10.0.0.1",
		EventType: EventLoginFailure,
	})
	if res.FailedAttempts != 0 || len(res.Verdicts) != 0 || len(res.Alerts) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestEngine_LoginSuccess(t *testing.T) {
	conn := engineConn(0, 0, 0)
	anomaly := behavior.Anomaly{ID: 3, UserID: 8, AnomalyType: behavior.AnomalyUnusualTime, Severity: behavior.SeverityLow}
	detector := &fakeAnomalyDetector{out: []behavior.Anomaly{anomaly}}
	hub := &recordingBroadcaster{}
	recorder := &fakeAuditRecorder{}
	ts := time.Date(2026, 4, 2, 23, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(conn, WithAnomalyDetector(detector), WithBroadcaster(hub), WithAuditRecorder(recorder))

	res := engine.Process(context.Background(), AuthEvent{
		UserID:    int64Ptr(8),
		UserEmail: "a@x.com",
		IPAddress: "203.0.113.4",
		EventType: EventLoginSuccess,
		Timestamp: ts,
	})
	engine.alerts.Dispatcher().Wait()

	if len(conn.CallsMatching("failed_login_attempts = 0")) != 1 {
		t.Error("successful login should reset the failure counter")
	}
	if len(res.Verdicts) != 1 || res.Verdicts[0].AlertType != AlertUnusualLocation {
		t.Errorf("verdicts = %+v", res.Verdicts)
	}
	if len(detector.calls) != 1 || detector.calls[0] != 8 {
		t.Fatalf("detector calls = %v", detector.calls)
	}
	got := detector.events[0]
	if got.IPAddress != "203.0.113.4" || !got.Timestamp.Equal(ts) || got.Action != audit.ActionLoginSuccess {
		t.Errorf("behavior event = %+v", got)
	}
	if len(recorder.logins) != 1 {
		t.Fatalf("login audit entries = %d, want 1", len(recorder.logins))
	}
	if login := recorder.logins[0]; login.action != audit.ActionLoginSuccess || login.userID == nil || *login.userID != 8 ||
		login.email != "a@x.com" || login.source.IPAddress != "203.0.113.4" {
		t.Errorf("login audit = %+v", login)
	}
	if len(recorder.entries) != 1 || recorder.entries[0].alertType != string(AlertUnusualLocation) {
		t.Errorf("alert audit = %+v", recorder.entries)
	}
	if len(res.Anomalies) != 1 || res.Anomalies[0].ID != 3 {
		t.Errorf("anomalies = %+v", res.Anomalies)
	}
	if len(hub.messages) != 1 || hub.messages[0] != MessageAnomalyDetected {
		t.Errorf("broadcasts = %v", hub.messages)
	}
}

func TestEngine_IgnoredEvents(t *testing.T) {
	tests := []struct {
		name    string
		disable bool
		event   AuthEvent
	}{
		{"unknown type", false, AuthEvent{UserEmail: "a@x.com", IPAddress: "10.0.0.1", EventType: "mfa_challenge"}},
		{"engine disabled", true, AuthEvent{UserEmail: "a@x.com", IPAddress: "10.0.0.1", EventType: EventLoginFailure}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &testinfra.FakeConn{}
			engine, _ := newTestEngine(conn)
			engine.SetEnabled(!tt.disable)

			res := engine.Process(context.Background(), tt.event)
			if res.Verdicts == nil || res.Alerts == nil {
				t.Error("result slices should be empty, not nil")
			}
			if len(res.Verdicts) != 0 || len(res.Alerts) != 0 {
				t.Errorf("result = %+v", res)
			}
			if conn.Touched() {
				t.Error("ignored events should not reach the database")
			}
		})
	}
}
