// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

//go:build integration

package detection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/urosentinel/internal/testinfra"
)

func TestIntegration_DeduplicationLifecycle(t *testing.T) {
	db := testinfra.NewMigratedDB(t, nil)
	ctx := context.Background()
	pool := db.Pool()

	rec := &recordingNotifier{}
	svc := NewAlertService(pool, NewMonitor(pool, DefaultMonitorConfig()), NewDispatcher(rec))
	store := NewAlertStore(pool)
	v := failedAttemptsVerdict()

	first := svc.Raise(ctx, v)
	if first.Outcome != OutcomeInserted {
		t.Fatalf("first raise = %s (%v)", first.Outcome, first.Err)
	}
	second := svc.Raise(ctx, v)
	if second.Outcome != OutcomeUpdated || second.Alert.ID != first.Alert.ID || second.Alert.OccurrenceCount != 2 {
		t.Fatalf("second raise = %+v", second)
	}

	if _, err := store.Acknowledge(ctx, first.Alert.ID, "reviewer@clinic.test"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	third := svc.Raise(ctx, v)
	if third.Alert.Status != StatusAcknowledged || third.Notified {
		t.Errorf("raise on acknowledged alert = %+v", third)
	}

	if _, err := store.Resolve(ctx, first.Alert.ID, "reviewer@clinic.test"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	fourth := svc.Raise(ctx, v)
	if fourth.Outcome != OutcomeReactivated || fourth.Alert.Status != StatusNew || fourth.Alert.OccurrenceCount != 4 {
		t.Errorf("raise on resolved alert = %+v", fourth)
	}
	svc.Dispatcher().Wait()

	if got := len(rec.sent()); got != 2 {
		t.Errorf("notifications = %d, want insert and reactivation only", got)
	}
	n, err := store.Count(ctx, AlertFilter{AlertType: string(AlertMultipleFailedAttempts)})
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want a single alert row", n, err)
	}
}

func TestIntegration_EmailCaseSharesOneAlert(t *testing.T) {
	db := testinfra.NewMigratedDB(t, nil)
	ctx := context.Background()
	pool := db.Pool()

	svc := NewAlertService(pool, NewMonitor(pool, DefaultMonitorConfig()), nil)
	v := failedAttemptsVerdict()
	v.UserEmail = "Dr.Case@Clinic.test"
	first := svc.Raise(ctx, v)

	v.UserEmail = "dr.case@clinic.test"
	second := svc.Raise(ctx, v)
	svc.Dispatcher().Wait()

	if first.Outcome != OutcomeInserted || second.Outcome != OutcomeUpdated || second.Alert.ID != first.Alert.ID {
		t.Fatalf("raises = %+v / %+v, want one alert updated", first, second)
	}
}

func TestIntegration_ConcurrentRaiseProducesOneAlert(t *testing.T) {
	db := testinfra.NewMigratedDB(t, nil)
	ctx := context.Background()
	pool := db.Pool()

	svc := NewAlertService(pool, NewMonitor(pool, DefaultMonitorConfig()), nil)
	v := failedAttemptsVerdict()
	v.UserEmail = "race@clinic.test"

	const workers = 12
	var wg sync.WaitGroup
	results := make([]*DedupResult, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Raise(ctx, v)
		}(i)
	}
	wg.Wait()

	inserted := 0
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("raise failed: %v", r.Err)
		}
		if r.Outcome == OutcomeInserted {
			inserted++
		}
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1", inserted)
	}

	alerts, err := NewAlertStore(pool).List(ctx, AlertFilter{UserEmail: "race@clinic.test"})
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].OccurrenceCount != workers {
		t.Errorf("alerts = %+v, want one row counted %d times", alerts, workers)
	}
}

func TestIntegration_EngineLockout(t *testing.T) {
	db := testinfra.NewMigratedDB(t, nil)
	ctx := context.Background()
	pool := db.Pool()

	if _, err := pool.Exec(ctx,
		`INSERT INTO users (email, role, failed_login_attempts) VALUES ('locked@clinic.test', 'staff', 8)`); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if _, err := pool.Exec(ctx,
			`INSERT INTO login_history (email, ip_address, success, created_at) VALUES ($1, $2, FALSE, $3)`,
			"locked@clinic.test", "192.0.2.10", time.Now().Add(-time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}

	monitor := NewMonitor(pool, DefaultMonitorConfig())
	svc := NewAlertService(pool, monitor, nil)
	engine := NewEngine(monitor, svc)

	event := AuthEvent{UserEmail: "locked@clinic.test", IPAddress: "192.0.2.10", EventType: EventLoginFailure}
	first := engine.Process(ctx, event)
	if first.FailedAttempts != 9 || len(first.Verdicts) != 1 || first.Verdicts[0].AlertType != AlertMultipleFailedAttempts {
		t.Fatalf("first failure = %+v", first)
	}

	second := engine.Process(ctx, event)
	if second.FailedAttempts != 10 || len(second.Verdicts) != 2 {
		t.Fatalf("second failure = %+v", second)
	}
	lockout, err := NewAlertStore(pool).List(ctx, AlertFilter{AlertType: string(AlertLockoutThreshold)})
	if err != nil || len(lockout) != 1 || lockout[0].Severity != SeverityCritical {
		t.Fatalf("lockout alerts = %+v, %v", lockout, err)
	}

	engine.Process(ctx, AuthEvent{UserEmail: "locked@clinic.test", IPAddress: "192.0.2.10", EventType: EventLoginSuccess})
	var attempts int
	if err := pool.QueryRow(ctx, `SELECT failed_login_attempts FROM users WHERE email = 'locked@clinic.test'`).Scan(&attempts); err != nil {
		t.Fatal(err)
	}
	if attempts != 0 {
		t.Errorf("failed_login_attempts = %d after success, want 0", attempts)
	}
	svc.Dispatcher().Wait()
}
