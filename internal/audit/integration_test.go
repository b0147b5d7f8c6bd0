// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

//go:build integration

package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/urosentinel/internal/database"
	"github.com/tomtom215/urosentinel/internal/testinfra"
)

func createUser(t *testing.T, db *database.DB, email string) int64 {
	t.Helper()
	var id int64
	err := db.Pool().QueryRow(context.Background(),
		`INSERT INTO users (email) VALUES ($1) RETURNING id`, email).Scan(&id)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func appendN(t *testing.T, s *Store, n int, userID *int64) []*Entry {
	t.Helper()
	out := make([]*Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := s.Append(context.Background(), &Entry{
			UserID:    userID,
			UserEmail: "clinician@clinic.test",
			Action:    ActionDataAccess,
			IPAddress: "10.9.9.9",
			Status:    StatusSuccess,
			Metadata:  json.RawMessage(`{"z":1,"a":{"y":2,"b":[3,4]}}`),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		out = append(out, e)
	}
	return out
}

func TestIntegration_ChainIntegrity(t *testing.T) {
	db := testinfra.NewMigratedDB(t, Backfill)
	s := NewStore(db.Pool())
	ctx := context.Background()

	entries := appendN(t, s, 10, nil)
	if entries[0].PreviousHash != "" {
		t.Errorf("first entry previous_hash = %q, want empty", entries[0].PreviousHash)
	}

	report, err := s.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !report.Valid || report.EntriesChecked != 10 {
		t.Fatalf("report = %+v", report)
	}

	// A reread row hashes to the link stored on its successor.
	third, err := s.Get(ctx, entries[2].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ComputeHash(third) != entries[3].PreviousHash {
		t.Error("stored link does not match recomputed digest")
	}
}

func TestIntegration_ImmutabilityEnforced(t *testing.T) {
	db := testinfra.NewMigratedDB(t, Backfill)
	s := NewStore(db.Pool())
	ctx := context.Background()
	uid := createUser(t, db, "nurse@clinic.test")
	entries := appendN(t, s, 3, &uid)
	target := entries[1].ID

	_, err := db.Pool().Exec(ctx, `DELETE FROM audit_logs WHERE id = $1`, target)
	v, ok := AsImmutabilityViolation(err)
	if !ok || v.Operation != "delete" {
		t.Fatalf("DELETE err = %v, want delete violation", err)
	}

	_, err = db.Pool().Exec(ctx, `UPDATE audit_logs SET action = 'edited' WHERE id = $1`, target)
	if v, ok := AsImmutabilityViolation(err); !ok || v.Operation != "update" {
		t.Fatalf("UPDATE action err = %v, want update violation", err)
	}

	_, err = db.Pool().Exec(ctx, `UPDATE audit_logs SET user_id = NULL, status = 'failure' WHERE id = $1`, target)
	if _, ok := AsImmutabilityViolation(err); !ok {
		t.Fatalf("UPDATE user_id plus another column err = %v, want violation", err)
	}

	if _, err := db.Pool().Exec(ctx, `UPDATE audit_logs SET action = action WHERE id = $1`, target); err != nil {
		t.Fatalf("a no-op update should be allowed: %v", err)
	}

	other := createUser(t, db, "other@clinic.test")
	_, err = db.Pool().Exec(ctx, `UPDATE audit_logs SET user_id = $2 WHERE id = $1`, target, other)
	if _, ok := AsImmutabilityViolation(err); !ok {
		t.Fatalf("reassigning user_id err = %v, want violation", err)
	}

	if _, err := db.Pool().Exec(ctx, `UPDATE audit_logs SET user_id = NULL WHERE id = $1`, target); err != nil {
		t.Fatalf("nulling user_id should be allowed: %v", err)
	}
	if _, err := db.Pool().Exec(ctx, `UPDATE audit_logs SET user_id = NULL WHERE id = $1`, target); err != nil {
		t.Fatalf("NULL to NULL should be allowed: %v", err)
	}

	status, err := s.ImmutabilityStatus(ctx)
	if err != nil {
		t.Fatalf("ImmutabilityStatus: %v", err)
	}
	if !status.Enforced || len(status.Triggers) != 2 {
		t.Errorf("status = %+v", status)
	}
}

func TestIntegration_UserDeletionNullsAndIsReported(t *testing.T) {
	db := testinfra.NewMigratedDB(t, Backfill)
	s := NewStore(db.Pool())
	ctx := context.Background()
	uid := createUser(t, db, "leaver@clinic.test")

	entries := appendN(t, s, 3, &uid)

	if _, err := db.Pool().Exec(ctx, `DELETE FROM users WHERE id = $1`, uid); err != nil {
		t.Fatalf("user delete should cascade through the trigger: %v", err)
	}

	report, err := s.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if report.Valid {
		t.Fatal("nulling user_id changes the recomputed digest and must be reported")
	}
	if report.FirstBreak.EntryID != entries[1].ID || report.FirstBreak.Hint != HintUserIDNulled {
		t.Errorf("break = %+v", report.FirstBreak)
	}
}

func TestIntegration_TamperingDetected(t *testing.T) {
	db := testinfra.NewMigratedDB(t, Backfill)
	s := NewStore(db.Pool())
	ctx := context.Background()
	entries := appendN(t, s, 6, nil)

	// Bypass the trigger the way a superuser could.
	mustExec(t, db, `ALTER TABLE audit_logs DISABLE TRIGGER audit_logs_prevent_update`)

	status, err := s.ImmutabilityStatus(ctx)
	if err != nil {
		t.Fatalf("ImmutabilityStatus: %v", err)
	}
	if status.Enforced {
		t.Error("disabled trigger should not report enforced")
	}

	mustExec(t, db, `UPDATE audit_logs SET ip_address = '6.6.6.6' WHERE id = $1`, entries[2].ID)
	mustExec(t, db, `ALTER TABLE audit_logs ENABLE TRIGGER audit_logs_prevent_update`)

	report, err := s.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if report.Valid || report.FirstBreak.EntryID != entries[3].ID {
		t.Fatalf("expected break at %d, got %+v", entries[3].ID, report.FirstBreak)
	}
	if report.FirstBreak.Hint != "" {
		t.Errorf("unexpected hint %q", report.FirstBreak.Hint)
	}
}

func TestIntegration_BackfillIdempotent(t *testing.T) {
	db := testinfra.NewMigratedDB(t, Backfill)
	s := NewStore(db.Pool())

	for i := 0; i < 2; i++ {
		migrated, err := s.MigratePreviousHashIfNeeded(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if migrated {
			t.Errorf("run %d: column exists, expected no-op", i)
		}
	}
}

func TestIntegration_BackfillLegacyTable(t *testing.T) {
	db := testinfra.NewMigratedDB(t, Backfill)
	ctx := context.Background()

	mustExec(t, db, `CREATE SCHEMA legacy`)
	mustExec(t, db, `CREATE TABLE legacy.audit_logs (LIKE public.audit_logs INCLUDING DEFAULTS)`)
	mustExec(t, db, `ALTER TABLE legacy.audit_logs DROP COLUMN previous_hash`)

	tx, err := db.Pool().Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer database.RollbackQuietly(ctx, tx)

	if _, err := tx.Exec(ctx, `SET LOCAL search_path TO legacy`); err != nil {
		t.Fatalf("search_path: %v", err)
	}
	for i := 1; i <= 4; i++ {
		if _, err := tx.Exec(ctx,
			`INSERT INTO audit_logs (id, action, user_email, metadata) VALUES ($1, 'login_success', 'old@clinic.test', '{"legacy":true}')`,
			i); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	migrated, err := MigratePreviousHashIfNeeded(ctx, tx)
	if err != nil || !migrated {
		t.Fatalf("migrated = %v, err = %v", migrated, err)
	}
	report, err := verifyChain(ctx, tx)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Valid || report.EntriesChecked != 4 {
		t.Errorf("report = %+v", report)
	}

	again, err := MigratePreviousHashIfNeeded(ctx, tx)
	if err != nil || again {
		t.Errorf("second run = %v, %v; want no-op", again, err)
	}
}

func TestIntegration_SerializedConcurrentAppends(t *testing.T) {
	db := testinfra.NewMigratedDB(t, Backfill)
	s := NewStore(db.Pool(), WithSerializedAppends(true))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Append(context.Background(), &Entry{Action: ActionDataAccess}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}

	report, err := s.VerifyChain(context.Background())
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !report.Valid || report.EntriesChecked != 20 {
		t.Errorf("report = %+v", report)
	}
}

func TestIntegration_LoggerWritesThroughStore(t *testing.T) {
	db := testinfra.NewMigratedDB(t, Backfill)
	s := NewStore(db.Pool())
	logger := NewLogger(s, nil)

	logger.LogAuthFailure(context.Background(), "x@clinic.test", Source{IPAddress: "10.0.0.1"}, "bad password")
	logger.Close()

	n, err := s.Count(context.Background(), Filter{Action: ActionLoginFailure})
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func mustExec(t *testing.T, db *database.DB, sql string, args ...any) {
	t.Helper()
	if _, err := db.Pool().Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}
