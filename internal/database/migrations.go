// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/urosentinel/internal/logging"
)

// migrationLockID is the session advisory lock key that keeps two instances
// from bootstrapping the schema concurrently.
const migrationLockID int64 = 0x5552_4F53_454E_0001

// Migration is one versioned schema step. Exactly one of SQL or Func is set.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	Func        func(ctx context.Context, q Pool) error
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT,
	applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// HashChainBackfill adds and populates audit_logs.previous_hash on tables that
// predate the hash chain. Supplied by the audit package to avoid an import cycle.
type HashChainBackfill func(ctx context.Context, q Pool) error

// Migrations returns every schema step in order. The backfill sits between
// table creation and trigger installation.
func Migrations(backfill HashChainBackfill) []Migration {
	return []Migration{
		{Version: 1, Name: "core_tables", Description: "Audit, analytics, alert and identity tables", SQL: coreTablesSQL},
		{Version: 2, Name: "audit_hash_chain", Description: "Backfill previous_hash on pre-existing audit rows", Func: backfill},
		{Version: 3, Name: "audit_immutability", Description: "DELETE/UPDATE triggers and verify_audit_log_immutability()", SQL: immutabilitySQL},
		{Version: 4, Name: "audit_reader_role", Description: "Read-only audit_logs_reader role", SQL: readerRoleSQL},
		{Version: 5, Name: "audit_update_guard_noop", Description: "Accept no-op audit_logs UPDATEs; case-folded alert email index", SQL: updateGuardRevisionSQL},
	}
}

// Migrate applies every migration not yet recorded in schema_migrations.
// Each migration runs in its own transaction together with its bookkeeping row.
func (db *DB) Migrate(ctx context.Context, backfill HashChainBackfill) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire migration connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			logging.Warn().Err(err).Msg("Failed to release migration lock")
		}
	}()

	return runMigrations(ctx, conn, Migrations(backfill))
}

func runMigrations(ctx context.Context, conn Pool, migrations []Migration) error {
	if _, err := conn.Exec(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	newMigrations := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := applyMigration(ctx, conn, m); err != nil {
			return err
		}
		newMigrations++
		logging.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applied database migration")
	}

	if newMigrations == 0 {
		logging.Debug().Msg("Database schema up to date")
	}
	return nil
}

func applyMigration(ctx context.Context, conn Pool, m Migration) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin migration v%d: %w", m.Version, err)
	}
	defer RollbackQuietly(ctx, tx)

	switch {
	case m.SQL != "":
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
	case m.Func != nil:
		if err := m.Func(ctx, tx); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
	default:
		return fmt.Errorf("migration v%d (%s) has no body", m.Version, m.Name)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version, name, description) VALUES ($1, $2, $3)`,
		m.Version, m.Name, m.Description); err != nil {
		return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, q Querier) (map[int]bool, error) {
	rows, err := q.Query(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// MigrationHistory returns applied migrations in order.
func (db *DB) MigrationHistory(ctx context.Context) ([]Migration, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT version, name, COALESCE(description, ''), applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}
	defer rows.Close()

	var history []Migration
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		history = append(history, m)
	}
	return history, rows.Err()
}
