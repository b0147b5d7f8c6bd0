// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

// Package database owns the PostgreSQL connection pool and the embedded schema.
//
// # Overview
//
// The pool is constructed once by the process entry point (Open) and handed to
// every store's constructor through the narrow Querier, TxBeginner and Pool
// interfaces. *pgxpool.Pool, *pgxpool.Conn and pgx.Tx all satisfy them.
//
// # Schema
//
// Migrate applies versioned steps tracked in schema_migrations, holding a
// session advisory lock so concurrent instances do not race:
//
//  1. core_tables: users, login_history, active_sessions, audit_logs,
//     behavioral_baselines, anomalies, security_alerts
//  2. audit_hash_chain: previous_hash backfill (supplied by the audit package)
//  3. audit_immutability: prevent_audit_log_delete / prevent_audit_log_update
//     BEFORE triggers and verify_audit_log_immutability()
//  4. audit_reader_role: audit_logs_reader with SELECT on the table and sequence
//
// Step 2 must precede step 3: once the triggers exist every UPDATE that is not
// a user_id → NULL transition fails with an "immutable" error.
package database
