// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

// Package testinfra holds shared test doubles and container helpers.
//
// # pgx Fakes
//
// FakeConn implements database.Pool in memory. Callbacks answer statements
// with FakeRow or FakeRows, so store tests run without a server:
//
//	conn := &testinfra.FakeConn{
//	    OnQueryRow: func(sql string, _ []any) pgx.Row {
//	        return testinfra.FakeRow{Values: []any{int64(1)}}
//	    },
//	}
//
// # PostgreSQL Container
//
// Behind the integration build tag, NewMigratedDB starts PostgreSQL with
// testcontainers-go, applies the schema and returns a ready *database.DB.
// Tests skip when Docker is unavailable:
//
//	//go:build integration
//
//	func TestChainAgainstPostgres(t *testing.T) {
//	    db := testinfra.NewMigratedDB(t, audit.Backfill)
//	    store := audit.NewStore(db.Pool())
//	    ...
//	}
//
// Run with:
//
//	go test -tags integration ./...
//
// # Webhook Sink
//
// WebhookSink records alert webhook deliveries for notifier tests.
package testinfra
