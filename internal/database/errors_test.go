// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestErrorClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: CodeUniqueViolation, Message: "duplicate key"}
	raised := &pgconn.PgError{Code: CodeRaiseException, Message: "audit logs are immutable"}

	tests := []struct {
		name   string
		err    error
		noRows bool
		unique bool
		pgCode string
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom")},
		{name: "no rows", err: pgx.ErrNoRows, noRows: true},
		{name: "wrapped no rows", err: fmt.Errorf("get alert: %w", pgx.ErrNoRows), noRows: true},
		{name: "unique", err: unique, unique: true, pgCode: CodeUniqueViolation},
		{name: "wrapped unique", err: fmt.Errorf("insert: %w", unique), unique: true, pgCode: CodeUniqueViolation},
		{name: "raise", err: raised, pgCode: CodeRaiseException},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNoRows(tt.err); got != tt.noRows {
				t.Errorf("IsNoRows = %v, want %v", got, tt.noRows)
			}
			if got := IsUniqueViolation(tt.err); got != tt.unique {
				t.Errorf("IsUniqueViolation = %v, want %v", got, tt.unique)
			}
			pgErr, ok := PgError(tt.err)
			if ok != (tt.pgCode != "") {
				t.Fatalf("PgError ok = %v", ok)
			}
			if ok && pgErr.Code != tt.pgCode {
				t.Errorf("code = %s, want %s", pgErr.Code, tt.pgCode)
			}
		})
	}
}
