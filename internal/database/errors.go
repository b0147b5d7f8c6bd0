// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes this service reacts to.
const (
	CodeRaiseException  = "P0001" // RAISE EXCEPTION without an explicit code
	CodeUniqueViolation = "23505"
	CodeUndefinedColumn = "42703"
)

// PgError unwraps a *pgconn.PgError from err.
func PgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	pgErr, ok := PgError(err)
	return ok && pgErr.Code == CodeUniqueViolation
}

// RollbackQuietly rolls back tx and discards the error. pgx returns
// ErrTxClosed after a successful commit, so it is safe to defer unconditionally.
func RollbackQuietly(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(ctx) //nolint:errcheck // best-effort cleanup
}
