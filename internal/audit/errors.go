// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package audit

import (
	"errors"
	"strings"

	"github.com/tomtom215/urosentinel/internal/database"
	"github.com/tomtom215/urosentinel/internal/metrics"
)

// ImmutabilityViolation is a write to audit_logs rejected by the storage triggers.
type ImmutabilityViolation struct {
	// Operation is the attempted statement kind: "delete", "update" or "write".
	Operation string
	// Detail is the trigger's message.
	Detail string
	Err    error
}

func (v *ImmutabilityViolation) Error() string {
	return "audit log immutability violation (" + v.Operation + "): " + v.Detail
}

func (v *ImmutabilityViolation) Unwrap() error {
	return v.Err
}

// AsImmutabilityViolation reports whether err is a trigger rejection and
// returns it in typed form. Errors already classified are returned as-is.
func AsImmutabilityViolation(err error) (*ImmutabilityViolation, bool) {
	if err == nil {
		return nil, false
	}
	var v *ImmutabilityViolation
	if errors.As(err, &v) {
		return v, true
	}
	pgErr, ok := database.PgError(err)
	if !ok || !strings.Contains(strings.ToLower(pgErr.Message), "immutable") {
		return nil, false
	}
	return &ImmutabilityViolation{
		Operation: operationFromMessage(pgErr.Message),
		Detail:    pgErr.Message,
		Err:       err,
	}, true
}

// ClassifyWriteError converts trigger rejections into *ImmutabilityViolation
// and counts them. Other errors pass through unchanged.
func ClassifyWriteError(err error) error {
	v, ok := AsImmutabilityViolation(err)
	if !ok {
		return err
	}
	metrics.AuditImmutabilityViolations.WithLabelValues(v.Operation).Inc()
	return v
}

func operationFromMessage(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "delete"):
		return "delete"
	case strings.Contains(lower, "update"), strings.Contains(lower, "user_id"):
		return "update"
	default:
		return "write"
	}
}
