// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/urosentinel/internal/audit"
	"github.com/tomtom215/urosentinel/internal/auth"
	"github.com/tomtom215/urosentinel/internal/authz"
)

// ActivityRecorder writes API activity to the audit trail.
type ActivityRecorder interface {
	LogDataAccess(ctx context.Context, actor audit.Actor, source audit.Source, resourceType, resourceID string)
	LogReview(ctx context.Context, actor audit.Actor, source audit.Source, action, resourceType string, resourceID int64, newStatus string)
	LogAuthFailure(ctx context.Context, email string, source audit.Source, reason string)
	LogAccessDenied(ctx context.Context, actor audit.Actor, source audit.Source, reason string)
}

func actorFromSubject(s *auth.Subject) audit.Actor {
	if s == nil {
		return audit.Actor{}
	}
	return audit.Actor{UserID: s.UserID, Email: s.Email, Role: s.PrimaryRole()}
}

func actorFromRequest(r *http.Request) audit.Actor {
	return actorFromSubject(auth.SubjectFromContext(r.Context()))
}

// reviewerName identifies the subject in acknowledged_by/resolved_by columns.
func reviewerName(r *http.Request) string {
	if s := auth.SubjectFromContext(r.Context()); s != nil {
		return s.Name()
	}
	return ""
}

// AuthFailureHook records rejected bearer tokens. Requests without any
// credentials are not recorded.
func AuthFailureHook(rec ActivityRecorder) auth.FailureHook {
	return func(r *http.Request, err error) {
		if errors.Is(err, auth.ErrNoCredentials) {
			return
		}
		rec.LogAuthFailure(r.Context(), "", audit.SourceFromRequest(r), err.Error())
	}
}

// AccessDeniedHook records requests refused by the authorization policy.
func AccessDeniedHook(rec ActivityRecorder) authz.DenialHook {
	return func(r *http.Request, subject *auth.Subject, action string) {
		rec.LogAccessDenied(r.Context(), actorFromSubject(subject), audit.SourceFromRequest(r), "policy denies "+action)
	}
}
