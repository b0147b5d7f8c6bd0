// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package authz

import (
	"net/http"

	"github.com/tomtom215/urosentinel/internal/auth"
	"github.com/tomtom215/urosentinel/internal/logging"
)

// DenialHook is called for every request refused by the policy.
type DenialHook func(r *http.Request, subject *auth.Subject, action string)

// Middleware authorizes authenticated requests against the enforcer.
type Middleware struct {
	enforcer *Enforcer
	onDenied DenialHook
}

// NewMiddleware creates the authorization middleware. onDenied may be nil.
func NewMiddleware(enforcer *Enforcer, onDenied DenialHook) *Middleware {
	return &Middleware{enforcer: enforcer, onDenied: onDenied}
}

// AuthorizeRequest checks the request path and method-derived action.
// It must run after auth.Middleware.Authenticate.
func (m *Middleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := auth.SubjectFromContext(r.Context())
		if subject == nil {
			auth.WriteError(w, http.StatusForbidden, "FORBIDDEN", "No authentication context")
			return
		}

		action := methodToAction(r.Method)
		allowed, err := m.enforcer.EnforceWithRoles(subject.Roles, r.URL.Path, action)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Authorization error")
			auth.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			return
		}
		recordDecision(action, allowed)

		if !allowed {
			logging.Ctx(r.Context()).Warn().
				Str("subject", subject.Name()).
				Strs("roles", subject.Roles).
				Str("path", r.URL.Path).
				Str("action", action).
				Msg("Access denied")
			if m.onDenied != nil {
				m.onDenied(r, subject, action)
			}
			auth.WriteError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return "write"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
