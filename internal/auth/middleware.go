// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/urosentinel/internal/logging"
)

const tokenCookie = "token"

// FailureHook observes rejected requests, e.g. to write an audit entry.
type FailureHook func(r *http.Request, err error)

// Middleware authenticates every request it wraps.
type Middleware struct {
	verifier  *Verifier
	onFailure FailureHook
}

// NewMiddleware creates a Middleware. onFailure may be nil.
func NewMiddleware(verifier *Verifier, onFailure FailureHook) *Middleware {
	return &Middleware{verifier: verifier, onFailure: onFailure}
}

// Authenticate rejects requests without a valid bearer token with 401 and
// stores the Subject in the context of the rest.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := m.verifier.Verify(extractToken(r))
		recordVerification(err)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected unauthenticated request")
			if m.onFailure != nil {
				m.onFailure(r, err)
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="urosentinel"`)
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", unauthorizedMessage(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
	})
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(tokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoCredentials):
		return "missing"
	case errors.Is(err, ErrExpiredCredentials):
		return "expired"
	default:
		return "invalid"
	}
}

func unauthorizedMessage(err error) string {
	switch verificationResult(err) {
	case "missing":
		return "Authentication required"
	case "expired":
		return "Token expired"
	default:
		return "Invalid token"
	}
}

// ErrorBody is the error envelope shared by every JSON endpoint.
type ErrorBody struct {
	Status   string       `json:"status"`
	Error    *ErrorDetail `json:"error"`
	Metadata struct {
		Timestamp time.Time `json:"timestamp"`
	} `json:"metadata"`
}

// ErrorDetail carries a machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the shared JSON error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	body := ErrorBody{Status: "error", Error: &ErrorDetail{Code: code, Message: message}}
	body.Metadata.Timestamp = time.Now().UTC()

	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
