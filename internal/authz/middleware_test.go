// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package authz

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/urosentinel/internal/auth"
	"github.com/tomtom215/urosentinel/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

func TestMiddleware_AuthorizeRequest(t *testing.T) {
	e := newTestEnforcer(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		subject    *auth.Subject
		wantStatus int
		wantDenied bool
	}{
		{"reviewer reads alerts", http.MethodGet, "/api/v1/security/alerts", &auth.Subject{ID: "1", Roles: []string{"reviewer"}}, http.StatusOK, false},
		{"reviewer acknowledges", http.MethodPost, "/api/v1/security/alerts/4/acknowledge", &auth.Subject{ID: "1", Roles: []string{"reviewer"}}, http.StatusOK, false},
		{"reviewer ingests events", http.MethodPost, "/api/v1/security/events", &auth.Subject{ID: "1", Roles: []string{"reviewer"}}, http.StatusForbidden, true},
		{"auditor verifies chain", http.MethodGet, "/api/v1/audit/verify", &auth.Subject{ID: "2", Roles: []string{"auditor"}}, http.StatusOK, false},
		{"auditor patches anomaly", http.MethodPatch, "/api/v1/analytics/anomalies/3", &auth.Subject{ID: "2", Roles: []string{"auditor"}}, http.StatusForbidden, true},
		{"no roles", http.MethodGet, "/api/v1/audit/logs", &auth.Subject{ID: "3"}, http.StatusForbidden, true},
		{"no subject", http.MethodGet, "/api/v1/audit/logs", nil, http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var denied string
			m := NewMiddleware(e, func(_ *http.Request, s *auth.Subject, action string) {
				denied = s.ID + ":" + action
			})

			reached := false
			handler := m.AuthorizeRequest(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.subject != nil {
				req = req.WithContext(auth.ContextWithSubject(req.Context(), tt.subject))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if reached != (tt.wantStatus == http.StatusOK) {
				t.Errorf("handler reached = %v", reached)
			}
			if (denied != "") != tt.wantDenied {
				t.Errorf("denial hook = %q, want called=%v", denied, tt.wantDenied)
			}
			if rec.Code == http.StatusForbidden && !strings.Contains(rec.Body.String(), `"FORBIDDEN"`) {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:     "read",
		http.MethodHead:    "read",
		http.MethodOptions: "read",
		http.MethodPost:    "write",
		http.MethodPut:     "write",
		http.MethodPatch:   "write",
		http.MethodDelete:  "delete",
	}
	for method, want := range tests {
		if got := methodToAction(method); got != want {
			t.Errorf("methodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}
