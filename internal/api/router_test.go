// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/urosentinel/internal/auth"
	"github.com/tomtom215/urosentinel/internal/authz"
	"github.com/tomtom215/urosentinel/internal/config"
	"github.com/tomtom215/urosentinel/internal/logging"
	ws "github.com/tomtom215/urosentinel/internal/websocket"
)

const testSecret = "0123456789abcdef0123456789abcdef"

//nolint:gochecknoinits // quiet logs for the whole package
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

type testEnv struct {
	audit     *fakeAuditStore
	chain     *fakeChainBroadcaster
	anomalies *fakeAnomalyStore
	calc      *fakeCalculator
	alerts    *fakeAlertStore
	processor *fakeProcessor
	recorder  *fakeRecorder
	db        *fakePinger
	hub       *ws.Hub
	handler   http.Handler
}

type envOption func(*testEnv)

func withHub(hub *ws.Hub) envOption {
	return func(e *testEnv) { e.hub = hub }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{
		audit:     &fakeAuditStore{},
		chain:     &fakeChainBroadcaster{},
		anomalies: &fakeAnomalyStore{},
		calc:      &fakeCalculator{},
		alerts:    &fakeAlertStore{},
		processor: &fakeProcessor{},
		recorder:  &fakeRecorder{},
		db:        &fakePinger{},
	}
	for _, opt := range opts {
		opt(env)
	}

	verifier, err := auth.NewVerifier(&config.SecurityConfig{JWTSecret: testSecret})
	if err != nil {
		t.Fatal(err)
	}
	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(enforcer.Close)

	rt := &Router{
		Audit:         NewAuditHandlers(env.audit, env.recorder, env.chain),
		Analytics:     NewAnalyticsHandlers(env.calc, env.anomalies, env.recorder),
		Security:      NewSecurityHandlers(env.alerts, env.processor, env.recorder),
		System:        NewSystemHandlers(env.db, env.hub, nil),
		Authenticator: auth.NewMiddleware(verifier, AuthFailureHook(env.recorder)),
		Authorizer:    authz.NewMiddleware(enforcer, AccessDeniedHook(env.recorder)),
		Middleware:    NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true}),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}
	env.handler = rt.Handler()
	return env
}

func signToken(t *testing.T, sub, email string, roles ...string) string {
	t.Helper()
	claims := &auth.Claims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func reviewerToken(t *testing.T) string {
	return signToken(t, "42", "reviewer@clinic.test", auth.RoleReviewer)
}

func auditorToken(t *testing.T) string {
	return signToken(t, "43", "auditor@clinic.test", auth.RoleAuditor)
}

func adminToken(t *testing.T) string {
	return signToken(t, "1", "admin@clinic.test", auth.RoleAdmin)
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Status != "error" || env.Error == nil || env.Error.Code != code {
		t.Errorf("body = %s, want code %s", rec.Body.String(), code)
	}
}

func TestRouter_HealthIsPublic(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health/live", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("live = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/health/ready", "", "")
	if rec.Code != http.StatusOK || decodeEnvelope(t, rec).Status != "ready" {
		t.Errorf("ready = %d %s", rec.Code, rec.Body.String())
	}

	env.db.err = errors.New("connection refused")
	rec = env.do(t, http.MethodGet, "/api/v1/health/ready", "", "")
	if rec.Code != http.StatusServiceUnavailable || decodeEnvelope(t, rec).Status != "not_ready" {
		t.Errorf("ready with db down = %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_MetricsAndUnknownRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics" {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}

	expectError(t, env.do(t, http.MethodGet, "/nowhere", "", ""), http.StatusNotFound, CodeNotFound)
	expectError(t, env.do(t, http.MethodDelete, "/api/v1/health/live", "", ""), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
}

func TestRouter_Authentication(t *testing.T) {
	env := newTestEnv(t)

	expectError(t, env.do(t, http.MethodGet, "/api/v1/audit/logs", "", ""), http.StatusUnauthorized, CodeUnauthorized)
	if len(env.recorder.failures) != 0 {
		t.Errorf("missing credentials should not be recorded: %v", env.recorder.failures)
	}

	expectError(t, env.do(t, http.MethodGet, "/api/v1/audit/logs", "garbage", ""), http.StatusUnauthorized, CodeUnauthorized)
	if len(env.recorder.failures) != 1 {
		t.Errorf("failures = %v, want one", env.recorder.failures)
	}

	expectError(t, env.do(t, http.MethodGet, "/ws", "", ""), http.StatusUnauthorized, CodeUnauthorized)
}

func TestRouter_Authorization(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  func(*testing.T) string
		want   int
	}{
		{"auditor reads trail", http.MethodGet, "/api/v1/audit/logs", "", auditorToken, http.StatusOK},
		{"reviewer reads trail", http.MethodGet, "/api/v1/audit/logs", "", reviewerToken, http.StatusForbidden},
		{"reviewer lists alerts", http.MethodGet, "/api/v1/security/alerts", "", reviewerToken, http.StatusOK},
		{"auditor lists alerts", http.MethodGet, "/api/v1/security/alerts", "", auditorToken, http.StatusForbidden},
		{"reviewer ingests", http.MethodPost, "/api/v1/security/events", `{"eventType":"login_failure","userEmail":"a@x.com"}`, reviewerToken, http.StatusForbidden},
		{"admin ingests", http.MethodPost, "/api/v1/security/events", `{"eventType":"login_failure","userEmail":"a@x.com"}`, adminToken, http.StatusOK},
		{"auditor reads stats", http.MethodGet, "/api/v1/analytics/stats", "", auditorToken, http.StatusOK},
		{"auditor recalculates", http.MethodPost, "/api/v1/analytics/baselines/7/calculate", "", auditorToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.anomalies.stats = &behaviorStats
			rec := env.do(t, tt.method, tt.path, tt.token(t), tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusForbidden {
				if len(env.recorder.denied) != 1 || !strings.HasSuffix(env.recorder.denied[0], tt.method+" "+tt.path) {
					t.Errorf("denied = %v", env.recorder.denied)
				}
			}
		})
	}
}

func TestRouter_CompressesAPIResponses(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/security/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+reviewerToken(t))
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(zr)
	if !strings.Contains(string(body), `"status":"success"`) {
		t.Errorf("body = %s", body)
	}
}
