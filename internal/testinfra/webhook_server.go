// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// WebhookCapture is one request received by a WebhookSink.
type WebhookCapture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// WebhookSink is an httptest server that records alert webhook deliveries.
type WebhookSink struct {
	server *httptest.Server

	mu       sync.Mutex
	captures []WebhookCapture
	status   int
}

// NewWebhookSink starts a sink answering 204 and registers its shutdown with t.
func NewWebhookSink(t *testing.T) *WebhookSink {
	t.Helper()

	s := &WebhookSink{status: http.StatusNoContent}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *WebhookSink) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	s.mu.Lock()
	s.captures = append(s.captures, WebhookCapture{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header.Clone(),
		Body:    body,
	})
	status := s.status
	s.mu.Unlock()

	w.WriteHeader(status)
}

// URL is the sink's base URL.
func (s *WebhookSink) URL() string { return s.server.URL }

// RespondWith changes the status code returned to later requests.
func (s *WebhookSink) RespondWith(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Captures returns a copy of every request received so far.
func (s *WebhookSink) Captures() []WebhookCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WebhookCapture, len(s.captures))
	copy(out, s.captures)
	return out
}

// WaitFor blocks until n requests arrived or timeout elapses.
func (s *WebhookSink) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		count := len(s.captures)
		s.mu.Unlock()
		if count >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}
