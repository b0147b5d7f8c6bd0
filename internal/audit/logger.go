// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package audit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/urosentinel/internal/logging"
	"github.com/tomtom215/urosentinel/internal/metrics"
)

// Appender is the write side of Store.
type Appender interface {
	Append(ctx context.Context, e *Entry) (*Entry, error)
}

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether audit logging is active.
	Enabled bool

	// BufferSize is the size of the async write buffer.
	BufferSize int

	// WriteTimeout bounds each asynchronous append.
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Logger is the application-facing audit writer. Log never blocks the caller
// and never returns an error: the request being audited must not fail
// because the audit write did.
type Logger struct {
	config    *Config
	store     Appender
	eventChan chan *Entry
	mu        sync.RWMutex
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewLogger creates a new audit logger and starts its writer goroutine.
func NewLogger(store Appender, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	l := &Logger{
		config:    config,
		store:     store,
		eventChan: make(chan *Entry, config.BufferSize),
		stopChan:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.asyncWriter()

	return l
}

// asyncWriter processes entries from the buffer.
func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			// Drain remaining entries
			for {
				select {
				case e := <-l.eventChan:
					l.writeEntry(e)
				default:
					return
				}
			}
		case e := <-l.eventChan:
			l.writeEntry(e)
		}
	}
}

func (l *Logger) writeEntry(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()

	if _, err := l.store.Append(ctx, e); err != nil {
		logging.Error().Err(err).Str("action", e.Action).Msg("Failed to write audit entry")
	}
}

// Log queues e for asynchronous append. The entry is dropped, with a warning,
// when the buffer is full.
func (l *Logger) Log(ctx context.Context, e *Entry) {
	if !l.Enabled() || e == nil {
		return
	}
	l.prepare(ctx, e)

	select {
	case l.eventChan <- e:
	default:
		metrics.AuditDropped.Inc()
		logging.Warn().Str("action", e.Action).Msg("Audit buffer full, dropping entry")
	}
}

// LogSync appends e inline and returns the stored row. Trigger rejections are
// returned as *ImmutabilityViolation. Callers should log rather than fail on error.
func (l *Logger) LogSync(ctx context.Context, e *Entry) (*Entry, error) {
	if !l.Enabled() || e == nil {
		return nil, nil
	}
	l.prepare(ctx, e)

	stored, err := l.store.Append(ctx, e)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("action", e.Action).Msg("Failed to write audit entry")
		return nil, err
	}
	return stored, nil
}

// prepare stamps the timestamp and carries the request ID into metadata.
func (l *Logger) prepare(ctx context.Context, e *Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
		e.Metadata = withMetadataField(e.Metadata, "requestId", reqID)
	}
}

// Close shuts down the logger gracefully, flushing buffered entries.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()
	return nil
}

// Pending returns the number of buffered entries not yet written.
func (l *Logger) Pending() int {
	return len(l.eventChan)
}

// SetEnabled enables or disables audit logging.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Enabled = enabled
}

// Enabled returns whether audit logging is enabled.
func (l *Logger) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config.Enabled
}

// Helper methods for common audit events

// LogAuthSuccess records a successful login.
func (l *Logger) LogAuthSuccess(ctx context.Context, actor Actor, source Source) {
	l.Log(ctx, newEntry(actor, source, ActionLoginSuccess, StatusSuccess))
}

// LogAuthFailure records a failed login attempt.
func (l *Logger) LogAuthFailure(ctx context.Context, email string, source Source, reason string) {
	e := newEntry(Actor{Email: email}, source, ActionLoginFailure, StatusFailure)
	e.ErrorCode = "AUTH_FAILED"
	e.ErrorMessage = reason
	l.Log(ctx, e)
}

// LogDataAccess records a read of a protected resource.
func (l *Logger) LogDataAccess(ctx context.Context, actor Actor, source Source, resourceType, resourceID string) {
	e := newEntry(actor, source, ActionDataAccess, StatusSuccess)
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	l.Log(ctx, e)
}

// LogAccessDenied records an authorization denial.
func (l *Logger) LogAccessDenied(ctx context.Context, actor Actor, source Source, reason string) {
	e := newEntry(actor, source, ActionAccessDenied, StatusFailure)
	e.ErrorCode = "FORBIDDEN"
	e.ErrorMessage = reason
	l.Log(ctx, e)
}

// LogSecurityAlert records that an alert was raised or reactivated.
func (l *Logger) LogSecurityAlert(ctx context.Context, alertID int64, alertType, severity, outcome string, userID *int64, email, ip string) {
	e := &Entry{
		UserID:       userID,
		UserEmail:    email,
		Action:       ActionSecurityAlert,
		ResourceType: "security_alert",
		ResourceID:   formatID(alertID),
		IPAddress:    ip,
		Status:       StatusSuccess,
		Metadata: mustJSON(map[string]string{
			"alertType": alertType,
			"severity":  severity,
			"outcome":   outcome,
		}),
	}
	l.Log(ctx, e)
}

// LogReview records a reviewer changing the state of an alert or anomaly.
func (l *Logger) LogReview(ctx context.Context, actor Actor, source Source, action, resourceType string, resourceID int64, newStatus string) {
	e := newEntry(actor, source, action, StatusSuccess)
	e.ResourceType = resourceType
	e.ResourceID = formatID(resourceID)
	e.Metadata = mustJSON(map[string]string{"status": newStatus})
	l.Log(ctx, e)
}

func newEntry(actor Actor, source Source, action, status string) *Entry {
	return &Entry{
		UserID:        actor.UserID,
		UserEmail:     actor.Email,
		UserRole:      actor.Role,
		Action:        action,
		IPAddress:     source.IPAddress,
		UserAgent:     source.UserAgent,
		RequestMethod: source.RequestMethod,
		RequestPath:   source.RequestPath,
		Status:        status,
	}
}

// mustJSON converts a value to JSON, returning empty object on error.
func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// withMetadataField sets key in a metadata object unless already present.
// Non-object metadata is left untouched.
func withMetadataField(raw json.RawMessage, key, value string) json.RawMessage {
	fields := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return raw
		}
	}
	if _, ok := fields[key]; ok {
		return raw
	}
	fields[key] = value
	return mustJSON(fields)
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// SourceFromRequest creates a Source from an HTTP request.
func SourceFromRequest(r *http.Request) Source {
	return Source{
		IPAddress:     ClientIP(r),
		UserAgent:     r.UserAgent(),
		RequestMethod: r.Method,
		RequestPath:   r.URL.Path,
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
