// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package detection

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/urosentinel/internal/audit"
	"github.com/tomtom215/urosentinel/internal/behavior"
	"github.com/tomtom215/urosentinel/internal/logging"
)

// MessageAnomalyDetected is the WebSocket message type for anomalies.
const MessageAnomalyDetected = "anomaly_detected"

// AnomalyDetector compares an event with a user's behavioral baselines.
type AnomalyDetector interface {
	DetectAnomalies(ctx context.Context, userID int64, event *behavior.Event) []behavior.Anomaly
}

// AuditRecorder writes authentication events and alert activity to the
// audit log. *audit.Logger satisfies it.
type AuditRecorder interface {
	LogAuthSuccess(ctx context.Context, actor audit.Actor, source audit.Source)
	LogAuthFailure(ctx context.Context, email string, source audit.Source, reason string)
	LogSecurityAlert(ctx context.Context, alertID int64, alertType, severity, outcome string, userID *int64, email, ip string)
}

// ProcessResult summarizes what Process did for one event.
type ProcessResult struct {
	Verdicts       []Verdict          `json:"verdicts"`
	Alerts         []*DedupResult     `json:"alerts"`
	Anomalies      []behavior.Anomaly `json:"anomalies,omitempty"`
	FailedAttempts int                `json:"failedAttempts,omitempty"`
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAnomalyDetector runs behavioral anomaly detection on successful logins.
func WithAnomalyDetector(d AnomalyDetector) EngineOption {
	return func(e *Engine) { e.anomalies = d }
}

// WithAuditRecorder records every login event and raised alert in the audit log.
func WithAuditRecorder(r AuditRecorder) EngineOption {
	return func(e *Engine) { e.audit = r }
}

// WithBroadcaster pushes detected anomalies to WebSocket clients.
func WithBroadcaster(b Broadcaster) EngineOption {
	return func(e *Engine) { e.broadcaster = b }
}

// Engine coordinates heuristics, deduplication, anomaly detection and
// auditing for each authentication event.
type Engine struct {
	monitor     *Monitor
	alerts      *AlertService
	anomalies   AnomalyDetector
	audit       AuditRecorder
	broadcaster Broadcaster

	mu      sync.RWMutex
	enabled bool
}

// NewEngine creates an enabled Engine.
func NewEngine(monitor *Monitor, alerts *AlertService, opts ...EngineOption) *Engine {
	e := &Engine{monitor: monitor, alerts: alerts, enabled: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process handles one authentication event. It never fails: every stage
// logs and degrades on error so the caller's login flow is unaffected.
func (e *Engine) Process(ctx context.Context, event AuthEvent) *ProcessResult {
	result := &ProcessResult{Verdicts: []Verdict{}, Alerts: []*DedupResult{}}
	if !e.Enabled() {
		return result
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	log := logging.Ctx(ctx)

	switch event.EventType {
	case EventLoginFailure:
		e.recordLogin(ctx, event)
		e.processFailure(ctx, event, result)
	case EventLoginSuccess:
		e.recordLogin(ctx, event)
		if err := e.alerts.ResetFailedAttempts(ctx, event.UserEmail); err != nil {
			log.Error().Err(err).Str("email", event.UserEmail).Msg("Failed to reset login failures")
		}
		for _, v := range e.monitor.MonitorAuthenticationEvents(ctx, event) {
			e.raise(ctx, event, v, result)
		}
	default:
		log.Debug().Str("event_type", string(event.EventType)).Msg("No heuristics for event type")
		return result
	}

	if event.EventType == EventLoginSuccess && event.UserID != nil && e.anomalies != nil {
		result.Anomalies = e.anomalies.DetectAnomalies(ctx, *event.UserID, &behavior.Event{
			IPAddress: event.IPAddress,
			Action:    string(event.EventType),
			Timestamp: event.Timestamp,
		})
		if e.broadcaster != nil {
			for _, a := range result.Anomalies {
				e.broadcaster.BroadcastJSON(MessageAnomalyDetected, a)
			}
		}
	}

	if len(result.Verdicts) > 0 || len(result.Anomalies) > 0 {
		log.Info().
			Str("event_type", string(event.EventType)).
			Int("verdicts", len(result.Verdicts)).
			Int("anomalies", len(result.Anomalies)).
			Msg("Authentication event flagged")
	}
	return result
}

// processFailure counts the failure, which raises lockout_threshold through
// IncrementFailedAttempts, then checks for a failure burst. Lockout is only
// re-checked by the monitor when the counter could not be updated.
func (e *Engine) processFailure(ctx context.Context, event AuthEvent, result *ProcessResult) {
	attempts, lockout, err := e.alerts.IncrementFailedAttempts(ctx, event.UserEmail, event.IPAddress)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("email", event.UserEmail).Msg("Failed to count login failure")
	}
	result.FailedAttempts = attempts

	if v := e.monitor.DetectMultipleFailedAttempts(ctx, event.UserEmail, event.IPAddress); v.ShouldAlert {
		e.raise(ctx, event, v, result)
	}

	switch {
	case lockout != nil:
		e.record(ctx, event, lockout, result)
	case err != nil:
		if v := e.monitor.DetectLockoutThreshold(ctx, event.UserEmail); v.ShouldAlert {
			v.IPAddress = event.IPAddress
			e.raise(ctx, event, v, result)
		}
	}
}

func (e *Engine) raise(ctx context.Context, event AuthEvent, v Verdict, result *ProcessResult) {
	e.record(ctx, event, e.alerts.Raise(ctx, v), result)
}

func (e *Engine) record(ctx context.Context, event AuthEvent, res *DedupResult, result *ProcessResult) {
	result.Verdicts = append(result.Verdicts, res.Verdict)
	result.Alerts = append(result.Alerts, res)
	if res.Alert != nil && e.audit != nil {
		e.audit.LogSecurityAlert(ctx, res.Alert.ID, string(res.Alert.AlertType), string(res.Alert.Severity),
			string(res.Outcome), res.Alert.UserID, res.Alert.UserEmail, event.IPAddress)
	}
}

// recordLogin appends the login itself to the hash-chained audit log.
func (e *Engine) recordLogin(ctx context.Context, event AuthEvent) {
	if e.audit == nil {
		return
	}
	source := audit.Source{IPAddress: event.IPAddress, UserAgent: event.UserAgent}
	if event.EventType == EventLoginSuccess {
		e.audit.LogAuthSuccess(ctx, audit.Actor{UserID: event.UserID, Email: event.UserEmail}, source)
		return
	}
	reason := event.Reason
	if reason == "" {
		reason = "authentication failed"
	}
	e.audit.LogAuthFailure(ctx, event.UserEmail, source, reason)
}

// SetEnabled enables or disables processing.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// Enabled reports whether the engine processes events.
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}
