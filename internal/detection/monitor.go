// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/urosentinel/internal/database"
	"github.com/tomtom215/urosentinel/internal/logging"
	"github.com/tomtom215/urosentinel/internal/metrics"
)

// MonitorConfig holds heuristic thresholds.
type MonitorConfig struct {
	// FailedAttemptThreshold must be strictly exceeded within
	// FailedAttemptWindow to raise multiple_failed_attempts.
	FailedAttemptThreshold int
	FailedAttemptWindow    time.Duration

	// LockoutThreshold is reached when failed_login_attempts >= it.
	LockoutThreshold int
}

// DefaultMonitorConfig returns the production thresholds.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		FailedAttemptThreshold: 3,
		FailedAttemptWindow:    15 * time.Minute,
		LockoutThreshold:       10,
	}
}

// Monitor runs the authentication heuristics.
type Monitor struct {
	q   database.Querier
	cfg MonitorConfig
	now func() time.Time
}

// NewMonitor creates a Monitor. Non-positive config values fall back to defaults.
func NewMonitor(q database.Querier, cfg MonitorConfig) *Monitor {
	def := DefaultMonitorConfig()
	if cfg.FailedAttemptThreshold <= 0 {
		cfg.FailedAttemptThreshold = def.FailedAttemptThreshold
	}
	if cfg.FailedAttemptWindow <= 0 {
		cfg.FailedAttemptWindow = def.FailedAttemptWindow
	}
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = def.LockoutThreshold
	}
	return &Monitor{q: q, cfg: cfg, now: time.Now}
}

// Config returns the effective thresholds.
func (m *Monitor) Config() MonitorConfig {
	return m.cfg
}

// DetectMultipleFailedAttempts alerts when failed logins for (email, ip)
// within the window strictly exceed the threshold.
func (m *Monitor) DetectMultipleFailedAttempts(ctx context.Context, email, ip string) Verdict {
	if email == "" || ip == "" {
		return Verdict{}
	}

	var count int64
	err := m.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_history
		WHERE email = $1 AND ip_address = $2 AND NOT success AND created_at >= $3`,
		email, ip, m.now().Add(-m.cfg.FailedAttemptWindow)).Scan(&count)
	if err != nil {
		return m.degrade(ctx, AlertMultipleFailedAttempts, err)
	}

	alert := count > int64(m.cfg.FailedAttemptThreshold)
	metrics.RecordHeuristic(string(AlertMultipleFailedAttempts), alert)
	if !alert {
		return Verdict{}
	}
	return Verdict{
		ShouldAlert: true,
		AlertType:   AlertMultipleFailedAttempts,
		Severity:    SeverityHigh,
		UserEmail:   email,
		IPAddress:   ip,
		Details: map[string]any{
			"failedAttempts": count,
			"threshold":      m.cfg.FailedAttemptThreshold,
			"windowMinutes":  int(m.cfg.FailedAttemptWindow / time.Minute),
		},
	}
}

// DetectUnusualLocation alerts when userID has never logged in successfully
// from ip. A user with no history at all always alerts.
func (m *Monitor) DetectUnusualLocation(ctx context.Context, userID *int64, ip string) Verdict {
	if userID == nil || *userID <= 0 || ip == "" {
		return Verdict{}
	}

	var prior int64
	err := m.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_history
		WHERE user_id = $1 AND ip_address = $2 AND success`,
		*userID, ip).Scan(&prior)
	if err != nil {
		return m.degrade(ctx, AlertUnusualLocation, err)
	}

	alert := prior == 0
	metrics.RecordHeuristic(string(AlertUnusualLocation), alert)
	if !alert {
		return Verdict{}
	}
	return Verdict{
		ShouldAlert: true,
		AlertType:   AlertUnusualLocation,
		Severity:    SeverityMedium,
		UserID:      userID,
		IPAddress:   ip,
		Details:     map[string]any{"ipAddress": ip, "priorLogins": prior},
	}
}

// DetectSimultaneousLogins alerts when userID holds an unexpired session
// from an IP other than ip.
func (m *Monitor) DetectSimultaneousLogins(ctx context.Context, userID *int64, ip string) Verdict {
	if userID == nil || *userID <= 0 || ip == "" {
		return Verdict{}
	}

	var sessions int64
	var otherIPs []string
	err := m.q.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(array_agg(DISTINCT ip_address ORDER BY ip_address)
		                FILTER (WHERE ip_address IS NOT NULL AND ip_address <> $2), '{}')
		FROM active_sessions
		WHERE user_id = $1 AND expires_at > $3`,
		*userID, ip, m.now()).Scan(&sessions, &otherIPs)
	if err != nil {
		return m.degrade(ctx, AlertSimultaneousLogins, err)
	}

	alert := len(otherIPs) > 0
	metrics.RecordHeuristic(string(AlertSimultaneousLogins), alert)
	if !alert {
		return Verdict{}
	}
	return Verdict{
		ShouldAlert: true,
		AlertType:   AlertSimultaneousLogins,
		Severity:    SeverityHigh,
		UserID:      userID,
		IPAddress:   ip,
		Details:     map[string]any{"otherIps": otherIPs, "sessionCount": sessions},
	}
}

// DetectLockoutThreshold alerts when the user's persisted failure counter has
// reached the lockout threshold. A NULL counter or unknown email never alerts.
func (m *Monitor) DetectLockoutThreshold(ctx context.Context, email string) Verdict {
	if email == "" {
		return Verdict{}
	}

	var userID int64
	var attempts *int64
	err := m.q.QueryRow(ctx,
		`SELECT id, failed_login_attempts FROM users WHERE email = $1`, email).Scan(&userID, &attempts)
	if database.IsNoRows(err) {
		metrics.RecordHeuristic(string(AlertLockoutThreshold), false)
		return Verdict{}
	}
	if err != nil {
		return m.degrade(ctx, AlertLockoutThreshold, err)
	}

	alert := attempts != nil && *attempts >= int64(m.cfg.LockoutThreshold)
	metrics.RecordHeuristic(string(AlertLockoutThreshold), alert)
	if !alert {
		return Verdict{}
	}
	return Verdict{
		ShouldAlert: true,
		AlertType:   AlertLockoutThreshold,
		Severity:    SeverityCritical,
		UserID:      &userID,
		UserEmail:   email,
		Details:     map[string]any{"failedAttempts": *attempts, "threshold": m.cfg.LockoutThreshold},
	}
}

// MonitorAuthenticationEvents runs the heuristics relevant to event.Type and
// returns the positive verdicts. Unknown event types run nothing.
func (m *Monitor) MonitorAuthenticationEvents(ctx context.Context, event AuthEvent) (verdicts []Verdict) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Str("panic", fmt.Sprint(r)).Msg("Authentication monitoring panicked")
			verdicts = []Verdict{}
		}
	}()

	var candidates []Verdict
	switch event.EventType {
	case EventLoginFailure:
		candidates = []Verdict{
			m.DetectMultipleFailedAttempts(ctx, event.UserEmail, event.IPAddress),
			m.DetectLockoutThreshold(ctx, event.UserEmail),
		}
	case EventLoginSuccess:
		candidates = []Verdict{
			m.DetectUnusualLocation(ctx, event.UserID, event.IPAddress),
			m.DetectSimultaneousLogins(ctx, event.UserID, event.IPAddress),
		}
	}

	verdicts = []Verdict{}
	for _, v := range candidates {
		if v.ShouldAlert {
			verdicts = append(verdicts, v)
		}
	}
	return verdicts
}

func (m *Monitor) degrade(ctx context.Context, heuristic AlertType, err error) Verdict {
	logging.Ctx(ctx).Warn().Err(err).Str("heuristic", string(heuristic)).Msg("Heuristic query failed, treating as no alert")
	metrics.HeuristicVerdicts.WithLabelValues(string(heuristic), "error").Inc()
	return Verdict{}
}
