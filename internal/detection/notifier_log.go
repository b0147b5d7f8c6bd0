// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package detection

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/urosentinel/internal/logging"
)

// LogNotifier writes alerts to the structured log. It is always enabled.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier on the "alerts" component logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logging.WithComponent("alerts")}
}

// Name returns the notifier name.
func (n *LogNotifier) Name() string { return "log" }

// Enabled always returns true.
func (n *LogNotifier) Enabled() bool { return true }

// Send logs the alert at a level matching its severity.
func (n *LogNotifier) Send(_ context.Context, alert *Alert) error {
	event := n.logger.Warn()
	if alert.Severity == SeverityCritical || alert.Severity == SeverityHigh {
		event = n.logger.Error()
	}
	event.
		Int64("alert_id", alert.ID).
		Str("alert_type", string(alert.AlertType)).
		Str("severity", string(alert.Severity)).
		Str("status", string(alert.Status)).
		Str("user_email", alert.UserEmail).
		Str("ip_address", alert.IPAddress).
		Int("occurrences", alert.OccurrenceCount).
		Msg(alert.Message)
	return nil
}
