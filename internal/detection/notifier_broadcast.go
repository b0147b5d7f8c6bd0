// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package detection

import (
	"context"
)

// MessageSecurityAlert is the WebSocket message type for alerts.
const MessageSecurityAlert = "security_alert"

// Broadcaster pushes JSON messages to connected WebSocket clients.
type Broadcaster interface {
	BroadcastJSON(messageType string, data any)
}

// BroadcastNotifier forwards alerts to live dashboards.
type BroadcastNotifier struct {
	hub Broadcaster
}

// NewBroadcastNotifier creates a BroadcastNotifier over hub.
func NewBroadcastNotifier(hub Broadcaster) *BroadcastNotifier {
	return &BroadcastNotifier{hub: hub}
}

// Name returns the notifier name.
func (n *BroadcastNotifier) Name() string { return "websocket" }

// Enabled reports whether a hub is attached.
func (n *BroadcastNotifier) Enabled() bool { return n.hub != nil }

// Send broadcasts the alert. The hub drops messages for slow clients, so
// delivery never blocks.
func (n *BroadcastNotifier) Send(_ context.Context, alert *Alert) error {
	n.hub.BroadcastJSON(MessageSecurityAlert, alert)
	return nil
}
