// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package detection

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// DefaultAlertTopic is the event bus topic for alerts.
const DefaultAlertTopic = "security.alerts"

// EventPublisher publishes a payload to a topic. eventbus.Publisher implements it.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte, metadata map[string]string) error
}

// PublisherNotifier publishes alerts to the event bus.
type PublisherNotifier struct {
	pub   EventPublisher
	topic string
}

// NewPublisherNotifier creates a PublisherNotifier. An empty topic uses DefaultAlertTopic.
func NewPublisherNotifier(pub EventPublisher, topic string) *PublisherNotifier {
	if topic == "" {
		topic = DefaultAlertTopic
	}
	return &PublisherNotifier{pub: pub, topic: topic}
}

// Name returns the notifier name.
func (n *PublisherNotifier) Name() string { return "eventbus" }

// Enabled reports whether a publisher is attached.
func (n *PublisherNotifier) Enabled() bool { return n.pub != nil }

// Send publishes the alert as JSON with type and severity metadata.
func (n *PublisherNotifier) Send(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	return n.pub.Publish(ctx, n.topic, payload, map[string]string{
		"alert_id":   strconv.FormatInt(alert.ID, 10),
		"alert_type": string(alert.AlertType),
		"severity":   string(alert.Severity),
		"status":     string(alert.Status),
	})
}
