// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

// Package eventbus publishes security events (alerts, anomalies, chain
// verification results) through Watermill.
//
// With NATS enabled, messages go to a JetStream subject via watermill-nats;
// otherwise an in-process gochannel pub/sub is used so subscribers inside
// the service (and tests) still receive them. Publishing is wrapped in a
// gobreaker circuit breaker; NewCircuitBreaker is shared with other outbound
// integrations such as the webhook notifier.
package eventbus
