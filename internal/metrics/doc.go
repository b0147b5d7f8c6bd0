// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

/*
Package metrics provides Prometheus metrics collection and export for observability.

Collectors are registered with the default registry through promauto and
exposed at /metrics in Prometheus text format:

	curl http://localhost:3857/metrics

# Available Metrics

HTTP Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)

Database Metrics:
  - postgres_query_duration_seconds: Query time by operation and table (histogram)
  - postgres_query_errors_total: Query failures (counter)
  - postgres_pool_connections: Acquired/idle/total pool connections (gauge)

Audit Metrics:
  - audit_appends_total: Audit rows written, by result (counter)
  - audit_dropped_total: Entries dropped because the async buffer was full (counter)
  - audit_chain_verifications_total: Chain verification runs, by result (counter)
  - audit_chain_entries_verified: Rows checked by the latest verification (gauge)
  - audit_immutability_violations_total: Writes rejected by the triggers (counter)

Security Monitoring Metrics:
  - security_heuristic_verdicts_total: Heuristic runs, by heuristic and verdict (counter)
  - security_alerts_total: Dedup outcomes, by alert type and outcome (counter)
  - security_notifications_total: Notifier deliveries, by notifier and result (counter)
  - security_anomalies_total: Anomalies recorded, by type (counter)
  - security_baselines_calculated_total: Baselines upserted, by type (counter)

Circuit Breaker Metrics:
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - circuit_breaker_requests_total: Requests by result (counter)
  - circuit_breaker_transitions_total: State transitions (counter)

WebSocket Metrics:
  - websocket_connections_active: Connected clients (gauge)
  - websocket_messages_sent_total: Broadcast messages (counter)

# Usage

	start := time.Now()
	err := store.Append(ctx, entry)
	metrics.RecordDBQuery("insert", "audit_logs", time.Since(start), err)

# Testing

Tests read collector values with prometheus/testutil:

	before := testutil.ToFloat64(metrics.AuditAppends.WithLabelValues("success"))
*/
package metrics
