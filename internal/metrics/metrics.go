// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postgres_query_duration_seconds",
			Help:    "Duration of PostgreSQL queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postgres_query_errors_total",
			Help: "Total number of PostgreSQL query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "postgres_pool_connections",
			Help: "Connection pool usage",
		},
		[]string{"state"}, // "acquired", "idle", "total"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Audit Log Metrics
	AuditAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_appends_total",
			Help: "Total number of audit log appends",
		},
		[]string{"result"}, // "success", "failure"
	)

	AuditDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_dropped_total",
			Help: "Audit entries dropped because the write buffer was full",
		},
	)

	AuditChainVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_chain_verifications_total",
			Help: "Total number of hash chain verifications",
		},
		[]string{"result"}, // "valid", "broken", "error"
	)

	AuditChainEntriesVerified = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_chain_entries_verified",
			Help: "Number of audit rows checked by the most recent verification",
		},
	)

	AuditImmutabilityViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_immutability_violations_total",
			Help: "Writes to audit_logs rejected by the immutability triggers",
		},
		[]string{"operation"},
	)

	// Security Monitoring Metrics
	HeuristicVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_heuristic_verdicts_total",
			Help: "Heuristic evaluations by outcome",
		},
		[]string{"heuristic", "verdict"}, // verdict: "alert", "clear"
	)

	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_alerts_total",
			Help: "Alert deduplication outcomes",
		},
		[]string{"alert_type", "outcome"}, // outcome: "inserted", "updated", "reactivated", "failed"
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_notifications_total",
			Help: "Alert notification deliveries",
		},
		[]string{"notifier", "result"},
	)

	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_anomalies_total",
			Help: "Behavioral anomalies recorded",
		},
		[]string{"anomaly_type"},
	)

	BaselinesCalculated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_baselines_calculated_total",
			Help: "Behavioral baselines upserted",
		},
		[]string{"baseline_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of connected WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Messages broadcast to WebSocket clients",
		},
		[]string{"message_type"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAuditAppend counts one audit write.
func RecordAuditAppend(err error) {
	if err != nil {
		AuditAppends.WithLabelValues("failure").Inc()
		return
	}
	AuditAppends.WithLabelValues("success").Inc()
}

// RecordChainVerification records the outcome of a hash chain walk.
func RecordChainVerification(valid bool, entries int64, err error) {
	switch {
	case err != nil:
		AuditChainVerifications.WithLabelValues("error").Inc()
		return
	case valid:
		AuditChainVerifications.WithLabelValues("valid").Inc()
	default:
		AuditChainVerifications.WithLabelValues("broken").Inc()
	}
	AuditChainEntriesVerified.Set(float64(entries))
}

// RecordHeuristic records one heuristic evaluation.
func RecordHeuristic(heuristic string, alert bool) {
	verdict := "clear"
	if alert {
		verdict = "alert"
	}
	HeuristicVerdicts.WithLabelValues(heuristic, verdict).Inc()
}

// RecordAlert records a deduplication outcome.
func RecordAlert(alertType, outcome string) {
	AlertsRaised.WithLabelValues(alertType, outcome).Inc()
}

// RecordNotification records a notifier delivery attempt.
func RecordNotification(notifier string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	NotificationsSent.WithLabelValues(notifier, result).Inc()
}

// UpdatePoolStats publishes connection pool gauges.
func UpdatePoolStats(acquired, idle, total int32) {
	DBPoolConnections.WithLabelValues("acquired").Set(float64(acquired))
	DBPoolConnections.WithLabelValues("idle").Set(float64(idle))
	DBPoolConnections.WithLabelValues("total").Set(float64(total))
}
