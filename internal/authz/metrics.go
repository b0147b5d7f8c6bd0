// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urosentinel_authz_decisions_total",
			Help: "Authorization decisions by action and outcome",
		},
		[]string{"action", "decision"},
	)

	authzCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urosentinel_authz_cache_lookups_total",
			Help: "Authorization decision cache lookups",
		},
		[]string{"result"},
	)
)

func recordDecision(action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authzDecisions.WithLabelValues(action, decision).Inc()
}

func recordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	authzCacheLookups.WithLabelValues(result).Inc()
}
