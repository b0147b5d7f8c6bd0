// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var authVerifications = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "urosentinel_auth_verifications_total",
		Help: "Bearer token verifications by result",
	},
	[]string{"result"}, // success, missing, expired, invalid
)

func recordVerification(err error) {
	authVerifications.WithLabelValues(verificationResult(err)).Inc()
}
