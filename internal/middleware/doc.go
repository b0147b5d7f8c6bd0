// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

// Package middleware provides the HTTP middleware shared by the API router:
// request ID propagation, access logging, Prometheus instrumentation and
// gzip compression. Every middleware has the chi signature
// func(http.Handler) http.Handler.
package middleware
