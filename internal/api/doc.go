// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

/*
Package api exposes the audit, behavioral analytics and security monitoring
services over HTTP.

# Routes

All /api/v1 routes except health require a bearer token and are authorized
by role (see package authz).

	GET   /api/v1/health/live                         process is up
	GET   /api/v1/health/ready                        database reachable
	GET   /api/v1/audit/logs                          filtered, paginated audit trail
	GET   /api/v1/audit/logs/{id}                     one audit entry
	GET   /api/v1/audit/verify                        walk the hash chain
	GET   /api/v1/audit/immutability                  trigger installation status
	GET   /api/v1/analytics/baselines/{userId}        stored baselines
	POST  /api/v1/analytics/baselines/{userId}/calculate
	GET   /api/v1/analytics/anomalies                 filtered anomaly list
	PATCH /api/v1/analytics/anomalies/{id}            review decision
	GET   /api/v1/analytics/stats                     anomaly counts
	GET   /api/v1/security/alerts                     filtered alert list
	POST  /api/v1/security/alerts/{id}/acknowledge
	POST  /api/v1/security/alerts/{id}/resolve
	POST  /api/v1/security/events                     ingest an authentication event
	GET   /metrics                                    Prometheus exposition
	GET   /ws                                         live alert and anomaly feed

# Responses

Every JSON response uses the same envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
	{"status": "error", "data": null, "metadata": {...}, "error": {"code": "NOT_FOUND", "message": "..."}}

Service errors map to status codes by sentinel: ErrValidation to 400
VALIDATION_ERROR, ErrNotFound to 404 NOT_FOUND, anything else to 500
INTERNAL_ERROR with a generic message.
*/
package api
