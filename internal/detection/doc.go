// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

/*
Package detection evaluates authentication events against security heuristics
and turns positive verdicts into deduplicated security alerts.

# Heuristics

Monitor runs four query-and-threshold checks:

  - multiple_failed_attempts (high): more than FailedAttemptThreshold failed
    logins for (email, ip) within FailedAttemptWindow
  - unusual_location (medium): no prior successful login from the IP
  - simultaneous_logins (high): an unexpired session exists from another IP
  - lockout_threshold (critical): users.failed_login_attempts has reached
    LockoutThreshold

A heuristic given an empty identifier returns a negative verdict without
touching the database. Database errors also produce a negative verdict:
monitoring never fails the authentication path it observes.

# Deduplication

AlertService.Raise keeps at most one alert per (identity, alert type). Inside
one transaction it takes pg_advisory_xact_lock(hashtext(identity)), looks up
an existing alert by user id or email with no status filter, then inserts,
updates, or reactivates a resolved alert. Notifiers run after commit, only for
inserts and reactivations. Failures roll back and are reported in the result,
never returned as errors.

# Delivery

Notifier implementations deliver alerts to the log, a webhook (rate limited
and behind a circuit breaker), WebSocket clients and the event bus.
*/
package detection
