// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

/*
Package behavior maintains per-user behavioral baselines and flags access
events that fall outside them.

# Baselines

Three baseline types are computed from history within a configurable window:

  - location: login IP addresses by frequency, from successful logins
  - time: login hours (UTC, 0-23) by frequency plus the average hour
  - access_pattern: audit log actions by frequency

Each calculation is upserted into behavioral_baselines, replacing the stored
baseline_data for that (user, type) pair.

# Anomalies

DetectAnomalies compares one event against the stored baselines:

  - unusual_location (medium): the IP is not among the common locations
  - unusual_time (low): the hour is not a common hour and is at least
    HourDeviation hours (on a 24h clock) away from the average hour
  - unusual_access (low): the action is not among the common actions

A baseline with fewer than MinHistory observations is never used. Detection is
best-effort: database errors are logged and the result is nil, so callers on
the authentication path are never failed by it.

Reviewers move anomalies from new to reviewed or dismissed.
*/
package behavior
