// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

/*
Package websocket pushes security events to reviewer dashboards in real time.

A single Hub, supervised through RunWithContext, owns the set of connected
clients. Each Client runs a read pump (ping handling, pong deadlines) and a
write pump (queued frames, keepalive pings).

Message types:

  - security_alert: an alert was inserted or reactivated
  - anomaly_detected: a behavioral anomaly was recorded
  - chain_verification: result of the scheduled audit chain check
  - ping / pong: client keepalive

Every frame is a Message envelope:

	{"type": "security_alert", "data": {...}, "timestamp": "2026-04-02T08:45:00Z"}

Broadcasts never block callers. When the hub queue is full a message is
dropped with a warning, and a client whose buffer is full is disconnected.
*/
package websocket
