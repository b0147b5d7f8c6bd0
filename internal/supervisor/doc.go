// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

/*
Package supervisor runs UroSentinel's long-lived components under a suture v4
supervision tree.

	urosentinel
	├── data-layer
	│   ├── audit-chain-verifier  (AUDIT_VERIFY_INTERVAL > 0)
	│   ├── baseline-scheduler    (ANALYTICS_RECOMPUTE_INTERVAL > 0)
	│   └── db-pool-stats
	├── messaging-layer
	│   └── websocket-hub
	└── api-layer
	    └── http-server

A service that returns an error or panics is restarted by its layer. When
failures within a layer exceed FailureThreshold (decaying with FailureDecay)
the layer backs off for FailureBackoff before restarting again. Cancelling
the context passed to Serve stops every service, each bounded by
ShutdownTimeout.

Supervisor events (service failures, restarts, backoff) are logged through
sutureslog into the application's zerolog output.

The service wrappers live in the services subpackage.
*/
package supervisor
