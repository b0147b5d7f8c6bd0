// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

/*
Package services adapts UroSentinel components to suture.Service.

Each wrapper translates a component lifecycle into Serve(ctx) error and
implements fmt.Stringer so suture event logs name it:

  - HTTPServerService: ListenAndServe plus graceful Shutdown on cancel
  - HubService: the WebSocket hub's RunWithContext
  - PeriodicService: a ticker-driven Task; failures are logged, not fatal

The periodic jobs built on PeriodicService are the audit chain verifier
(NewChainVerifierService), the baseline recompute scheduler
(NewBaselineSchedulerService) and the pool gauge exporter
(NewPoolStatsService).

Components are consumed through small interfaces (ContextHub, ChainVerifier,
ActiveUserRecalculator).
*/
package services
