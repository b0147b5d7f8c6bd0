// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

// Package logging provides centralized zerolog-based structured logging for UroSentinel.
//
// # Overview
//
// Every package logs through the global logger configured here:
//   - JSON output for production, console output for local development
//   - Request and correlation IDs carried on the context
//   - An slog.Handler adapter for libraries that only accept *slog.Logger
//     (sutureslog, Watermill)
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("component", "audit").Msg("Chain verified")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Heuristic query failed")
//
// # Sensitive Data
//
// Never log token values, passwords or audit metadata payloads. Audit entries
// are identified in logs by id and action only.
package logging
