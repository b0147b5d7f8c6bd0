// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package services

import (
	"context"
	"time"

	"github.com/tomtom215/urosentinel/internal/audit"
	"github.com/tomtom215/urosentinel/internal/logging"
	"github.com/tomtom215/urosentinel/internal/metrics"
)

// ChainVerifier walks the audit hash chain.
type ChainVerifier interface {
	VerifyChain(ctx context.Context) (*audit.ChainReport, error)
}

// ChainReporter publishes verification results to live clients.
type ChainReporter interface {
	BroadcastChainReport(report *audit.ChainReport, err error)
}

// NewChainVerifierService verifies the audit chain every interval and
// broadcasts each result. reporter may be nil.
func NewChainVerifierService(verifier ChainVerifier, reporter ChainReporter, interval time.Duration) *PeriodicService {
	return NewPeriodicService("audit-chain-verifier", interval, true, func(ctx context.Context) error {
		report, err := verifier.VerifyChain(ctx)
		if reporter != nil && ctx.Err() == nil {
			reporter.BroadcastChainReport(report, err)
		}
		if err != nil {
			return err
		}

		if !report.Valid {
			ev := logging.Error().Int64("entries_checked", report.EntriesChecked)
			if b := report.FirstBreak; b != nil {
				ev = ev.Int64("entry_id", b.EntryID).Str("hint", b.Hint)
			}
			ev.Msg("Audit hash chain is broken")
			return nil
		}
		logging.Info().
			Int64("entries_checked", report.EntriesChecked).
			Str("duration", report.Duration).
			Msg("Audit hash chain verified")
		return nil
	})
}

// ActiveUserRecalculator recomputes baselines for recently active users.
type ActiveUserRecalculator interface {
	RecalculateActiveUsers(ctx context.Context, since time.Time) (int, error)
}

// NewBaselineSchedulerService recomputes baselines every interval for users
// with a successful login inside lookback.
func NewBaselineSchedulerService(recalc ActiveUserRecalculator, interval, lookback time.Duration) *PeriodicService {
	return newBaselineScheduler(recalc, interval, lookback, time.Now)
}

func newBaselineScheduler(recalc ActiveUserRecalculator, interval, lookback time.Duration, now func() time.Time) *PeriodicService {
	return NewPeriodicService("baseline-scheduler", interval, false, func(ctx context.Context) error {
		since := now().Add(-lookback)
		n, err := recalc.RecalculateActiveUsers(ctx, since)
		if err != nil {
			return err
		}
		logging.Info().Int("users", n).Time("since", since).Msg("Recomputed behavioral baselines")
		return nil
	})
}

// PoolStats samples connection pool counters.
type PoolStats func() (acquired, idle, total int32)

// NewPoolStatsService exports pool gauges every interval.
func NewPoolStatsService(sample PoolStats, interval time.Duration) *PeriodicService {
	return NewPeriodicService("db-pool-stats", interval, true, func(context.Context) error {
		metrics.UpdatePoolStats(sample())
		return nil
	})
}
