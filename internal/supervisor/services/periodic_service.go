// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package services

import (
	"context"
	"time"

	"github.com/tomtom215/urosentinel/internal/logging"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// PeriodicService runs a Task on a fixed interval until its context ends.
// Task errors are logged and the schedule continues; only a panic makes
// suture restart the service.
type PeriodicService struct {
	name       string
	interval   time.Duration
	runOnStart bool
	task       Task
}

// NewPeriodicService creates a PeriodicService. With runOnStart the first run
// happens immediately instead of after one interval. A non-positive interval
// leaves the service idle.
func NewPeriodicService(name string, interval time.Duration, runOnStart bool, task Task) *PeriodicService {
	return &PeriodicService{name: name, interval: interval, runOnStart: runOnStart, task: task}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	if p.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	if p.runOnStart {
		p.run(ctx)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

func (p *PeriodicService) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := p.task(ctx); err != nil && ctx.Err() == nil {
		logging.Warn().Err(err).Str("service", p.name).Dur("duration", time.Since(start)).Msg("Periodic task failed")
		return
	}
	logging.Debug().Str("service", p.name).Dur("duration", time.Since(start)).Msg("Periodic task completed")
}

func (p *PeriodicService) String() string {
	return p.name
}
