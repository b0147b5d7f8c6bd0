// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package detection

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/urosentinel/internal/logging"
	"github.com/tomtom215/urosentinel/internal/metrics"
)

const defaultNotifyTimeout = 30 * time.Second

// Dispatcher fans an alert out to every enabled notifier. Deliveries run in
// the background, detached from the caller's cancellation.
type Dispatcher struct {
	mu        sync.RWMutex
	notifiers []Notifier
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with the given notifiers.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, timeout: defaultNotifyTimeout}
}

// Register adds a notifier.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, n)
	logging.Info().Str("notifier", n.Name()).Msg("Registered alert notifier")
}

// Notifiers returns the registered notifiers.
func (d *Dispatcher) Notifiers() []Notifier {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Notifier, len(d.notifiers))
	copy(out, d.notifiers)
	return out
}

// Dispatch sends alert to every enabled notifier asynchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *Alert) {
	if alert == nil {
		return
	}
	base := context.WithoutCancel(ctx)

	for _, n := range d.Notifiers() {
		if !n.Enabled() {
			continue
		}
		d.wg.Add(1)
		go func(n Notifier) {
			defer d.wg.Done()
			sendCtx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()

			err := n.Send(sendCtx, alert)
			metrics.RecordNotification(n.Name(), err)
			if err != nil {
				logging.Ctx(ctx).Error().Err(err).
					Str("notifier", n.Name()).
					Int64("alert_id", alert.ID).
					Msg("Failed to deliver alert notification")
			}
		}(n)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
