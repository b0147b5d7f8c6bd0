// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/urosentinel/internal/audit"
	"github.com/tomtom215/urosentinel/internal/logging"
)

//nolint:gochecknoinits // quiet logs for the whole package
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*HubService)(nil)
	_ suture.Service = (*PeriodicService)(nil)
)

// serveFor runs svc until it returns or the timeout elapses.
func serveFor(t *testing.T, svc suture.Service, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-time.After(d + 2*time.Second):
		t.Fatalf("%s did not stop", svc)
		return nil
	}
}

func TestPeriodicService(t *testing.T) {
	t.Run("runs on start and on each tick", func(t *testing.T) {
		var runs atomic.Int32
		svc := NewPeriodicService("counter", 20*time.Millisecond, true, func(context.Context) error {
			runs.Add(1)
			return nil
		})

		err := serveFor(t, svc, 110*time.Millisecond)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v", err)
		}
		if n := runs.Load(); n < 3 {
			t.Errorf("runs = %d, want at least 3", n)
		}
	})

	t.Run("waits one interval without runOnStart", func(t *testing.T) {
		var runs atomic.Int32
		svc := NewPeriodicService("lazy", time.Hour, false, func(context.Context) error {
			runs.Add(1)
			return nil
		})
		_ = serveFor(t, svc, 30*time.Millisecond)
		if runs.Load() != 0 {
			t.Errorf("runs = %d, want 0", runs.Load())
		}
	})

	t.Run("task errors do not stop the schedule", func(t *testing.T) {
		var runs atomic.Int32
		svc := NewPeriodicService("flaky", 10*time.Millisecond, true, func(context.Context) error {
			runs.Add(1)
			return errors.New("database unavailable")
		})
		err := serveFor(t, svc, 60*time.Millisecond)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v", err)
		}
		if runs.Load() < 2 {
			t.Errorf("runs = %d", runs.Load())
		}
	})

	t.Run("idle when disabled", func(t *testing.T) {
		svc := NewPeriodicService("off", 0, true, func(context.Context) error {
			t.Error("disabled task ran")
			return nil
		})
		_ = serveFor(t, svc, 20*time.Millisecond)
	})

	t.Run("string", func(t *testing.T) {
		if s := NewPeriodicService("baseline-scheduler", time.Second, false, nil).String(); s != "baseline-scheduler" {
			t.Errorf("String = %q", s)
		}
	})
}

type fakeVerifier struct {
	report *audit.ChainReport
	err    error
	calls  atomic.Int32
}

func (f *fakeVerifier) VerifyChain(context.Context) (*audit.ChainReport, error) {
	f.calls.Add(1)
	return f.report, f.err
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []*audit.ChainReport
	errs    []error
}

func (f *fakeReporter) BroadcastChainReport(report *audit.ChainReport, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	f.errs = append(f.errs, err)
}

func TestChainVerifierService(t *testing.T) {
	tests := []struct {
		name   string
		report *audit.ChainReport
		err    error
	}{
		{"valid chain", &audit.ChainReport{Valid: true, EntriesChecked: 12}, nil},
		{"broken chain", &audit.ChainReport{EntriesChecked: 4, FirstBreak: &audit.ChainBreak{EntryID: 3, Hint: audit.HintUserIDNulled}}, nil},
		{"query failure", nil, errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &fakeVerifier{report: tt.report, err: tt.err}
			reporter := &fakeReporter{}
			svc := NewChainVerifierService(verifier, reporter, time.Hour)

			_ = serveFor(t, svc, 30*time.Millisecond)

			if verifier.calls.Load() != 1 {
				t.Fatalf("calls = %d, want 1", verifier.calls.Load())
			}
			reporter.mu.Lock()
			defer reporter.mu.Unlock()
			if len(reporter.reports) != 1 || reporter.reports[0] != tt.report || !errors.Is(reporter.errs[0], tt.err) {
				t.Errorf("broadcast = %v / %v", reporter.reports, reporter.errs)
			}
		})
	}

	t.Run("nil reporter", func(t *testing.T) {
		verifier := &fakeVerifier{report: &audit.ChainReport{Valid: true}}
		_ = serveFor(t, NewChainVerifierService(verifier, nil, time.Hour), 20*time.Millisecond)
		if verifier.calls.Load() != 1 {
			t.Errorf("calls = %d", verifier.calls.Load())
		}
	})
}

type fakeRecalculator struct {
	mu    sync.Mutex
	since []time.Time
}

func (f *fakeRecalculator) RecalculateActiveUsers(_ context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, since)
	return 2, nil
}

func TestBaselineScheduler(t *testing.T) {
	now := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	recalc := &fakeRecalculator{}
	svc := newBaselineScheduler(recalc, 15*time.Millisecond, 24*time.Hour, func() time.Time { return now })

	_ = serveFor(t, svc, 40*time.Millisecond)

	recalc.mu.Lock()
	defer recalc.mu.Unlock()
	if len(recalc.since) == 0 {
		t.Fatal("scheduler never ran")
	}
	if want := now.Add(-24 * time.Hour); !recalc.since[0].Equal(want) {
		t.Errorf("since = %v, want %v", recalc.since[0], want)
	}
}

func TestPoolStatsService(t *testing.T) {
	var samples atomic.Int32
	svc := NewPoolStatsService(func() (int32, int32, int32) {
		samples.Add(1)
		return 1, 2, 3
	}, time.Hour)

	_ = serveFor(t, svc, 20*time.Millisecond)
	if samples.Load() != 1 {
		t.Errorf("samples = %d, want 1", samples.Load())
	}
}

type blockingHub struct {
	runs atomic.Int32
	err  error
}

func (h *blockingHub) RunWithContext(ctx context.Context) error {
	h.runs.Add(1)
	if h.err != nil {
		return h.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHubService(t *testing.T) {
	hub := &blockingHub{}
	svc := NewHubService(hub)
	if svc.String() != "websocket-hub" {
		t.Errorf("String = %q", svc.String())
	}
	if err := serveFor(t, svc, 20*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}

	failing := &blockingHub{err: errors.New("boom")}
	if err := NewHubService(failing).Serve(context.Background()); err == nil || err.Error() != "boom" {
		t.Errorf("err = %v", err)
	}
}

// fakeHTTPServer blocks in ListenAndServe until Shutdown.
type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	stop        chan struct{}
	shutdowns   atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	f.started <- struct{}{}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	close(f.stop)
	return f.shutdownErr
}

func TestHTTPServerService(t *testing.T) {
	t.Run("default timeout", func(t *testing.T) {
		for _, d := range []time.Duration{0, -time.Second} {
			if svc := NewHTTPServerService(newFakeHTTPServer(), d); svc.shutdownTimeout != 10*time.Second {
				t.Errorf("timeout(%v) = %v", d, svc.shutdownTimeout)
			}
		}
	})

	t.Run("graceful shutdown on cancel", func(t *testing.T) {
		server := newFakeHTTPServer()
		svc := NewHTTPServerService(server, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		<-server.started
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("err = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if server.shutdowns.Load() != 1 {
			t.Errorf("shutdowns = %d", server.shutdowns.Load())
		}
	})

	t.Run("bind failure", func(t *testing.T) {
		bindErr := errors.New("bind: address already in use")
		server := newFakeHTTPServer()
		server.listenErr = bindErr

		if err := NewHTTPServerService(server, time.Second).Serve(context.Background()); !errors.Is(err, bindErr) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("shutdown failure", func(t *testing.T) {
		shutdownErr := errors.New("shutdown timeout")
		server := newFakeHTTPServer()
		server.shutdownErr = shutdownErr
		svc := NewHTTPServerService(server, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		<-server.started
		cancel()

		if err := <-errCh; !errors.Is(err, shutdownErr) {
			t.Errorf("err = %v", err)
		}
	})
}
