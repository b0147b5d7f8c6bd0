// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/urosentinel/internal/audit"
	"github.com/tomtom215/urosentinel/internal/behavior"
	"github.com/tomtom215/urosentinel/internal/detection"
)

type fakeAuditStore struct {
	entries     []audit.Entry
	lastFilter  audit.Filter
	report      *audit.ChainReport
	verifyErr   error
	queryErr    error
	immutable   *audit.ImmutabilityStatus
	verifyCalls int
}

func (f *fakeAuditStore) Query(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	f.lastFilter = filter
	return f.entries, f.queryErr
}

func (f *fakeAuditStore) Count(context.Context, audit.Filter) (int64, error) {
	return int64(len(f.entries)), nil
}

func (f *fakeAuditStore) Get(_ context.Context, id int64) (*audit.Entry, error) {
	for i := range f.entries {
		if f.entries[i].ID == id {
			return &f.entries[i], nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", audit.ErrNotFound, id)
}

func (f *fakeAuditStore) VerifyChain(context.Context) (*audit.ChainReport, error) {
	f.verifyCalls++
	return f.report, f.verifyErr
}

func (f *fakeAuditStore) ImmutabilityStatus(context.Context) (*audit.ImmutabilityStatus, error) {
	return f.immutable, nil
}

type fakeChainBroadcaster struct {
	reports []*audit.ChainReport
	errs    []error
}

func (f *fakeChainBroadcaster) BroadcastChainReport(report *audit.ChainReport, err error) {
	f.reports = append(f.reports, report)
	f.errs = append(f.errs, err)
}

type reviewCall struct {
	actor        audit.Actor
	action       string
	resourceType string
	resourceID   int64
	newStatus    string
}

type fakeRecorder struct {
	mu       sync.Mutex
	access   []string
	reviews  []reviewCall
	failures []string
	denied   []string
}

func (f *fakeRecorder) LogDataAccess(_ context.Context, _ audit.Actor, _ audit.Source, resourceType, resourceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = append(f.access, resourceType+":"+resourceID)
}

func (f *fakeRecorder) LogReview(_ context.Context, actor audit.Actor, _ audit.Source, action, resourceType string, resourceID int64, newStatus string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, reviewCall{actor, action, resourceType, resourceID, newStatus})
}

func (f *fakeRecorder) LogAuthFailure(_ context.Context, _ string, _ audit.Source, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, reason)
}

func (f *fakeRecorder) LogAccessDenied(_ context.Context, actor audit.Actor, source audit.Source, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied = append(f.denied, actor.Email+" "+source.RequestMethod+" "+source.RequestPath)
}

type fakeCalculator struct {
	calls []string
	err   error
}

func (f *fakeCalculator) CalculateBaseline(_ context.Context, userID int64, t behavior.BaselineType) (*behavior.Baseline, error) {
	f.calls = append(f.calls, string(t))
	if f.err != nil {
		return nil, f.err
	}
	return &behavior.Baseline{UserID: userID, BaselineType: t}, nil
}

func (f *fakeCalculator) CalculateAllBaselines(_ context.Context, userID int64) ([]behavior.Baseline, error) {
	f.calls = append(f.calls, "all")
	if f.err != nil {
		return nil, f.err
	}
	out := make([]behavior.Baseline, 0, len(behavior.BaselineTypes))
	for _, t := range behavior.BaselineTypes {
		out = append(out, behavior.Baseline{UserID: userID, BaselineType: t})
	}
	return out, nil
}

type fakeAnomalyStore struct {
	anomalies  []behavior.Anomaly
	lastFilter behavior.AnomalyFilter
	updated    map[int64]int64
	stats      *behavior.Stats
}

func (f *fakeAnomalyStore) GetBaselines(_ context.Context, userID int64) ([]behavior.Baseline, error) {
	return []behavior.Baseline{{UserID: userID, BaselineType: behavior.BaselineLocation}}, nil
}

func (f *fakeAnomalyStore) ListAnomalies(_ context.Context, filter behavior.AnomalyFilter) ([]behavior.Anomaly, error) {
	f.lastFilter = filter
	return f.anomalies, nil
}

func (f *fakeAnomalyStore) CountAnomalies(context.Context, behavior.AnomalyFilter) (int64, error) {
	return int64(len(f.anomalies)), nil
}

func (f *fakeAnomalyStore) UpdateAnomalyStatus(_ context.Context, id int64, status behavior.AnomalyStatus, reviewerID int64) (*behavior.Anomaly, error) {
	if id == 404 {
		return nil, fmt.Errorf("%w: id %d", behavior.ErrNotFound, id)
	}
	if f.updated == nil {
		f.updated = map[int64]int64{}
	}
	f.updated[id] = reviewerID
	return &behavior.Anomaly{ID: id, Status: status, ReviewedBy: &reviewerID}, nil
}

func (f *fakeAnomalyStore) Stats(context.Context) (*behavior.Stats, error) {
	return f.stats, nil
}

type fakeAlertStore struct {
	alerts     []detection.Alert
	lastFilter detection.AlertFilter
	movedBy    string
}

func (f *fakeAlertStore) List(_ context.Context, filter detection.AlertFilter) ([]detection.Alert, error) {
	f.lastFilter = filter
	return f.alerts, nil
}

func (f *fakeAlertStore) Count(context.Context, detection.AlertFilter) (int64, error) {
	return int64(len(f.alerts)), nil
}

func (f *fakeAlertStore) move(id int64, by string, to detection.AlertStatus) (*detection.Alert, error) {
	f.movedBy = by
	for i := range f.alerts {
		if f.alerts[i].ID != id {
			continue
		}
		if f.alerts[i].Status == detection.StatusResolved {
			return nil, fmt.Errorf("%w: alert %d is resolved, cannot mark %s", detection.ErrValidation, id, to)
		}
		f.alerts[i].Status = to
		return &f.alerts[i], nil
	}
	return nil, fmt.Errorf("%w: id %d", detection.ErrNotFound, id)
}

func (f *fakeAlertStore) Acknowledge(_ context.Context, id int64, by string) (*detection.Alert, error) {
	return f.move(id, by, detection.StatusAcknowledged)
}

func (f *fakeAlertStore) Resolve(_ context.Context, id int64, by string) (*detection.Alert, error) {
	return f.move(id, by, detection.StatusResolved)
}

type fakeProcessor struct {
	events []detection.AuthEvent
}

func (f *fakeProcessor) Process(_ context.Context, event detection.AuthEvent) *detection.ProcessResult {
	f.events = append(f.events, event)
	return &detection.ProcessResult{Verdicts: []detection.Verdict{}, Alerts: []*detection.DedupResult{}, FailedAttempts: 4}
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }
