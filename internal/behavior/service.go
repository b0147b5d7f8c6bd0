// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package behavior

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/urosentinel/internal/logging"
	"github.com/tomtom215/urosentinel/internal/metrics"
)

// Number of entries kept in each "common" list.
const (
	commonLocationsLimit = 10
	commonHoursLimit     = 5
	commonActionsLimit   = 20
)

// Config tunes baseline calculation and anomaly gating.
type Config struct {
	// MinHistory is the number of observations a baseline needs before it
	// can flag anything.
	MinHistory int

	// HourDeviation is the minimum circular distance, in hours, between an
	// event hour and the average hour for an unusual_time anomaly.
	HourDeviation int

	// HistoryWindow bounds how far back baselines look.
	HistoryWindow time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinHistory:    5,
		HourDeviation: 3,
		HistoryWindow: 90 * 24 * time.Hour,
	}
}

// Service calculates baselines and detects anomalies.
type Service struct {
	store *Store
	cfg   Config
	now   func() time.Time
}

// NewService creates a Service. Non-positive config values fall back to defaults.
func NewService(store *Store, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = def.MinHistory
	}
	if cfg.HourDeviation <= 0 {
		cfg.HourDeviation = def.HourDeviation
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	return &Service{store: store, cfg: cfg, now: time.Now}
}

// Store returns the underlying store for read endpoints.
func (s *Service) Store() *Store {
	return s.store
}

// CalculateBaseline recomputes one baseline for userID and upserts it.
func (s *Service) CalculateBaseline(ctx context.Context, userID int64, baselineType BaselineType) (*Baseline, error) {
	if userID <= 0 || baselineType == "" {
		return nil, fmt.Errorf("%w: userId and baselineType are required", ErrValidation)
	}
	if !baselineType.Valid() {
		return nil, fmt.Errorf("%w: Invalid baselineType", ErrValidation)
	}

	since := s.now().Add(-s.cfg.HistoryWindow)
	var doc any
	switch baselineType {
	case BaselineLocation:
		freqs, err := s.store.frequencies(ctx, loginIPFrequencySQL, userID, since)
		if err != nil {
			return nil, fmt.Errorf("failed to read login locations: %w", err)
		}
		doc = locationBaseline(freqs)
	case BaselineTime:
		freqs, err := s.store.frequencies(ctx, loginHourFrequencySQL, userID, since)
		if err != nil {
			return nil, fmt.Errorf("failed to read login hours: %w", err)
		}
		doc, err = timeBaseline(freqs)
		if err != nil {
			return nil, err
		}
	case BaselineAccessPattern:
		freqs, err := s.store.frequencies(ctx, actionFrequencySQL, userID, since)
		if err != nil {
			return nil, fmt.Errorf("failed to read audit actions: %w", err)
		}
		doc = accessBaseline(freqs)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s baseline: %w", baselineType, err)
	}
	b, err := s.store.UpsertBaseline(ctx, userID, baselineType, data)
	if err != nil {
		return nil, err
	}
	metrics.BaselinesCalculated.WithLabelValues(string(baselineType)).Inc()
	return b, nil
}

// CalculateAllBaselines recomputes every baseline type for userID.
func (s *Service) CalculateAllBaselines(ctx context.Context, userID int64) ([]Baseline, error) {
	out := make([]Baseline, 0, len(BaselineTypes))
	for _, t := range BaselineTypes {
		b, err := s.CalculateBaseline(ctx, userID, t)
		if err != nil {
			return out, err
		}
		out = append(out, *b)
	}
	return out, nil
}

// RecalculateActiveUsers recomputes baselines for every user with a
// successful login since the given time. Per-user failures are logged and
// skipped; the count of users fully recalculated is returned.
func (s *Service) RecalculateActiveUsers(ctx context.Context, since time.Time) (int, error) {
	users, err := s.store.ActiveUsers(ctx, since)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.CalculateAllBaselines(ctx, userID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("Baseline recalculation failed")
			continue
		}
		done++
	}
	logging.Ctx(ctx).Info().Int("users", done).Int("candidates", len(users)).Msg("Baselines recalculated")
	return done, nil
}

// DetectAnomalies compares event with userID's baselines and stores any
// deviation found. It returns nil when nothing is flagged, when input is
// missing, and on any database error.
func (s *Service) DetectAnomalies(ctx context.Context, userID int64, event *Event) []Anomaly {
	if userID <= 0 || event == nil {
		return nil
	}

	baselines, err := s.store.GetBaselines(ctx, userID)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Anomaly detection skipped: baselines unavailable")
		return nil
	}

	var found []Anomaly
	for _, b := range baselines {
		a, err := s.check(userID, &b, event)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).
				Str("baseline_type", string(b.BaselineType)).Msg("Unreadable baseline")
			continue
		}
		if a != nil {
			found = append(found, *a)
		}
	}
	if len(found) == 0 {
		return nil
	}

	stored, err := s.store.InsertAnomalies(ctx, found)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to store anomalies")
		return nil
	}
	for _, a := range stored {
		metrics.AnomaliesDetected.WithLabelValues(string(a.AnomalyType)).Inc()
	}
	return stored
}

func (s *Service) check(userID int64, b *Baseline, event *Event) (*Anomaly, error) {
	switch b.BaselineType {
	case BaselineLocation:
		if event.IPAddress == "" {
			return nil, nil
		}
		var lb LocationBaseline
		if err := json.Unmarshal(b.Data, &lb); err != nil {
			return nil, err
		}
		return s.checkLocation(userID, &lb, event.IPAddress)
	case BaselineTime:
		var tb TimeBaseline
		if err := json.Unmarshal(b.Data, &tb); err != nil {
			return nil, err
		}
		ts := event.Timestamp
		if ts.IsZero() {
			ts = s.now()
		}
		return s.checkTime(userID, &tb, ts.UTC().Hour())
	case BaselineAccessPattern:
		if event.Action == "" {
			return nil, nil
		}
		var ab AccessBaseline
		if err := json.Unmarshal(b.Data, &ab); err != nil {
			return nil, err
		}
		return s.checkAccess(userID, &ab, event.Action)
	}
	return nil, nil
}

func (s *Service) checkLocation(userID int64, lb *LocationBaseline, ip string) (*Anomaly, error) {
	if lb.TotalLogins < int64(s.cfg.MinHistory) {
		return nil, nil
	}
	ips := make([]string, 0, len(lb.CommonLocations))
	for _, l := range lb.CommonLocations {
		if l.IP == ip {
			return nil, nil
		}
		ips = append(ips, l.IP)
	}
	return newAnomaly(userID, AnomalyUnusualLocation, SeverityMedium, map[string]any{
		"ipAddress":       ip,
		"commonLocations": ips,
		"totalLogins":     lb.TotalLogins,
	})
}

func (s *Service) checkTime(userID int64, tb *TimeBaseline, hour int) (*Anomaly, error) {
	if tb.TotalLogins < int64(s.cfg.MinHistory) {
		return nil, nil
	}
	hours := make([]int, 0, len(tb.CommonHours))
	for _, h := range tb.CommonHours {
		if h.Hour == hour {
			return nil, nil
		}
		hours = append(hours, h.Hour)
	}
	deviation := HourDistance(float64(hour), tb.AverageHour)
	if deviation < float64(s.cfg.HourDeviation) {
		return nil, nil
	}
	return newAnomaly(userID, AnomalyUnusualTime, SeverityLow, map[string]any{
		"hour":        hour,
		"averageHour": tb.AverageHour,
		"deviation":   math.Round(deviation*100) / 100,
		"commonHours": hours,
	})
}

func (s *Service) checkAccess(userID int64, ab *AccessBaseline, action string) (*Anomaly, error) {
	if ab.TotalActions < int64(s.cfg.MinHistory) {
		return nil, nil
	}
	actions := make([]string, 0, len(ab.CommonActions))
	for _, a := range ab.CommonActions {
		if a.Action == action {
			return nil, nil
		}
		actions = append(actions, a.Action)
	}
	return newAnomaly(userID, AnomalyUnusualAccess, SeverityLow, map[string]any{
		"action":        action,
		"commonActions": actions,
		"totalActions":  ab.TotalActions,
	})
}

func newAnomaly(userID int64, t AnomalyType, sev Severity, details map[string]any) (*Anomaly, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return &Anomaly{UserID: userID, AnomalyType: t, Severity: sev, Details: raw, Status: StatusNew}, nil
}

// HourDistance is the distance between two hours on a 24-hour clock, in [0, 12].
func HourDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 24)
	return math.Min(d, 24-d)
}

func locationBaseline(freqs []frequency) *LocationBaseline {
	lb := &LocationBaseline{CommonLocations: []LocationFrequency{}}
	for _, f := range freqs {
		lb.TotalLogins += f.Count
		if len(lb.CommonLocations) < commonLocationsLimit {
			lb.CommonLocations = append(lb.CommonLocations, LocationFrequency{IP: f.Key, Frequency: f.Count})
		}
	}
	return lb
}

func timeBaseline(freqs []frequency) (*TimeBaseline, error) {
	tb := &TimeBaseline{CommonHours: []HourFrequency{}}
	var weighted int64
	for _, f := range freqs {
		hour, err := strconv.Atoi(f.Key)
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("unexpected login hour %q", f.Key)
		}
		tb.TotalLogins += f.Count
		weighted += int64(hour) * f.Count
		tb.CommonHours = append(tb.CommonHours, HourFrequency{Hour: hour, Frequency: f.Count})
	}
	slices.SortStableFunc(tb.CommonHours, func(a, b HourFrequency) int {
		if a.Frequency != b.Frequency {
			if a.Frequency > b.Frequency {
				return -1
			}
			return 1
		}
		return a.Hour - b.Hour
	})
	if len(tb.CommonHours) > commonHoursLimit {
		tb.CommonHours = tb.CommonHours[:commonHoursLimit]
	}
	if tb.TotalLogins > 0 {
		tb.AverageHour = math.Round(float64(weighted)/float64(tb.TotalLogins)*100) / 100
	}
	return tb, nil
}

func accessBaseline(freqs []frequency) *AccessBaseline {
	ab := &AccessBaseline{CommonActions: []ActionFrequency{}}
	for _, f := range freqs {
		ab.TotalActions += f.Count
		if len(ab.CommonActions) < commonActionsLimit {
			ab.CommonActions = append(ab.CommonActions, ActionFrequency{Action: f.Key, Frequency: f.Count})
		}
	}
	return ab
}
