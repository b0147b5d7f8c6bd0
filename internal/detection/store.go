// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/urosentinel/internal/database"
	"github.com/tomtom215/urosentinel/internal/database/query"
	"github.com/tomtom215/urosentinel/internal/metrics"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

const alertColumns = `id, alert_type, severity, user_id, COALESCE(user_email, ''), COALESCE(ip_address, ''),
	message, details, status, occurrence_count, COALESCE(acknowledged_by, ''), acknowledged_at,
	COALESCE(resolved_by, ''), resolved_at, created_at, updated_at`

// AlertStore serves the reviewer workflow over security_alerts.
type AlertStore struct {
	q database.Querier
}

// NewAlertStore creates an AlertStore.
func NewAlertStore(q database.Querier) *AlertStore {
	return &AlertStore{q: q}
}

// List returns alerts matching filter, most recently updated first.
func (s *AlertStore) List(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	wb := buildAlertFilter(filter)
	where, _ := wb.BuildWithPrefix()
	page := wb.Paginate(filter.Limit, filter.Offset, defaultAlertLimit, maxAlertLimit)

	start := time.Now()
	rows, err := s.q.Query(ctx,
		`SELECT `+alertColumns+` FROM security_alerts `+where+` ORDER BY updated_at DESC, id DESC`+page,
		wb.Args()...)
	metrics.RecordDBQuery("select", "security_alerts", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}
	return alerts, nil
}

// Count returns the number of alerts matching filter, ignoring pagination.
func (s *AlertStore) Count(ctx context.Context, filter AlertFilter) (int64, error) {
	where, args := buildAlertFilter(filter).BuildWithPrefix()
	var n int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM security_alerts `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

func buildAlertFilter(f AlertFilter) *query.WhereBuilder {
	wb := query.NewWhereBuilder()
	wb.AddEquals("status", f.Status)
	wb.AddEquals("severity", f.Severity)
	wb.AddEquals("alert_type", f.AlertType)
	wb.AddEquals("user_email", f.UserEmail)
	wb.AddInt64("user_id", f.UserID)
	wb.AddTimeRange("created_at", f.StartDate, f.EndDate)
	return wb
}

// Get returns one alert.
func (s *AlertStore) Get(ctx context.Context, id int64) (*Alert, error) {
	a, err := scanAlert(s.q.QueryRow(ctx, `SELECT `+alertColumns+` FROM security_alerts WHERE id = $1`, id))
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	return a, nil
}

// Acknowledge moves a new alert to acknowledged.
func (s *AlertStore) Acknowledge(ctx context.Context, id int64, by string) (*Alert, error) {
	return s.transition(ctx, id, StatusAcknowledged, `
		UPDATE security_alerts
		SET status = 'acknowledged', acknowledged_by = $2, acknowledged_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'new'
		RETURNING `+alertColumns, id, by)
}

// Resolve closes a new or acknowledged alert. A later detection for the same
// identity reactivates it.
func (s *AlertStore) Resolve(ctx context.Context, id int64, by string) (*Alert, error) {
	return s.transition(ctx, id, StatusResolved, `
		UPDATE security_alerts
		SET status = 'resolved', resolved_by = $2, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('new', 'acknowledged')
		RETURNING `+alertColumns, id, by)
}

func (s *AlertStore) transition(ctx context.Context, id int64, to AlertStatus, sql string, args ...any) (*Alert, error) {
	a, err := scanAlert(s.q.QueryRow(ctx, sql, args...))
	if err == nil {
		return a, nil
	}
	if !database.IsNoRows(err) {
		return nil, fmt.Errorf("failed to mark alert %d %s: %w", id, to, err)
	}

	// Nothing updated: either the alert is missing or the move is illegal.
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: alert %d is %s, cannot mark %s", ErrValidation, id, current.Status, to)
}

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	var alertType, severity, status string
	var details []byte
	err := row.Scan(&a.ID, &alertType, &severity, &a.UserID, &a.UserEmail, &a.IPAddress,
		&a.Message, &details, &status, &a.OccurrenceCount, &a.AcknowledgedBy, &a.AcknowledgedAt,
		&a.ResolvedBy, &a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.AlertType = AlertType(alertType)
	a.Severity = Severity(severity)
	a.Status = AlertStatus(status)
	if len(details) > 0 {
		a.Details = details
	}
	return &a, nil
}
