// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package behavior

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
	defaultAnomalyLimit = 50
	maxAnomalyLimit     = 500
)

const baselineColumns = `id, user_id, baseline_type, baseline_data, calculated_at, last_updated`

const anomalyColumns = `id, user_id, anomaly_type, severity, details, detected_at, status, reviewed_by, reviewed_at`

const upsertBaselineSQL = `
	INSERT INTO behavioral_baselines (user_id, baseline_type, baseline_data, calculated_at, last_updated)
	VALUES ($1, $2, $3, NOW(), NOW())
	ON CONFLICT (user_id, baseline_type) DO UPDATE
	SET baseline_data = EXCLUDED.baseline_data,
	    calculated_at = EXCLUDED.calculated_at,
	    last_updated = NOW()
	RETURNING ` + baselineColumns

const insertAnomalySQL = `
	INSERT INTO anomalies (user_id, anomaly_type, severity, details)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + anomalyColumns

// Frequency queries return (key, count) pairs over the history window.
const (
	loginIPFrequencySQL = `
		SELECT ip_address, COUNT(*)
		FROM login_history
		WHERE user_id = $1 AND success AND ip_address IS NOT NULL AND created_at >= $2
		GROUP BY ip_address
		ORDER BY COUNT(*) DESC, ip_address`

	loginHourFrequencySQL = `
		SELECT EXTRACT(HOUR FROM created_at AT TIME ZONE 'UTC')::int::text AS hour, COUNT(*)
		FROM login_history
		WHERE user_id = $1 AND success AND created_at >= $2
		GROUP BY hour
		ORDER BY COUNT(*) DESC, hour`

	actionFrequencySQL = `
		SELECT action, COUNT(*)
		FROM audit_logs
		WHERE user_id = $1 AND timestamp >= $2
		GROUP BY action
		ORDER BY COUNT(*) DESC, action`
)

// frequency is one grouped count.
type frequency struct {
	Key   string
	Count int64
}

// Store persists baselines and anomalies and reads the history they are
// computed from.
type Store struct {
	pool database.Pool
}

// NewStore creates a Store over pool.
func NewStore(pool database.Pool) *Store {
	return &Store{pool: pool}
}

// UpsertBaseline replaces the baseline_data for (userID, baselineType).
func (s *Store) UpsertBaseline(ctx context.Context, userID int64, baselineType BaselineType, data []byte) (*Baseline, error) {
	start := time.Now()
	b, err := scanBaseline(s.pool.QueryRow(ctx, upsertBaselineSQL, userID, string(baselineType), string(data)))
	metrics.RecordDBQuery("upsert", "behavioral_baselines", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s baseline: %w", baselineType, err)
	}
	return b, nil
}

// GetBaselines returns every baseline stored for userID, ordered by type.
func (s *Store) GetBaselines(ctx context.Context, userID int64) ([]Baseline, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+baselineColumns+` FROM behavioral_baselines WHERE user_id = $1 ORDER BY baseline_type`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	baselines := []Baseline{}
	for rows.Next() {
		b, err := scanBaseline(rows)
		if err != nil {
			return nil, err
		}
		baselines = append(baselines, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read baselines: %w", err)
	}
	return baselines, nil
}

// ListAnomalies returns anomalies matching filter, newest first.
func (s *Store) ListAnomalies(ctx context.Context, filter AnomalyFilter) ([]Anomaly, error) {
	wb := buildAnomalyFilter(filter)
	where, _ := wb.BuildWithPrefix()
	page := wb.Paginate(filter.Limit, filter.Offset, defaultAnomalyLimit, maxAnomalyLimit)

	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT `+anomalyColumns+` FROM anomalies `+where+` ORDER BY detected_at DESC, id DESC`+page,
		wb.Args()...)
	metrics.RecordDBQuery("select", "anomalies", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	anomalies := []Anomaly{}
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		anomalies = append(anomalies, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read anomalies: %w", err)
	}
	return anomalies, nil
}

// CountAnomalies returns the number of anomalies matching filter, ignoring pagination.
func (s *Store) CountAnomalies(ctx context.Context, filter AnomalyFilter) (int64, error) {
	where, args := buildAnomalyFilter(filter).BuildWithPrefix()
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM anomalies `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count anomalies: %w", err)
	}
	return n, nil
}

func buildAnomalyFilter(f AnomalyFilter) *query.WhereBuilder {
	wb := query.NewWhereBuilder()
	wb.AddEquals("status", f.Status)
	wb.AddEquals("severity", f.Severity)
	wb.AddInt64("user_id", f.UserID)
	wb.AddTimeRange("detected_at", f.StartDate, f.EndDate)
	return wb
}

// UpdateAnomalyStatus records a review decision. Only reviewed and dismissed
// are accepted.
func (s *Store) UpdateAnomalyStatus(ctx context.Context, id int64, status AnomalyStatus, reviewerID int64) (*Anomaly, error) {
	if status != StatusReviewed && status != StatusDismissed {
		return nil, fmt.Errorf("%w: status must be reviewed or dismissed", ErrValidation)
	}

	a, err := scanAnomaly(s.pool.QueryRow(ctx, `
		UPDATE anomalies
		SET status = $2, reviewed_by = $3, reviewed_at = NOW()
		WHERE id = $1
		RETURNING `+anomalyColumns,
		id, string(status), reviewerID))
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update anomaly %d: %w", id, err)
	}
	return a, nil
}

// Stats counts anomalies by status, severity and type, plus the last 24 hours.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT 'status', status, COUNT(*) FROM anomalies GROUP BY status
		UNION ALL
		SELECT 'severity', severity, COUNT(*) FROM anomalies GROUP BY severity
		UNION ALL
		SELECT 'type', anomaly_type, COUNT(*) FROM anomalies GROUP BY anomaly_type
		UNION ALL
		SELECT 'recent', 'last24h', COUNT(*) FROM anomalies WHERE detected_at >= NOW() - INTERVAL '24 hours'`)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomaly stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{
		ByStatus:   map[string]int64{},
		BySeverity: map[string]int64{},
		ByType:     map[string]int64{},
	}
	for rows.Next() {
		var group, key string
		var n int64
		if err := rows.Scan(&group, &key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly stats: %w", err)
		}
		switch group {
		case "status":
			stats.ByStatus[key] = n
			stats.Total += n
		case "severity":
			stats.BySeverity[key] = n
		case "type":
			stats.ByType[key] = n
		case "recent":
			stats.Last24h = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read anomaly stats: %w", err)
	}
	return stats, nil
}

// InsertAnomalies stores anomalies in one transaction. On error nothing is kept.
func (s *Store) InsertAnomalies(ctx context.Context, anomalies []Anomaly) ([]Anomaly, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin anomaly insert: %w", err)
	}
	defer database.RollbackQuietly(ctx, tx)

	stored := make([]Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		row, err := scanAnomaly(tx.QueryRow(ctx, insertAnomalySQL,
			a.UserID, string(a.AnomalyType), string(a.Severity), detailsParam(a.Details)))
		if err != nil {
			return nil, fmt.Errorf("failed to insert %s anomaly: %w", a.AnomalyType, err)
		}
		stored = append(stored, *row)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit anomalies: %w", err)
	}
	return stored, nil
}

// ActiveUsers returns users with a successful login since the given time.
func (s *Store) ActiveUsers(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT user_id FROM login_history
		WHERE success AND user_id IS NOT NULL AND created_at >= $1
		ORDER BY user_id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// frequencies runs one of the grouped history queries.
func (s *Store) frequencies(ctx context.Context, sql string, userID int64, since time.Time) ([]frequency, error) {
	rows, err := s.pool.Query(ctx, sql, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []frequency
	for rows.Next() {
		var f frequency
		if err := rows.Scan(&f.Key, &f.Count); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanBaseline(row pgx.Row) (*Baseline, error) {
	var b Baseline
	var baselineType string
	var data []byte
	if err := row.Scan(&b.ID, &b.UserID, &baselineType, &data, &b.CalculatedAt, &b.LastUpdated); err != nil {
		return nil, err
	}
	b.BaselineType = BaselineType(baselineType)
	b.Data = data
	return &b, nil
}

func scanAnomaly(row pgx.Row) (*Anomaly, error) {
	var a Anomaly
	var anomalyType, severity, status string
	var details []byte
	err := row.Scan(&a.ID, &a.UserID, &anomalyType, &severity, &details,
		&a.DetectedAt, &status, &a.ReviewedBy, &a.ReviewedAt)
	if err != nil {
		return nil, err
	}
	a.AnomalyType = AnomalyType(anomalyType)
	a.Severity = Severity(severity)
	a.Status = AnomalyStatus(status)
	if len(details) > 0 {
		a.Details = details
	}
	return &a, nil
}

func detailsParam(d []byte) any {
	if len(d) == 0 {
		return nil
	}
	return string(d)
}
