// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package detection

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/urosentinel/internal/database"
	"github.com/tomtom215/urosentinel/internal/logging"
	"github.com/tomtom215/urosentinel/internal/metrics"
)

// The lookup has no status filter: a resolved alert for the same identity is
// reactivated instead of duplicated. Emails match case-insensitively, the same
// way the advisory lock key is built.
const findAlertSQL = `
	SELECT id, status FROM security_alerts
	WHERE alert_type = $1 AND (user_id = $2 OR lower(user_email) = lower($3))
	ORDER BY id DESC
	LIMIT 1`

const insertAlertSQL = `
	INSERT INTO security_alerts (alert_type, severity, user_id, user_email, ip_address, message, details)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + alertColumns

const updateAlertSQL = `
	UPDATE security_alerts
	SET severity = $2,
	    ip_address = COALESCE($3, ip_address),
	    message = $4,
	    details = $5,
	    user_id = COALESCE(user_id, $6),
	    user_email = COALESCE(user_email, $7),
	    occurrence_count = occurrence_count + 1,
	    status = CASE WHEN status = 'resolved' THEN 'new' ELSE status END,
	    updated_at = NOW()
	WHERE id = $1
	RETURNING ` + alertColumns

// AlertService converts positive verdicts into deduplicated alerts.
type AlertService struct {
	pool       database.Pool
	monitor    *Monitor
	dispatcher *Dispatcher
}

// NewAlertService creates an AlertService. dispatcher may be nil.
func NewAlertService(pool database.Pool, monitor *Monitor, dispatcher *Dispatcher) *AlertService {
	if dispatcher == nil {
		dispatcher = NewDispatcher()
	}
	return &AlertService{pool: pool, monitor: monitor, dispatcher: dispatcher}
}

// Dispatcher returns the notifier fan-out used after commits.
func (s *AlertService) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Raise records v as an alert, keeping at most one per (identity, type).
// Errors are logged and reported through the result; the transaction is
// rolled back and nothing is notified.
func (s *AlertService) Raise(ctx context.Context, v Verdict) *DedupResult {
	result := s.raise(ctx, v)
	result.Verdict = v
	return result
}

func (s *AlertService) raise(ctx context.Context, v Verdict) *DedupResult {
	if !v.ShouldAlert {
		return &DedupResult{Outcome: OutcomeSkipped}
	}
	identity := alertIdentity(v)
	if identity == "" {
		return &DedupResult{Outcome: OutcomeSkipped}
	}

	alert, outcome, err := s.upsert(ctx, identity, v)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("alert_type", string(v.AlertType)).
			Str("identity", identity).
			Msg("Alert deduplication failed, rolled back")
		metrics.RecordAlert(string(v.AlertType), string(OutcomeFailed))
		return &DedupResult{Outcome: OutcomeFailed, Err: err}
	}
	metrics.RecordAlert(string(v.AlertType), string(outcome))

	result := &DedupResult{Outcome: outcome, Alert: alert}
	if outcome == OutcomeInserted || outcome == OutcomeReactivated {
		s.dispatcher.Dispatch(ctx, alert)
		result.Notified = true
	}
	return result
}

func (s *AlertService) upsert(ctx context.Context, identity string, v Verdict) (*Alert, DedupOutcome, error) {
	details, err := json.Marshal(v.Details)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode alert details: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin alert transaction: %w", err)
	}
	defer database.RollbackQuietly(ctx, tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", identity); err != nil {
		return nil, "", fmt.Errorf("failed to lock alert identity: %w", err)
	}

	var existingID int64
	var existingStatus string
	err = tx.QueryRow(ctx, findAlertSQL, string(v.AlertType), v.UserID, nullString(v.UserEmail)).
		Scan(&existingID, &existingStatus)

	var row pgx.Row
	var outcome DedupOutcome
	message := alertMessage(v)
	switch {
	case database.IsNoRows(err):
		outcome = OutcomeInserted
		row = tx.QueryRow(ctx, insertAlertSQL,
			string(v.AlertType), string(v.Severity), v.UserID, nullString(v.UserEmail),
			nullString(v.IPAddress), message, string(details))
	case err != nil:
		return nil, "", fmt.Errorf("failed to look up existing alert: %w", err)
	default:
		outcome = OutcomeUpdated
		if AlertStatus(existingStatus) == StatusResolved {
			outcome = OutcomeReactivated
		}
		row = tx.QueryRow(ctx, updateAlertSQL,
			existingID, string(v.Severity), nullString(v.IPAddress), message, string(details),
			v.UserID, nullString(v.UserEmail))
	}

	alert, err := scanAlert(row)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write %s alert: %w", outcome, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to commit alert: %w", err)
	}
	return alert, outcome, nil
}

// IncrementFailedAttempts bumps the user's persisted failure counter, then
// raises lockout_threshold through deduplication if the counter reached it.
// Unknown emails are ignored. Alerting failures never fail the increment.
func (s *AlertService) IncrementFailedAttempts(ctx context.Context, email, ip string) (int, *DedupResult, error) {
	attempts, err := s.incrementCounter(ctx, email)
	if err != nil || attempts == 0 {
		return attempts, nil, err
	}

	v := s.monitor.DetectLockoutThreshold(ctx, email)
	if !v.ShouldAlert {
		return attempts, nil, nil
	}
	v.IPAddress = ip
	return attempts, s.Raise(ctx, v), nil
}

// incrementCounter returns the new counter value, or 0 for an unknown email.
func (s *AlertService) incrementCounter(ctx context.Context, email string) (int, error) {
	if email == "" {
		return 0, nil
	}
	var attempts int
	err := s.pool.QueryRow(ctx, `
		UPDATE users
		SET failed_login_attempts = COALESCE(failed_login_attempts, 0) + 1
		WHERE email = $1
		RETURNING failed_login_attempts`, email).Scan(&attempts)
	if database.IsNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment failed login attempts: %w", err)
	}
	return attempts, nil
}

// ResetFailedAttempts clears the failure counter after a successful login.
func (s *AlertService) ResetFailedAttempts(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE users SET failed_login_attempts = 0 WHERE email = $1 AND failed_login_attempts <> 0`, email); err != nil {
		return fmt.Errorf("failed to reset failed login attempts: %w", err)
	}
	return nil
}

// alertIdentity is the advisory lock key: the email when known, else the user id.
func alertIdentity(v Verdict) string {
	if v.UserEmail != "" {
		return "email:" + strings.ToLower(v.UserEmail)
	}
	if v.UserID != nil {
		return "user:" + strconv.FormatInt(*v.UserID, 10)
	}
	return ""
}

func alertMessage(v Verdict) string {
	who := v.UserEmail
	if who == "" && v.UserID != nil {
		who = "user " + strconv.FormatInt(*v.UserID, 10)
	}
	switch v.AlertType {
	case AlertMultipleFailedAttempts:
		return fmt.Sprintf("Multiple failed login attempts for %s from %s", who, v.IPAddress)
	case AlertUnusualLocation:
		return fmt.Sprintf("Login for %s from a previously unseen IP address %s", who, v.IPAddress)
	case AlertSimultaneousLogins:
		return fmt.Sprintf("Simultaneous sessions for %s from multiple IP addresses", who)
	case AlertLockoutThreshold:
		return fmt.Sprintf("Account %s reached the failed login lockout threshold", who)
	default:
		return fmt.Sprintf("Security alert %s for %s", v.AlertType, who)
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
