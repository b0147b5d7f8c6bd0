// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/urosentinel/internal/database"
	"github.com/tomtom215/urosentinel/internal/database/query"
	"github.com/tomtom215/urosentinel/internal/logging"
	"github.com/tomtom215/urosentinel/internal/metrics"
)

// chainLockID serializes appends when SerializeAppends is enabled.
const chainLockID int64 = 0x5552_4F53_454E_0002

const backfillPageSize = 500

const entryColumns = `id, timestamp, user_id, user_email, user_role, action,
	resource_type, resource_id, ip_address, user_agent, request_method, request_path,
	status, error_code, error_message, metadata, COALESCE(previous_hash, ''), created_at`

const insertEntrySQL = `
	INSERT INTO audit_logs (
		timestamp, user_id, user_email, user_role, action,
		resource_type, resource_id, ip_address, user_agent, request_method, request_path,
		status, error_code, error_message, metadata, previous_hash
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	RETURNING id, created_at`

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSerializedAppends takes a transaction-scoped advisory lock around the
// read-latest and insert steps so concurrent appends cannot fork the chain.
func WithSerializedAppends(enabled bool) StoreOption {
	return func(s *Store) {
		s.serialize = enabled
	}
}

// Store persists hash-chained audit entries in PostgreSQL.
type Store struct {
	pool      database.Pool
	serialize bool
	now       func() time.Time
}

// NewStore creates a Store over pool.
func NewStore(pool database.Pool, opts ...StoreOption) *Store {
	s := &Store{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append links e to the latest row and inserts it. The returned entry carries
// the assigned id, the stored previous_hash and created_at.
//
// Without serialized appends, two concurrent calls may read the same
// predecessor; VerifyChain will then report the fork.
func (s *Store) Append(ctx context.Context, e *Entry) (*Entry, error) {
	if e == nil || e.Action == "" {
		return nil, fmt.Errorf("%w: action is required", ErrValidation)
	}

	start := time.Now()
	stored, err := s.append(ctx, e)
	metrics.RecordDBQuery("insert", "audit_logs", time.Since(start), err)
	metrics.RecordAuditAppend(err)
	if err != nil {
		return nil, ClassifyWriteError(err)
	}
	return stored, nil
}

func (s *Store) append(ctx context.Context, e *Entry) (*Entry, error) {
	entry := *e
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	entry.Timestamp = entry.Timestamp.UTC().Truncate(time.Microsecond)

	if !s.serialize {
		return insertLinked(ctx, s.pool, &entry)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin audit append: %w", err)
	}
	defer database.RollbackQuietly(ctx, tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", chainLockID); err != nil {
		return nil, fmt.Errorf("failed to acquire audit chain lock: %w", err)
	}
	stored, err := insertLinked(ctx, tx, &entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit audit append: %w", err)
	}
	return stored, nil
}

func insertLinked(ctx context.Context, q database.Querier, e *Entry) (*Entry, error) {
	prevHash, err := latestHash(ctx, q)
	if err != nil {
		return nil, err
	}
	e.PreviousHash = prevHash

	err = q.QueryRow(ctx, insertEntrySQL,
		e.Timestamp, e.UserID, nullString(e.UserEmail), nullString(e.UserRole), e.Action,
		nullString(e.ResourceType), nullString(e.ResourceID), nullString(e.IPAddress),
		nullString(e.UserAgent), nullString(e.RequestMethod), nullString(e.RequestPath),
		nullString(e.Status), nullString(e.ErrorCode), nullString(e.ErrorMessage),
		metadataParam(e.Metadata), e.PreviousHash,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return e, nil
}

// latestHash returns the digest of the newest row, or "" for an empty table.
func latestHash(ctx context.Context, q database.Querier) (string, error) {
	row := q.QueryRow(ctx, `SELECT `+entryColumns+` FROM audit_logs ORDER BY id DESC LIMIT 1`)
	last, err := scanEntry(row)
	if database.IsNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read latest audit entry: %w", err)
	}
	return ComputeHash(last), nil
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM audit_logs WHERE id = $1`, id)
	e, err := scanEntry(row)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return e, nil
}

// Query returns entries matching filter, newest first.
func (s *Store) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	wb := buildFilter(filter)
	where, _ := wb.BuildWithPrefix()
	page := wb.Paginate(filter.Limit, filter.Offset, 100, 1000)

	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM audit_logs `+where+` ORDER BY id DESC`+page, wb.Args()...)
	metrics.RecordDBQuery("select", "audit_logs", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries matching filter.
func (s *Store) Count(ctx context.Context, filter Filter) (int64, error) {
	where, args := buildFilter(filter).BuildWithPrefix()
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return n, nil
}

func buildFilter(f Filter) *query.WhereBuilder {
	wb := query.NewWhereBuilder()
	wb.AddInt64("user_id", f.UserID)
	wb.AddEquals("user_email", f.UserEmail)
	wb.AddEquals("action", f.Action)
	wb.AddEquals("resource_type", f.ResourceType)
	wb.AddEquals("resource_id", f.ResourceID)
	wb.AddEquals("status", f.Status)
	wb.AddEquals("ip_address", f.IPAddress)
	wb.AddTimeRange("timestamp", f.StartTime, f.EndTime)
	return wb
}

// VerifyChain recomputes every row's digest in id order and checks that each
// row's previous_hash matches its predecessor. It reports the first break and
// never modifies data.
func (s *Store) VerifyChain(ctx context.Context) (*ChainReport, error) {
	start := time.Now()
	report, err := verifyChain(ctx, s.pool)
	if err != nil {
		metrics.RecordChainVerification(false, 0, err)
		return nil, err
	}
	report.VerifiedAt = s.now().UTC()
	report.Duration = time.Since(start).String()
	metrics.RecordChainVerification(report.Valid, report.EntriesChecked, nil)

	if !report.Valid {
		logging.Warn().
			Int64("entry_id", report.FirstBreak.EntryID).
			Str("hint", report.FirstBreak.Hint).
			Msg("Audit hash chain break detected")
	}
	return report, nil
}

func verifyChain(ctx context.Context, q database.Querier) (*ChainReport, error) {
	rows, err := q.Query(ctx, `SELECT `+entryColumns+` FROM audit_logs ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit chain: %w", err)
	}
	defer rows.Close()

	report := &ChainReport{Valid: true}
	var prev *Entry
	var prevHash string
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		report.EntriesChecked++

		if prev != nil && e.PreviousHash != prevHash {
			brk := &ChainBreak{
				EntryID:    e.ID,
				PreviousID: prev.ID,
				Expected:   prevHash,
				Actual:     e.PreviousHash,
			}
			if prev.UserID == nil {
				brk.Hint = HintUserIDNulled
			}
			report.Valid = false
			report.FirstBreak = brk
			break
		}

		prev = e
		prevHash = ComputeHash(e)
		report.LastEntryID = e.ID
		report.LastHash = prevHash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit chain: %w", err)
	}
	return report, nil
}

// MigrateExistingToHashChain rewrites previous_hash on every row in ascending
// id order, seeding the chain with "". It must run before the immutability
// triggers exist; afterwards every UPDATE is rejected.
func (s *Store) MigrateExistingToHashChain(ctx context.Context) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin hash chain backfill: %w", err)
	}
	defer database.RollbackQuietly(ctx, tx)

	n, err := backfillChain(ctx, tx)
	if err != nil {
		return 0, ClassifyWriteError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit hash chain backfill: %w", err)
	}
	return n, nil
}

// backfillChain pages through audit_logs so that no result set is open while
// the UPDATEs run on the same connection.
func backfillChain(ctx context.Context, q database.Querier) (int, error) {
	var (
		lastID   int64
		prevHash string
		updated  int
	)
	for {
		page, err := readPage(ctx, q, lastID)
		if err != nil {
			return updated, err
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			e := &page[i]
			e.PreviousHash = prevHash
			if _, err := q.Exec(ctx, `UPDATE audit_logs SET previous_hash = $1 WHERE id = $2`, prevHash, e.ID); err != nil {
				return updated, fmt.Errorf("failed to backfill previous_hash for entry %d: %w", e.ID, err)
			}
			prevHash = ComputeHash(e)
			lastID = e.ID
			updated++
		}
	}
	return updated, nil
}

func readPage(ctx context.Context, q database.Querier, afterID int64) ([]Entry, error) {
	rows, err := q.Query(ctx,
		`SELECT `+entryColumns+` FROM audit_logs WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		afterID, backfillPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit entries for backfill: %w", err)
	}
	defer rows.Close()

	var page []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		page = append(page, *e)
	}
	return page, rows.Err()
}

// MigratePreviousHashIfNeeded adds and backfills audit_logs.previous_hash on
// tables created before the hash chain. It is a no-op returning false when
// the column already exists.
func (s *Store) MigratePreviousHashIfNeeded(ctx context.Context) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin previous_hash migration: %w", err)
	}
	defer database.RollbackQuietly(ctx, tx)

	migrated, err := MigratePreviousHashIfNeeded(ctx, tx)
	if err != nil || !migrated {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit previous_hash migration: %w", err)
	}
	return true, nil
}

// MigratePreviousHashIfNeeded is the transaction-scoped form used by the
// schema migrations. q should be a transaction.
func MigratePreviousHashIfNeeded(ctx context.Context, q database.Querier) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema()
			  AND table_name = 'audit_logs'
			  AND column_name = 'previous_hash'
		)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to inspect audit_logs columns: %w", err)
	}
	if exists {
		logging.Debug().Msg("audit_logs.previous_hash present, skipping backfill")
		return false, nil
	}

	if _, err := q.Exec(ctx, `ALTER TABLE audit_logs ADD COLUMN previous_hash TEXT`); err != nil {
		return false, fmt.Errorf("failed to add previous_hash column: %w", err)
	}
	n, err := backfillChain(ctx, q)
	if err != nil {
		return false, err
	}
	logging.Info().Int("entries", n).Msg("Backfilled audit hash chain")
	return true, nil
}

// Backfill adapts MigratePreviousHashIfNeeded to database.HashChainBackfill.
func Backfill(ctx context.Context, q database.Pool) error {
	_, err := MigratePreviousHashIfNeeded(ctx, q)
	return err
}

// ImmutabilityStatus reports the installed audit_logs triggers. Enforced is
// true only when both the DELETE and UPDATE triggers exist and are enabled.
func (s *Store) ImmutabilityStatus(ctx context.Context) (*ImmutabilityStatus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT trigger_name, event_manipulation, action_timing, action_statement, status
		FROM verify_audit_log_immutability()`)
	if err != nil {
		return nil, fmt.Errorf("failed to verify audit immutability: %w", err)
	}
	defer rows.Close()

	status := &ImmutabilityStatus{Triggers: []TriggerStatus{}}
	var deleteGuard, updateGuard bool
	for rows.Next() {
		var t TriggerStatus
		if err := rows.Scan(&t.TriggerName, &t.EventManipulation, &t.ActionTiming, &t.ActionStatement, &t.Status); err != nil {
			return nil, fmt.Errorf("failed to scan trigger status: %w", err)
		}
		status.Triggers = append(status.Triggers, t)
		if t.Status != "ENABLED" || t.ActionTiming != "BEFORE" {
			continue
		}
		switch t.EventManipulation {
		case "DELETE":
			deleteGuard = true
		case "UPDATE":
			updateGuard = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trigger status: %w", err)
	}
	status.Enforced = deleteGuard && updateGuard
	return status, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e                                      Entry
		email, role, resType, resID, ip, agent *string
		method, path, status, errCode, errMsg  *string
		metadata                               []byte
	)
	err := row.Scan(
		&e.ID, &e.Timestamp, &e.UserID, &email, &role, &e.Action,
		&resType, &resID, &ip, &agent, &method, &path,
		&status, &errCode, &errMsg, &metadata, &e.PreviousHash, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Timestamp = e.Timestamp.UTC()
	e.UserEmail = derefString(email)
	e.UserRole = derefString(role)
	e.ResourceType = derefString(resType)
	e.ResourceID = derefString(resID)
	e.IPAddress = derefString(ip)
	e.UserAgent = derefString(agent)
	e.RequestMethod = derefString(method)
	e.RequestPath = derefString(path)
	e.Status = derefString(status)
	e.ErrorCode = derefString(errCode)
	e.ErrorMessage = derefString(errMsg)
	if len(metadata) > 0 {
		e.Metadata = metadata
	}
	return &e, nil
}

// metadataParam passes metadata as JSON text, or NULL when empty.
func metadataParam(m []byte) any {
	if len(m) == 0 {
		return nil
	}
	return string(m)
}
