// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package testinfra

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call records one statement sent to a FakeConn.
type Call struct {
	SQL  string
	Args []any
	InTx bool
}

// FakeConn is an in-memory stand-in for *pgxpool.Pool. Tests install the
// OnExec/OnQuery/OnQueryRow callbacks they need and inspect Calls afterwards.
// Transactions started with Begin route their statements through the same
// callbacks.
type FakeConn struct {
	OnExec     func(sql string, args []any) (pgconn.CommandTag, error)
	OnQuery    func(sql string, args []any) (pgx.Rows, error)
	OnQueryRow func(sql string, args []any) pgx.Row
	BeginErr   error
	CommitErr  error

	mu    sync.Mutex
	calls []Call
	txs   []*FakeTx
	begun int
}

// Exec implements database.Querier.
func (c *FakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.exec(sql, args, false)
}

// Query implements database.Querier.
func (c *FakeConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.query(sql, args, false)
}

// QueryRow implements database.Querier.
func (c *FakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return c.queryRow(sql, args, false)
}

// Begin implements database.TxBeginner.
func (c *FakeConn) Begin(_ context.Context) (pgx.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begun++
	if c.BeginErr != nil {
		return nil, c.BeginErr
	}
	tx := &FakeTx{conn: c}
	c.txs = append(c.txs, tx)
	return tx, nil
}

// Calls returns a snapshot of every statement received.
func (c *FakeConn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallsMatching returns the statements whose SQL contains fragment.
func (c *FakeConn) CallsMatching(fragment string) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if strings.Contains(call.SQL, fragment) {
			out = append(out, call)
		}
	}
	return out
}

// Touched reports whether any statement or transaction reached the fake.
func (c *FakeConn) Touched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls) > 0 || c.begun > 0
}

// Txs returns every transaction started so far.
func (c *FakeConn) Txs() []*FakeTx {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*FakeTx, len(c.txs))
	copy(out, c.txs)
	return out
}

func (c *FakeConn) record(sql string, args []any, inTx bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{SQL: sql, Args: args, InTx: inTx})
}

func (c *FakeConn) exec(sql string, args []any, inTx bool) (pgconn.CommandTag, error) {
	c.record(sql, args, inTx)
	if c.OnExec == nil {
		return pgconn.NewCommandTag(""), nil
	}
	return c.OnExec(sql, args)
}

func (c *FakeConn) query(sql string, args []any, inTx bool) (pgx.Rows, error) {
	c.record(sql, args, inTx)
	if c.OnQuery == nil {
		return &FakeRows{}, nil
	}
	return c.OnQuery(sql, args)
}

func (c *FakeConn) queryRow(sql string, args []any, inTx bool) pgx.Row {
	c.record(sql, args, inTx)
	if c.OnQueryRow == nil {
		return FakeRow{Err: pgx.ErrNoRows}
	}
	return c.OnQueryRow(sql, args)
}

// FakeTx implements pgx.Tx over a FakeConn. Methods not overridden here
// panic through the nil embedded interface.
type FakeTx struct {
	pgx.Tx
	conn       *FakeConn
	mu         sync.Mutex
	committed  bool
	rolledBack bool
}

// Exec routes through the parent connection.
func (t *FakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.conn.exec(sql, args, true)
}

// Query routes through the parent connection.
func (t *FakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.conn.query(sql, args, true)
}

// QueryRow routes through the parent connection.
func (t *FakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return t.conn.queryRow(sql, args, true)
}

// Begin starts a pseudo nested transaction (savepoint).
func (t *FakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.conn.Begin(ctx)
}

// Commit marks the transaction committed unless CommitErr is set.
func (t *FakeTx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	if t.conn.CommitErr != nil {
		t.rolledBack = true
		return t.conn.CommitErr
	}
	t.committed = true
	return nil
}

// Rollback marks the transaction rolled back; after Commit it returns ErrTxClosed like pgx.
func (t *FakeTx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

// Committed reports whether Commit succeeded.
func (t *FakeTx) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

// RolledBack reports whether the transaction ended in a rollback.
func (t *FakeTx) RolledBack() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rolledBack
}

// Closed reports whether the transaction released its connection.
func (t *FakeTx) Closed() bool {
	return t.Committed() || t.RolledBack()
}

// FakeRow is a canned pgx.Row.
type FakeRow struct {
	Values []any
	Err    error
}

// Scan copies Values into dest.
func (r FakeRow) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	return assign(dest, r.Values)
}

// FakeRows is a canned pgx.Rows.
type FakeRows struct {
	pgx.Rows
	Data    [][]any
	Failure error

	idx    int
	closed bool
}

// Next advances to the next row.
func (r *FakeRows) Next() bool {
	if r.closed || r.idx >= len(r.Data) {
		return false
	}
	r.idx++
	return true
}

// Scan copies the current row into dest.
func (r *FakeRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.Data) {
		return errors.New("fake rows: Scan called without a current row")
	}
	return assign(dest, r.Data[r.idx-1])
}

// Close marks the result set closed.
func (r *FakeRows) Close() { r.closed = true }

// Err returns Failure.
func (r *FakeRows) Err() error { return r.Failure }

// CommandTag returns a SELECT tag.
func (r *FakeRows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(r.Data)))
}

// IsClosed reports whether Close was called.
func (r *FakeRows) IsClosed() bool { return r.closed }

// Tag builds a command tag such as "UPDATE 1".
func Tag(s string) pgconn.CommandTag {
	return pgconn.NewCommandTag(s)
}

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("fake row: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("fake row: destination %d is not a non-nil pointer", i)
		}
		if err := setValue(dv.Elem(), values[i]); err != nil {
			return fmt.Errorf("fake row: column %d: %w", i, err)
		}
	}
	return nil
}

func setValue(target reflect.Value, v any) error {
	if v == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	vv := reflect.ValueOf(v)
	if vv.Type().AssignableTo(target.Type()) {
		target.Set(vv)
		return nil
	}
	if isNumeric(vv.Kind()) && isNumeric(target.Kind()) {
		target.Set(vv.Convert(target.Type()))
		return nil
	}
	if target.Kind() == reflect.Pointer {
		elem := reflect.New(target.Type().Elem())
		if err := setValue(elem.Elem(), v); err != nil {
			return err
		}
		target.Set(elem)
		return nil
	}
	if s, ok := v.(string); ok && target.Kind() == reflect.Slice && target.Type().Elem().Kind() == reflect.Uint8 {
		target.SetBytes([]byte(s))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", v, target.Type())
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
