// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package query

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder constructs SQL WHERE clauses with PostgreSQL positional
// parameters. Clauses are written with "?" placeholders, which are rewritten
// to $1, $2, ... in the order arguments are added.
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddEquals("status", filter.Status)
//	wb.AddTimeRange("detected_at", filter.StartDate, filter.EndDate)
//	where, args := wb.BuildWithPrefix()
//	// WHERE status = $1 AND detected_at >= $2 AND detected_at <= $3
type WhereBuilder struct {
	clauses []string
	args    []any
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []any{},
	}
}

// AddClause adds a raw condition. Each "?" in clause consumes one argument.
func (wb *WhereBuilder) AddClause(clause string, args ...any) *WhereBuilder {
	if n := strings.Count(clause, "?"); n != len(args) {
		panic(fmt.Sprintf("query: clause %q has %d placeholders, got %d args", clause, n, len(args)))
	}
	var b strings.Builder
	next := 0
	for _, r := range clause {
		if r == '?' {
			wb.args = append(wb.args, args[next])
			next++
			fmt.Fprintf(&b, "$%d", len(wb.args))
			continue
		}
		b.WriteRune(r)
	}
	wb.clauses = append(wb.clauses, b.String())
	return wb
}

// AddEquals adds "column = ?" when value is non-empty.
func (wb *WhereBuilder) AddEquals(column, value string) *WhereBuilder {
	if value != "" {
		wb.AddClause(column+" = ?", value)
	}
	return wb
}

// AddInt64 adds "column = ?" when value is non-nil.
func (wb *WhereBuilder) AddInt64(column string, value *int64) *WhereBuilder {
	if value != nil {
		wb.AddClause(column+" = ?", *value)
	}
	return wb
}

// AddTimeRange adds inclusive start and end bounds on column. Nil bounds are skipped.
func (wb *WhereBuilder) AddTimeRange(column string, start, end *time.Time) *WhereBuilder {
	if start != nil {
		wb.AddClause(column+" >= ?", *start)
	}
	if end != nil {
		wb.AddClause(column+" <= ?", *end)
	}
	return wb
}

// Build returns the conditions joined with AND, or "1=1" when empty.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.clauses) == 0 {
		return "1=1", []any{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns the WHERE clause with "WHERE " prefix.
func (wb *WhereBuilder) BuildWithPrefix() (string, []any) {
	whereClause, args := wb.Build()
	return "WHERE " + whereClause, args
}

// Paginate appends LIMIT and OFFSET parameters and returns the clause.
// A non-positive limit falls back to defaultLimit; limit is capped at maxLimit.
func (wb *WhereBuilder) Paginate(limit, offset, defaultLimit, maxLimit int) string {
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	wb.args = append(wb.args, limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(wb.args)-1, len(wb.args))
}

// Args returns the bound arguments in placeholder order.
func (wb *WhereBuilder) Args() []any {
	return wb.args
}

// Count returns the number of clauses added to the builder.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty returns true if no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
