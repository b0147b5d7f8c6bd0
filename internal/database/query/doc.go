// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

// Package query provides SQL query building utilities for the stores.
//
// WhereBuilder assembles parameterized WHERE clauses for PostgreSQL. Callers
// write conditions with "?" placeholders and the builder numbers them, so
// optional filters can be added in any order without tracking $n by hand:
//
//	wb := query.NewWhereBuilder()
//	wb.AddEquals("status", f.Status)
//	wb.AddEquals("severity", f.Severity)
//	wb.AddInt64("user_id", f.UserID)
//	wb.AddTimeRange("detected_at", f.StartDate, f.EndDate)
//	where, _ := wb.BuildWithPrefix()
//	page := wb.Paginate(f.Limit, f.Offset, 50, 500)
//	rows, err := q.Query(ctx, "SELECT ... FROM anomalies "+where+" ORDER BY detected_at DESC"+page, wb.Args()...)
//
// Column names are never taken from user input; only values are bound.
package query
