// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package query

import (
	"testing"
	"time"
)

func TestWhereBuilder_Empty(t *testing.T) {
	wb := NewWhereBuilder()

	if !wb.IsEmpty() {
		t.Error("Expected new builder to be empty")
	}
	if wb.Count() != 0 {
		t.Errorf("Expected count 0, got %d", wb.Count())
	}

	whereClause, args := wb.Build()
	if whereClause != "1=1" {
		t.Errorf("Expected '1=1' for empty builder, got %q", whereClause)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestWhereBuilder_AddEquals(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddEquals("status", "new").AddEquals("severity", "").AddEquals("anomaly_type", "unusual_time")

	whereClause, args := wb.Build()
	expected := "status = $1 AND anomaly_type = $2"
	if whereClause != expected {
		t.Errorf("Expected %q, got %q", expected, whereClause)
	}
	if len(args) != 2 || args[0] != "new" || args[1] != "unusual_time" {
		t.Errorf("Unexpected args: %v", args)
	}
}

func TestWhereBuilder_AddInt64(t *testing.T) {
	id := int64(42)
	wb := NewWhereBuilder()
	wb.AddInt64("user_id", nil)
	if !wb.IsEmpty() {
		t.Fatal("nil value should be skipped")
	}
	wb.AddInt64("user_id", &id)

	whereClause, args := wb.Build()
	if whereClause != "user_id = $1" {
		t.Errorf("Expected %q, got %q", "user_id = $1", whereClause)
	}
	if args[0] != int64(42) {
		t.Errorf("Expected arg 42, got %v", args[0])
	}
}

func TestWhereBuilder_AddTimeRange(t *testing.T) {
	wb := NewWhereBuilder()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)

	wb.AddTimeRange("timestamp", &start, &end)

	whereClause, args := wb.Build()
	expected := "timestamp >= $1 AND timestamp <= $2"
	if whereClause != expected {
		t.Errorf("Expected %q, got %q", expected, whereClause)
	}
	if len(args) != 2 {
		t.Errorf("Expected 2 args, got %d", len(args))
	}
}

func TestWhereBuilder_AddClauseMultiplePlaceholders(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddEquals("alert_type", "lockout_threshold")
	wb.AddClause("(user_id = ? OR user_email = ?)", int64(7), "a@x.com")

	whereClause, args := wb.BuildWithPrefix()
	expected := "WHERE alert_type = $1 AND (user_id = $2 OR user_email = $3)"
	if whereClause != expected {
		t.Errorf("Expected %q, got %q", expected, whereClause)
	}
	if len(args) != 3 || args[2] != "a@x.com" {
		t.Errorf("Unexpected args: %v", args)
	}
}

func TestWhereBuilder_AddClausePanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for placeholder/arg mismatch")
		}
	}()
	NewWhereBuilder().AddClause("a = ? AND b = ?", 1)
}

func TestWhereBuilder_Paginate(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{name: "explicit", limit: 25, offset: 50, wantLimit: 25, wantOffset: 50},
		{name: "default limit", limit: 0, offset: 0, wantLimit: 100, wantOffset: 0},
		{name: "capped", limit: 5000, offset: 0, wantLimit: 1000, wantOffset: 0},
		{name: "negative offset", limit: 10, offset: -3, wantLimit: 10, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			wb.AddEquals("status", "new")
			clause := wb.Paginate(tt.limit, tt.offset, 100, 1000)

			if clause != " LIMIT $2 OFFSET $3" {
				t.Errorf("Expected %q, got %q", " LIMIT $2 OFFSET $3", clause)
			}
			args := wb.Args()
			if args[1] != tt.wantLimit || args[2] != tt.wantOffset {
				t.Errorf("limit/offset = %v/%v, want %d/%d", args[1], args[2], tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
