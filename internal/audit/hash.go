// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goccy/go-json"
)

// TimestampLayout is the canonical timestamp encoding: UTC with microseconds,
// the precision PostgreSQL stores.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// canonicalEntry fixes the field order of the hashed document. Do not reorder.
type canonicalEntry struct {
	ID            int64   `json:"id"`
	Timestamp     string  `json:"timestamp"`
	UserID        *int64  `json:"userId"`
	UserEmail     *string `json:"userEmail"`
	UserRole      *string `json:"userRole"`
	Action        string  `json:"action"`
	ResourceType  *string `json:"resourceType"`
	ResourceID    *string `json:"resourceId"`
	IPAddress     *string `json:"ipAddress"`
	UserAgent     *string `json:"userAgent"`
	RequestMethod *string `json:"requestMethod"`
	RequestPath   *string `json:"requestPath"`
	Status        *string `json:"status"`
	ErrorCode     *string `json:"errorCode"`
	ErrorMessage  *string `json:"errorMessage"`
	Metadata      any     `json:"metadata"`
	PreviousHash  string  `json:"previousHash"`
}

// CanonicalJSON returns the deterministic serialization that ComputeHash digests.
func CanonicalJSON(e *Entry) ([]byte, error) {
	c := canonicalEntry{
		ID:            e.ID,
		Timestamp:     FormatTimestamp(e.Timestamp),
		UserID:        e.UserID,
		UserEmail:     nullString(e.UserEmail),
		UserRole:      nullString(e.UserRole),
		Action:        e.Action,
		ResourceType:  nullString(e.ResourceType),
		ResourceID:    nullString(e.ResourceID),
		IPAddress:     nullString(e.IPAddress),
		UserAgent:     nullString(e.UserAgent),
		RequestMethod: nullString(e.RequestMethod),
		RequestPath:   nullString(e.RequestPath),
		Status:        nullString(e.Status),
		ErrorCode:     nullString(e.ErrorCode),
		ErrorMessage:  nullString(e.ErrorMessage),
		Metadata:      canonicalMetadata(e.Metadata),
		PreviousHash:  e.PreviousHash,
	}
	return json.Marshal(c)
}

// ComputeHash returns the lower-case hex SHA-256 of the entry's canonical JSON.
func ComputeHash(e *Entry) string {
	data, err := CanonicalJSON(e)
	if err != nil {
		// Only reachable with an unencodable metadata value; hash its raw bytes instead.
		data = append([]byte(FormatTimestamp(e.Timestamp)), e.Metadata...)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(TimestampLayout)
}

// canonicalMetadata decodes metadata so that object keys re-encode in sorted
// order and numbers keep their literal form. JSONB does not preserve key
// order, so hashing the raw bytes would not be stable across a round trip.
func canonicalMetadata(raw json.RawMessage) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(trimmed)
	}
	return v
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
