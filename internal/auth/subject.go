// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package auth

import (
	"context"
	"errors"
	"slices"
	"strconv"
)

// Roles recognized by the authorization policy.
const (
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
	RoleAuditor  = "auditor"
)

var (
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredCredentials = errors.New("credentials expired")
)

// Subject is an authenticated principal.
type Subject struct {
	// ID is the token's sub claim.
	ID string `json:"id"`

	// UserID is set when ID is a users.id.
	UserID *int64 `json:"userId,omitempty"`

	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Issuer    string   `json:"issuer,omitempty"`
	ExpiresAt int64    `json:"expiresAt,omitempty"`
}

// HasRole reports whether the subject holds role.
func (s *Subject) HasRole(role string) bool {
	return slices.Contains(s.Roles, role)
}

// PrimaryRole returns the first role, or "" when there are none.
func (s *Subject) PrimaryRole() string {
	if len(s.Roles) == 0 {
		return ""
	}
	return s.Roles[0]
}

// Name returns the email when known, else the subject ID.
func (s *Subject) Name() string {
	if s.Email != "" {
		return s.Email
	}
	return s.ID
}

// SubjectFromClaims builds a Subject from verified claims.
func SubjectFromClaims(c *Claims) *Subject {
	s := &Subject{
		ID:     c.Subject,
		Email:  c.Email,
		Roles:  append([]string(nil), c.Roles...),
		Issuer: c.Issuer,
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Unix()
	}
	if id, err := strconv.ParseInt(c.Subject, 10, 64); err == nil && id > 0 {
		s.UserID = &id
	}
	return s
}

type contextKey struct{}

// ContextWithSubject returns ctx carrying s.
func ContextWithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SubjectFromContext returns the authenticated subject, or nil.
func SubjectFromContext(ctx context.Context) *Subject {
	s, _ := ctx.Value(contextKey{}).(*Subject)
	return s
}
