// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package validation

import (
	"strings"
	"testing"
)

type reviewBody struct {
	Status string `json:"status" validate:"required,oneof=reviewed dismissed"`
	Note   string `json:"note,omitempty" validate:"max=10"`
	Email  string `json:"userEmail,omitempty" validate:"omitempty,email"`
	IP     string `json:"ipAddress" validate:"omitempty,ip"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=500"`
	Hidden string `json:"-" validate:"omitempty,min=2"`
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator should return the same instance")
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      reviewBody
		wantFields []string
		wantMsg    string
	}{
		{"valid", reviewBody{Status: "reviewed", IP: "10.0.0.1", Limit: 50}, nil, ""},
		{"missing status", reviewBody{}, []string{"status"}, "status is required"},
		{"bad status", reviewBody{Status: "closed"}, []string{"status"}, "status must be one of: reviewed dismissed"},
		{"long note", reviewBody{Status: "reviewed", Note: strings.Repeat("x", 11)}, []string{"note"}, "note must be at most 10 characters"},
		{"bad email", reviewBody{Status: "reviewed", Email: "nope"}, []string{"userEmail"}, "userEmail must be a valid email address"},
		{"bad ip", reviewBody{Status: "reviewed", IP: "300.1.1.1"}, []string{"ipAddress"}, "ipAddress must be a valid IP address"},
		{"limit too high", reviewBody{Status: "reviewed", Limit: 501}, []string{"limit"}, "limit must be at most 500"},
		{"several", reviewBody{Status: "x", Limit: 900}, []string{"status", "limit"}, "; "},
		{"unnamed field", reviewBody{Status: "reviewed", Hidden: "x"}, []string{"Hidden"}, "Hidden must be at least 2 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if tt.wantFields == nil {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected a validation error")
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Fatalf("fields = %+v", verr.Fields)
			}
			for i, f := range tt.wantFields {
				if verr.Fields[i].Field != f {
					t.Errorf("field[%d] = %q, want %q", i, verr.Fields[i].Field, f)
				}
			}
			if !strings.Contains(verr.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want it to contain %q", verr.Error(), tt.wantMsg)
			}
			if _, ok := verr.Details()["fields"]; !ok {
				t.Error("Details missing fields")
			}
		})
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	verr := ValidateStruct("not a struct")
	if verr == nil || verr.Fields[0].Field != "request" {
		t.Errorf("verr = %+v", verr)
	}
}
