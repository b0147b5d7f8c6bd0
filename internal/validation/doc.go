// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

// Package validation wraps go-playground/validator for API request structs.
//
// Field names in errors use the json tag, so messages match what clients
// sent:
//
//	type body struct {
//	    Status string `json:"status" validate:"required,oneof=reviewed dismissed"`
//	}
//
//	if verr := validation.ValidateStruct(&b); verr != nil {
//	    // verr.Error() == "status must be one of: reviewed dismissed"
//	}
package validation
