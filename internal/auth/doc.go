// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

/*
Package auth verifies bearer tokens issued by the clinical application.

UroSentinel never issues tokens. Reviewers arrive with an HS256 JWT signed by
the application's identity service; Verifier checks the signature, expiry and
(optionally) issuer, then Middleware stores the resulting Subject in the
request context for authorization and audit attribution.

Token claims:

	{
	  "sub":   "42",                // numeric subjects map to users.id
	  "email": "reviewer@clinic.example",
	  "roles": ["reviewer"],
	  "iss":   "clinic-auth",
	  "exp":   1767225600
	}

Tokens are read from the Authorization header, or from the "token" cookie for
WebSocket upgrades where browsers cannot set headers.
*/
package auth
