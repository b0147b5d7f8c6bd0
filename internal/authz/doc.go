// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

/*
Package authz enforces role-based access to the REST API using Casbin.

Requests are evaluated as (role, path, action) where the action is derived
from the HTTP method: GET/HEAD/OPTIONS map to "read", POST/PUT/PATCH to
"write" and DELETE to "delete". A subject is allowed when any of its roles
is allowed.

# Roles

  - reviewer: security alert queue, anomaly review, baseline recalculation,
    live feed
  - auditor: audit trail listing, chain verification, immutability check
  - admin: everything above plus event ingestion; inherits both roles

The model and policy are embedded. SECURITY_CASBIN_MODEL_PATH and
SECURITY_CASBIN_POLICY_PATH override them; an overriding policy file is
reloaded every SECURITY_CASBIN_RELOAD_INTERVAL.

Decisions are cached per (role, path, action) for SECURITY_CASBIN_CACHE_TTL,
so a reloaded policy takes effect within one TTL.
*/
package authz
