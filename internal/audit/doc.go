// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

// Package audit provides the hash-chained, tamper-evident audit log.
//
// Every security or data-access event of clinical significance is stored as
// one row of audit_logs. Rows are linked: each row's previous_hash holds the
// SHA-256 digest of its predecessor's canonical JSON, so a retroactive edit
// to any row breaks the link of the row after it.
//
// # Canonical Form
//
// The digest covers, in this order:
//
//	id, timestamp, userId, userEmail, userRole, action, resourceType,
//	resourceId, ipAddress, userAgent, requestMethod, requestPath, status,
//	errorCode, errorMessage, metadata, previousHash
//
// Timestamps are UTC with microsecond precision, empty strings encode as
// null, and metadata objects are re-encoded with sorted keys. Only the link is
// stored; a row's own digest is always recomputed from its stored fields.
//
// # Immutability
//
// The schema installs two BEFORE triggers on audit_logs. DELETE is always
// rejected. UPDATE is rejected unless the only change is user_id becoming NULL,
// which the users foreign key does on user deletion. Rejections carry the word
// "immutable"; ClassifyWriteError turns them into *ImmutabilityViolation.
//
// Because nulling user_id changes the row's recomputed digest, VerifyChain
// reports such a break with the HintUserIDNulled hint instead of accepting it.
//
// # Architecture
//
//	Logger.Log() -> Entry Buffer (chan) -> Async Writer -> Store.Append
//	                     |                      |
//	                 Non-blocking           Background goroutine
//
// Append reads the newest row, hashes it and inserts the new row in one
// statement. Concurrent appends may read the same predecessor; enable
// WithSerializedAppends to take a transaction advisory lock around both steps.
//
// # Backfill
//
// MigratePreviousHashIfNeeded adds previous_hash to tables created before the
// chain existed and links every row in id order. It must run before the
// triggers are installed, and is a no-op once the column exists.
//
// # Usage
//
//	store := audit.NewStore(db.Pool())
//	logger := audit.NewLogger(store, audit.DefaultConfig())
//	defer logger.Close()
//
//	logger.LogAuthSuccess(ctx, audit.Actor{UserID: &id, Email: email}, audit.SourceFromRequest(r))
//
//	report, err := store.VerifyChain(ctx)
package audit
