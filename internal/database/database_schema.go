// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package database

// ReaderRole is granted SELECT on the audit log for compliance tooling.
const ReaderRole = "audit_logs_reader"

// coreTablesSQL creates every table the service reads or writes. The users,
// login_history and active_sessions tables are owned by the clinical
// application; they are created here only when absent so a fresh deployment
// (and the integration tests) have a complete schema.
//
// audit_logs.user_id uses ON DELETE SET NULL: the only UPDATE the
// immutability trigger lets through.
const coreTablesSQL = `
CREATE TABLE IF NOT EXISTS users (
	id                    BIGSERIAL PRIMARY KEY,
	email                 TEXT NOT NULL UNIQUE,
	role                  TEXT NOT NULL DEFAULT 'staff',
	failed_login_attempts INTEGER DEFAULT 0,
	locked_until          TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS login_history (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT REFERENCES users(id) ON DELETE CASCADE,
	email      TEXT NOT NULL,
	ip_address TEXT,
	user_agent TEXT,
	success    BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_login_history_email_ip ON login_history (email, ip_address, created_at);
CREATE INDEX IF NOT EXISTS idx_login_history_user_ip ON login_history (user_id, ip_address) WHERE success;

CREATE TABLE IF NOT EXISTS active_sessions (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	token      TEXT NOT NULL,
	ip_address TEXT,
	user_agent TEXT,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_active_sessions_user ON active_sessions (user_id, expires_at);

CREATE TABLE IF NOT EXISTS audit_logs (
	id             BIGSERIAL PRIMARY KEY,
	timestamp      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	user_id        BIGINT REFERENCES users(id) ON DELETE SET NULL,
	user_email     TEXT,
	user_role      TEXT,
	action         TEXT NOT NULL,
	resource_type  TEXT,
	resource_id    TEXT,
	ip_address     TEXT,
	user_agent     TEXT,
	request_method TEXT,
	request_path   TEXT,
	status         TEXT,
	error_code     TEXT,
	error_message  TEXT,
	metadata       JSONB,
	previous_hash  TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs (user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs (action, timestamp);

CREATE TABLE IF NOT EXISTS behavioral_baselines (
	id            BIGSERIAL PRIMARY KEY,
	user_id       BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	baseline_type TEXT NOT NULL CHECK (baseline_type IN ('location', 'time', 'access_pattern')),
	baseline_data JSONB NOT NULL,
	calculated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_updated  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, baseline_type)
);

CREATE TABLE IF NOT EXISTS anomalies (
	id           BIGSERIAL PRIMARY KEY,
	user_id      BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	anomaly_type TEXT NOT NULL CHECK (anomaly_type IN ('unusual_location', 'unusual_time', 'unusual_access')),
	severity     TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high')),
	details      JSONB,
	detected_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	status       TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'reviewed', 'dismissed')),
	reviewed_by  BIGINT,
	reviewed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_anomalies_user ON anomalies (user_id, detected_at);
CREATE INDEX IF NOT EXISTS idx_anomalies_status ON anomalies (status, severity);

CREATE TABLE IF NOT EXISTS security_alerts (
	id               BIGSERIAL PRIMARY KEY,
	alert_type       TEXT NOT NULL,
	severity         TEXT NOT NULL,
	user_id          BIGINT REFERENCES users(id) ON DELETE SET NULL,
	user_email       TEXT,
	ip_address       TEXT,
	message          TEXT NOT NULL,
	details          JSONB,
	status           TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'acknowledged', 'resolved')),
	occurrence_count INTEGER NOT NULL DEFAULT 1,
	acknowledged_by  TEXT,
	acknowledged_at  TIMESTAMPTZ,
	resolved_by      TEXT,
	resolved_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_security_alerts_identity ON security_alerts (alert_type, user_email, user_id);
`

// updateGuardSQL accepts an UPDATE only when every column except user_id is
// unchanged and user_id either keeps its value or becomes NULL. No-op updates
// therefore pass; edits to any other column do not.
const updateGuardSQL = `
CREATE OR REPLACE FUNCTION prevent_audit_log_update() RETURNS trigger AS $$
BEGIN
	IF (to_jsonb(NEW) - 'user_id') = (to_jsonb(OLD) - 'user_id')
		AND (NEW.user_id IS NULL OR NEW.user_id = OLD.user_id) THEN
		RETURN NEW;
	END IF;
	RAISE EXCEPTION 'audit_logs is immutable: only user_id may be cleared to NULL (id=%)', OLD.id;
END;
$$ LANGUAGE plpgsql;
`

// immutabilitySQL installs the storage-layer enforcement for audit_logs.
// It must run after the previous_hash backfill, which issues UPDATEs the
// triggers would reject.
const immutabilitySQL = `
CREATE OR REPLACE FUNCTION prevent_audit_log_delete() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'audit_logs is immutable: DELETE is not permitted (id=%)', OLD.id;
END;
$$ LANGUAGE plpgsql;

` + updateGuardSQL + `
DROP TRIGGER IF EXISTS audit_logs_prevent_delete ON audit_logs;
CREATE TRIGGER audit_logs_prevent_delete
	BEFORE DELETE ON audit_logs
	FOR EACH ROW EXECUTE FUNCTION prevent_audit_log_delete();

DROP TRIGGER IF EXISTS audit_logs_prevent_update ON audit_logs;
CREATE TRIGGER audit_logs_prevent_update
	BEFORE UPDATE ON audit_logs
	FOR EACH ROW EXECUTE FUNCTION prevent_audit_log_update();

CREATE OR REPLACE FUNCTION verify_audit_log_immutability()
RETURNS TABLE (
	trigger_name       TEXT,
	event_manipulation TEXT,
	action_timing      TEXT,
	action_statement   TEXT,
	status             TEXT
) LANGUAGE sql STABLE AS $$
	SELECT t.trigger_name::text,
	       t.event_manipulation::text,
	       t.action_timing::text,
	       t.action_statement::text,
	       CASE WHEN pt.tgenabled = 'D' THEN 'DISABLED' ELSE 'ENABLED' END
	FROM information_schema.triggers t
	JOIN pg_trigger pt
	  ON pt.tgname = t.trigger_name
	 AND pt.tgrelid = 'audit_logs'::regclass
	WHERE t.event_object_table = 'audit_logs'
	ORDER BY t.trigger_name, t.event_manipulation
$$;
`

// updateGuardRevisionSQL reinstalls the update guard on databases migrated
// before no-op updates were accepted, and indexes the case-folded alert email.
const updateGuardRevisionSQL = updateGuardSQL + `
CREATE INDEX IF NOT EXISTS idx_security_alerts_email_ci ON security_alerts (alert_type, lower(user_email));
`

// readerRoleSQL creates the read-only compliance role.
const readerRoleSQL = `
DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = 'audit_logs_reader') THEN
		CREATE ROLE audit_logs_reader NOLOGIN;
	END IF;
END
$$;

GRANT SELECT ON audit_logs TO audit_logs_reader;
GRANT SELECT ON SEQUENCE audit_logs_id_seq TO audit_logs_reader;
`
