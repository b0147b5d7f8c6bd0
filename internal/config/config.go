// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

// Package config loads UroSentinel configuration from defaults, an optional
// YAML file and environment variables (in increasing order of precedence)
// using koanf, then validates it.
//
// Environment Variables (selection):
//   - DATABASE_URL: PostgreSQL connection URL (required)
//   - JWT_SECRET: HS256 secret used to verify bearer tokens (min 32 chars)
//   - HTTP_PORT, HTTP_HOST: listen address
//   - LOG_LEVEL, LOG_FORMAT: logging
//   - AUDIT_SERIALIZE_APPENDS: take an advisory lock around audit appends
//   - MONITOR_FAILED_ATTEMPT_THRESHOLD, MONITOR_LOCKOUT_THRESHOLD: heuristic thresholds
//   - ANALYTICS_MIN_HISTORY: minimum logins before anomalies are evaluated
//   - ALERT_WEBHOOK_URL: optional webhook for alert notifications
//   - NATS_ENABLED, NATS_URL: optional alert event publication
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Audit      AuditConfig      `koanf:"audit"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Analytics  AnalyticsConfig  `koanf:"analytics"`
	Notify     NotifyConfig     `koanf:"notify"`
	NATS       NATSConfig       `koanf:"nats"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`

	// MigrateOnStart applies the embedded schema (tables, hash-chain backfill,
	// immutability triggers, reader role) during startup.
	MigrateOnStart bool `koanf:"migrate_on_start"`
}

// SecurityConfig holds authentication and authorization settings.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	JWTIssuer         string        `koanf:"jwt_issuer"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`

	// Casbin policy overrides; empty paths use the embedded model and policy.
	CasbinModelPath      string        `koanf:"casbin_model_path"`
	CasbinPolicyPath     string        `koanf:"casbin_policy_path"`
	CasbinReloadInterval time.Duration `koanf:"casbin_reload_interval"`
	CasbinCacheTTL       time.Duration `koanf:"casbin_cache_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// AuditConfig controls the hash-chained audit log writer.
type AuditConfig struct {
	// BufferSize is the capacity of the async write channel.
	BufferSize int `koanf:"buffer_size"`

	// SerializeAppends wraps read-latest and insert in one transaction holding
	// an advisory lock. Off by default.
	SerializeAppends bool `koanf:"serialize_appends"`

	// VerifyInterval is how often the background verifier walks the chain.
	// Zero disables periodic verification.
	VerifyInterval time.Duration `koanf:"verify_interval"`
}

// MonitoringConfig holds authentication heuristic thresholds.
type MonitoringConfig struct {
	FailedAttemptThreshold int           `koanf:"failed_attempt_threshold"`
	FailedAttemptWindow    time.Duration `koanf:"failed_attempt_window"`
	LockoutThreshold       int           `koanf:"lockout_threshold"`
}

// AnalyticsConfig holds behavioral baseline settings.
type AnalyticsConfig struct {
	MinHistory        int           `koanf:"min_history"`
	HourDeviation     int           `koanf:"hour_deviation"`
	HistoryWindow     time.Duration `koanf:"history_window"`
	RecomputeInterval time.Duration `koanf:"recompute_interval"`
}

// NotifyConfig holds alert delivery settings.
type NotifyConfig struct {
	WebhookURL       string        `koanf:"webhook_url"`
	WebhookTimeout   time.Duration `koanf:"webhook_timeout"`
	WebhookRateLimit int           `koanf:"webhook_rate_limit"` // deliveries per minute
	WebSocketEnabled bool          `koanf:"websocket_enabled"`
}

// NATSConfig holds optional alert event publication settings.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Topic         string        `koanf:"topic"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
