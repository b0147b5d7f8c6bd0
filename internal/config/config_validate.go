// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package config

import (
	"fmt"
	"strings"
	"time"
)

// minJWTSecretLength is the shortest HS256 secret accepted.
const minJWTSecretLength = 32

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateSecurity,
		c.validateLogging,
		c.validateAudit,
		c.validateMonitoring,
		c.validateAnalytics,
		c.validateNotify,
		c.validateNATS,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging or production, got %q", c.Server.Environment)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("SERVER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if err := validatePostgresURL(c.Database.URL); err != nil {
		return fmt.Errorf("DATABASE_URL is invalid: %w", err)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.Database.MaxConns)
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d",
			c.Database.MaxConns, c.Database.MinConns)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQS must be at least 1 when rate limiting is enabled")
		}
		if c.Security.RateLimitWindow < time.Second {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s")
		}
	}
	if c.IsProduction() {
		for _, origin := range c.Security.CORSOrigins {
			if origin == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain '*' in production")
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateAudit() error {
	if c.Audit.BufferSize < 1 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be at least 1, got %d", c.Audit.BufferSize)
	}
	if c.Audit.VerifyInterval < 0 {
		return fmt.Errorf("AUDIT_VERIFY_INTERVAL must not be negative")
	}
	return nil
}

func (c *Config) validateMonitoring() error {
	if c.Monitoring.FailedAttemptThreshold < 1 {
		return fmt.Errorf("MONITOR_FAILED_ATTEMPT_THRESHOLD must be at least 1")
	}
	if c.Monitoring.FailedAttemptWindow <= 0 {
		return fmt.Errorf("MONITOR_FAILED_ATTEMPT_WINDOW must be positive")
	}
	if c.Monitoring.LockoutThreshold < 1 {
		return fmt.Errorf("MONITOR_LOCKOUT_THRESHOLD must be at least 1")
	}
	return nil
}

func (c *Config) validateAnalytics() error {
	if c.Analytics.MinHistory < 1 {
		return fmt.Errorf("ANALYTICS_MIN_HISTORY must be at least 1")
	}
	if c.Analytics.HourDeviation < 1 || c.Analytics.HourDeviation > 12 {
		return fmt.Errorf("ANALYTICS_HOUR_DEVIATION must be between 1 and 12, got %d", c.Analytics.HourDeviation)
	}
	if c.Analytics.HistoryWindow <= 0 {
		return fmt.Errorf("ANALYTICS_HISTORY_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.WebhookURL == "" {
		return nil
	}
	if err := validateHTTPURL(c.Notify.WebhookURL, "ALERT_WEBHOOK_URL"); err != nil {
		return err
	}
	if c.Notify.WebhookRateLimit < 1 {
		return fmt.Errorf("ALERT_WEBHOOK_RATE_LIMIT must be at least 1")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.Topic == "" {
		return fmt.Errorf("NATS_TOPIC is required when NATS_ENABLED=true")
	}
	return nil
}
