// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Database.URL = "postgres://sentinel@localhost:5432/sentinel"
	cfg.Security.JWTSecret = testSecret
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"missing database url", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL is required"},
		{"wrong database scheme", func(c *Config) { c.Database.URL = "mysql://localhost/db" }, "DATABASE_URL is invalid"},
		{"min conns above max", func(c *Config) { c.Database.MinConns = 20 }, "DB_MIN_CONNS"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"bad environment", func(c *Config) { c.Server.Environment = "qa" }, "ENVIRONMENT"},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "abc" }, "JWT_SECRET"},
		{"wildcard cors in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.CORSOrigins = []string{"*"}
		}, "CORS_ORIGINS"},
		{"rate limit disabled skips checks", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, ""},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"zero lockout threshold", func(c *Config) { c.Monitoring.LockoutThreshold = 0 }, "MONITOR_LOCKOUT_THRESHOLD"},
		{"hour deviation too large", func(c *Config) { c.Analytics.HourDeviation = 13 }, "ANALYTICS_HOUR_DEVIATION"},
		{"webhook with query", func(c *Config) { c.Notify.WebhookURL = "https://x.example.com/h?token=1" }, "ALERT_WEBHOOK_URL"},
		{"nats bad scheme", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = "http://localhost:4222"
		}, "NATS_URL"},
		{"nats disabled ignores url", func(c *Config) { c.NATS.URL = "garbage" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
