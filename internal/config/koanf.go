// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/urosentinel/config.yaml",
	"/etc/urosentinel/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3857,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			ConnectTimeout:  10 * time.Second,
			MigrateOnStart:  true,
		},
		Security: SecurityConfig{
			RateLimitReqs:        100,
			RateLimitWindow:      time.Minute,
			CORSOrigins:          []string{},
			CasbinReloadInterval: 30 * time.Second,
			CasbinCacheTTL:       5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Audit: AuditConfig{
			BufferSize:     1000,
			VerifyInterval: time.Hour,
		},
		Monitoring: MonitoringConfig{
			FailedAttemptThreshold: 3,
			FailedAttemptWindow:    15 * time.Minute,
			LockoutThreshold:       10,
		},
		Analytics: AnalyticsConfig{
			MinHistory:        5,
			HourDeviation:     3,
			HistoryWindow:     90 * 24 * time.Hour,
			RecomputeInterval: 24 * time.Hour,
		},
		Notify: NotifyConfig{
			WebhookTimeout:   10 * time.Second,
			WebhookRateLimit: 30,
			WebSocketEnabled: true,
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			Topic:         "security.alerts",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults,
// then validates it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	"http_port":              "server.port",
	"http_host":              "server.host",
	"server_timeout":         "server.timeout",
	"shutdown_timeout":       "server.shutdown_timeout",
	"environment":            "server.environment",
	"database_url":           "database.url",
	"db_max_conns":           "database.max_conns",
	"db_min_conns":           "database.min_conns",
	"db_max_conn_lifetime":   "database.max_conn_lifetime",
	"db_connect_timeout":     "database.connect_timeout",
	"db_migrate_on_start":    "database.migrate_on_start",
	"jwt_secret":             "security.jwt_secret",
	"jwt_issuer":             "security.jwt_issuer",
	"rate_limit_reqs":        "security.rate_limit_reqs",
	"rate_limit_window":      "security.rate_limit_window",
	"disable_rate_limit":     "security.rate_limit_disabled",
	"cors_origins":           "security.cors_origins",
	"casbin_model_path":      "security.casbin_model_path",
	"casbin_policy_path":     "security.casbin_policy_path",
	"casbin_reload_interval": "security.casbin_reload_interval",
	"casbin_cache_ttl":       "security.casbin_cache_ttl",
	"log_level":              "logging.level",
	"log_format":             "logging.format",
	"log_caller":             "logging.caller",

	"audit_buffer_size":       "audit.buffer_size",
	"audit_serialize_appends": "audit.serialize_appends",
	"audit_verify_interval":   "audit.verify_interval",

	"monitor_failed_attempt_threshold": "monitoring.failed_attempt_threshold",
	"monitor_failed_attempt_window":    "monitoring.failed_attempt_window",
	"monitor_lockout_threshold":        "monitoring.lockout_threshold",

	"analytics_min_history":        "analytics.min_history",
	"analytics_hour_deviation":     "analytics.hour_deviation",
	"analytics_history_window":     "analytics.history_window",
	"analytics_recompute_interval": "analytics.recompute_interval",

	"alert_webhook_url":        "notify.webhook_url",
	"alert_webhook_timeout":    "notify.webhook_timeout",
	"alert_webhook_rate_limit": "notify.webhook_rate_limit",
	"websocket_enabled":        "notify.websocket_enabled",

	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_topic":          "nats.topic",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_reconnect_wait": "nats.reconnect_wait",
}

// envTransformFunc maps an environment variable name to its koanf path,
// returning "" for variables that are not configuration.
//
//   - DATABASE_URL -> database.url
//   - MONITOR_LOCKOUT_THRESHOLD -> monitoring.lockout_threshold
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
