// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

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

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/relayhub/config.yaml",
	"/etc/relayhub/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every optional setting filled in.
// These values are applied first, then overridden by the config file
// and environment variables.
func defaultConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			URL:               "nats://127.0.0.1:4222",
			Embedded:          false,
			StoreDir:          "/data/nats/jetstream",
			MaxMemory:         1 << 30,  // 1GB
			MaxStore:          10 << 30, // 10GB
			VisibilityTimeout: 5 * time.Minute,
			MaxDeliver:        5,
			MaxAckPending:     256,
			QueueGroup:        "relayhub",
			DurableName:       "relayhub",
			SubscribersCount:  1,
			CloseTimeout:      30 * time.Second,
			StreamMaxAge:      7 * 24 * time.Hour,
		},
		Postgres: PostgresConfig{
			DSN: "",
		},
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			Password: "",
			DB:       0,
		},
		Worker: WorkerConfig{
			EmailEnabled: false, // Opt-in: requires SMTP settings
			PushEnabled:  false, // Opt-in: requires a push gateway URL
			MetricsAddr:  "127.0.0.1:9090",
		},
		Notify: NotifyConfig{
			SMTPHost:     "",
			SMTPPort:     587,
			SMTPFrom:     "",
			SMTPFromName: "Relayhub",
			SMTPTLS:      true,
			PushURL:      "",
			PushTimeout:  10 * time.Second,
		},
		Gateway: GatewayConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration using Koanf v2 with layered sources:
//  1. Defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
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

// findConfigFile searches for a config file, environment override
// first, then the default paths.
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

// envTransformFunc maps environment variable names to koanf config
// paths. Unmapped variables are dropped so random environment noise
// does not pollute the configuration.
//
// Examples:
//   - NATS_URL -> queue.url
//   - POSTGRES_DSN -> postgres.dsn
//   - REDIS_ADDR -> redis.addr
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Queue mappings
		"nats_url":                 "queue.url",
		"nats_embedded":            "queue.embedded",
		"nats_store_dir":           "queue.store_dir",
		"nats_max_memory":          "queue.max_memory",
		"nats_max_store":           "queue.max_store",
		"queue_visibility_timeout": "queue.visibility_timeout",
		"queue_max_deliver":        "queue.max_deliver",
		"queue_max_ack_pending":    "queue.max_ack_pending",
		"queue_group":              "queue.queue_group",
		"queue_durable_name":       "queue.durable_name",
		"queue_subscribers":        "queue.subscribers_count",
		"queue_close_timeout":      "queue.close_timeout",
		"queue_stream_max_age":     "queue.stream_max_age",

		// Postgres mappings
		"postgres_dsn": "postgres.dsn",
		"database_url": "postgres.dsn",

		// Redis mappings
		"redis_addr":     "redis.addr",
		"redis_password": "redis.password",
		"redis_db":       "redis.db",

		// Worker mappings
		"worker_email_enabled": "worker.email_enabled",
		"worker_push_enabled":  "worker.push_enabled",
		"worker_metrics_addr":  "worker.metrics_addr",

		// Notify provider mappings
		"smtp_host":      "notify.smtp_host",
		"smtp_port":      "notify.smtp_port",
		"smtp_user":      "notify.smtp_user",
		"smtp_password":  "notify.smtp_password",
		"smtp_from":      "notify.smtp_from",
		"smtp_from_name": "notify.smtp_from_name",
		"smtp_tls":       "notify.smtp_tls",
		"push_url":       "notify.push_url",
		"push_token":     "notify.push_token",
		"push_timeout":   "notify.push_timeout",

		// Gateway mappings
		"http_host":    "gateway.host",
		"http_port":    "gateway.port",
		"http_timeout": "gateway.timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
