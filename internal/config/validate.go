// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validatePostgres(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if err := c.validateGateway(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateQueue() error {
	if !c.Queue.Embedded && c.Queue.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_EMBEDDED=false")
	}
	if c.Queue.Embedded && c.Queue.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	if c.Queue.VisibilityTimeout <= 0 {
		return fmt.Errorf("QUEUE_VISIBILITY_TIMEOUT must be positive")
	}
	if c.Queue.MaxDeliver < 1 {
		return fmt.Errorf("QUEUE_MAX_DELIVER must be at least 1")
	}
	if c.Queue.SubscribersCount < 1 {
		return fmt.Errorf("QUEUE_SUBSCRIBERS must be at least 1")
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Worker.EmailEnabled {
		if c.Notify.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when WORKER_EMAIL_ENABLED=true")
		}
		if c.Notify.SMTPFrom == "" {
			return fmt.Errorf("SMTP_FROM is required when WORKER_EMAIL_ENABLED=true")
		}
	}
	if c.Worker.PushEnabled && c.Notify.PushURL == "" {
		return fmt.Errorf("PUSH_URL is required when WORKER_PUSH_ENABLED=true")
	}
	return nil
}

func (c *Config) validateGateway() error {
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Gateway.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
