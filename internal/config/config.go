// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package config

import (
	"time"

	"github.com/relayhub/relayhub/internal/queue"
)

// Config holds all process configuration loaded from defaults, an
// optional YAML file, and environment variables.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: override any setting
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Queue    QueueConfig    `koanf:"queue"`
	Postgres PostgresConfig `koanf:"postgres"`
	Redis    RedisConfig    `koanf:"redis"`
	Worker   WorkerConfig   `koanf:"worker"`
	Notify   NotifyConfig   `koanf:"notify"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// NotifyConfig holds the downstream delivery provider settings.
type NotifyConfig struct {
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUser     string        `koanf:"smtp_user"`
	SMTPPassword string        `koanf:"smtp_password"`
	SMTPFrom     string        `koanf:"smtp_from"`
	SMTPFromName string        `koanf:"smtp_from_name"`
	SMTPTLS      bool          `koanf:"smtp_tls"`
	PushURL      string        `koanf:"push_url"`
	PushToken    string        `koanf:"push_token"`
	PushTimeout  time.Duration `koanf:"push_timeout"`
}

// QueueConfig holds NATS JetStream settings shared by every consumer
// in the worker process.
type QueueConfig struct {
	URL               string        `koanf:"url"`
	Embedded          bool          `koanf:"embedded"`
	StoreDir          string        `koanf:"store_dir"`
	MaxMemory         int64         `koanf:"max_memory"`
	MaxStore          int64         `koanf:"max_store"`
	VisibilityTimeout time.Duration `koanf:"visibility_timeout"`
	MaxDeliver        int           `koanf:"max_deliver"`
	MaxAckPending     int           `koanf:"max_ack_pending"`
	QueueGroup        string        `koanf:"queue_group"`
	DurableName       string        `koanf:"durable_name"`
	SubscribersCount  int           `koanf:"subscribers_count"`
	CloseTimeout      time.Duration `koanf:"close_timeout"`
	StreamMaxAge      time.Duration `koanf:"stream_max_age"`
}

// PostgresConfig holds the application database connection settings.
type PostgresConfig struct {
	DSN string `koanf:"dsn"`
}

// RedisConfig holds the pub/sub broker settings used for real-time
// delivery.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// WorkerConfig toggles the downstream consumers and exposes the
// worker's own metrics endpoint.
type WorkerConfig struct {
	EmailEnabled bool   `koanf:"email_enabled"`
	PushEnabled  bool   `koanf:"push_enabled"`
	MetricsAddr  string `koanf:"metrics_addr"`
}

// GatewayConfig holds the WebSocket gateway HTTP settings.
type GatewayConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// QueueClientConfig translates the loaded settings into the queue
// package's connection configuration.
func (c *Config) QueueClientConfig() queue.Config {
	qc := queue.DefaultConfig()
	qc.URL = c.Queue.URL
	qc.VisibilityTimeout = c.Queue.VisibilityTimeout
	qc.MaxDeliver = c.Queue.MaxDeliver
	qc.MaxAckPending = c.Queue.MaxAckPending
	qc.QueueGroup = c.Queue.QueueGroup
	qc.DurableName = c.Queue.DurableName
	qc.SubscribersCount = c.Queue.SubscribersCount
	qc.CloseTimeout = c.Queue.CloseTimeout
	return qc
}

// StreamConfig translates the loaded settings into the stream
// provisioning configuration.
func (c *Config) StreamConfig() queue.StreamConfig {
	sc := queue.DefaultStreamConfig()
	if c.Queue.StreamMaxAge > 0 {
		sc.MaxAge = c.Queue.StreamMaxAge
	}
	return sc
}
