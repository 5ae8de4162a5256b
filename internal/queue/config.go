// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package queue

import (
	"fmt"
	"time"
)

// Topic names for the pipeline's queues. One JetStream stream carries
// all of them; consumers bind durable queue groups per topic.
const (
	// TopicActivity carries raw change events from the emitter.
	TopicActivity = "activity.events"
	// TopicEmail carries {activityId} jobs for the email consumer.
	TopicEmail = "notify.email"
	// TopicPush carries {activityId} jobs for the push consumer.
	TopicPush = "notify.push"
	// TopicReminder carries scheduled reminder jobs.
	TopicReminder = "notify.reminder"
	// TopicPoison receives messages that exhausted their retries.
	TopicPoison = "notify.poison"
)

// StreamName is the JetStream stream holding all pipeline topics.
const StreamName = "RELAYHUB"

// StreamSubjects lists the subject space bound to the stream.
var StreamSubjects = []string{"activity.>", "notify.>"}

// Config holds connection and consumption settings shared by the
// publisher and subscriber.
type Config struct {
	// URL is the NATS server address.
	URL string

	// VisibilityTimeout is how long a delivered message stays invisible
	// to other receivers before redelivery (JetStream AckWait). It is
	// the de facto processing deadline for one message; keep it
	// generous, minutes rather than seconds.
	VisibilityTimeout time.Duration

	// MaxDeliver caps redeliveries before the retry middleware routes
	// the message to the poison topic.
	MaxDeliver int

	// MaxAckPending bounds in-flight unacknowledged messages.
	MaxAckPending int

	// QueueGroup load-balances consumption across processes of one role.
	QueueGroup string

	// DurableName names the durable consumer so position survives restarts.
	DurableName string

	// SubscribersCount is the number of parallel pull loops per process.
	SubscribersCount int

	// MaxReconnects and ReconnectWait govern connection recovery.
	MaxReconnects int
	ReconnectWait time.Duration

	// CloseTimeout is how long Close waits for in-flight handlers.
	CloseTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		URL:               "nats://127.0.0.1:4222",
		VisibilityTimeout: 5 * time.Minute,
		MaxDeliver:        5,
		MaxAckPending:     256,
		QueueGroup:        "relayhub",
		DurableName:       "relayhub",
		SubscribersCount:  1,
		MaxReconnects:     -1,
		ReconnectWait:     2 * time.Second,
		CloseTimeout:      30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidConfig)
	}
	if c.VisibilityTimeout <= 0 {
		return fmt.Errorf("%w: visibility timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxDeliver < 1 {
		return fmt.Errorf("%w: max deliver must be at least 1", ErrInvalidConfig)
	}
	return nil
}
