// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/relayhub/relayhub/internal/metrics"
)

// RouterConfig holds configuration for the consumer router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish on close.
	CloseTimeout time.Duration

	// Retry configuration for transient failures.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// PoisonQueueTopic receives messages that exhaust their retries.
	// Empty disables poison routing.
	PoisonQueueTopic string
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		PoisonQueueTopic:     TopicPoison,
	}
}

// Router drives the consumer loops. It wraps watermill's router with
// the pipeline's middleware stack: panic recovery, exponential backoff
// retry for transient failures, and poison routing for messages that
// exhaust their retries.
//
// The ack/redeliver/terminate decision is made by WrapHandler from the
// handler's error classification, so each consumer only states what
// went wrong, not what the queue should do about it.
type Router struct {
	router  *message.Router
	config  RouterConfig
	logger  watermill.LoggerAdapter
	onFatal func(error)
	running bool
}

// NewRouter creates a router. onFatal is invoked when any handler
// reports a transport-fatal error; the caller uses it to terminate the
// supervision tree so the process exits non-zero.
func NewRouter(cfg *RouterConfig, poisonPublisher message.Publisher, onFatal func(error), logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if cfg == nil {
		defaultCfg := DefaultRouterConfig()
		cfg = &defaultCfg
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router:  wmRouter,
		config:  *cfg,
		logger:  logger,
		onFatal: onFatal,
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(poisonPublisher, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	return r, nil
}

// AddConsumer registers a consumer handler for a topic. The handler's
// errors are classified by WrapHandler before watermill sees them.
func (r *Router) AddConsumer(name, topic string, subscriber message.Subscriber, handler func(msg *message.Message) error) {
	r.router.AddConsumerHandler(name, topic, subscriber, r.WrapHandler(name, topic, handler))
}

// WrapHandler adapts a consumer handler to watermill's contract:
//
//   - StepContinue (success or permanent error): return nil, the
//     message is acknowledged. Permanent errors are logged loudly
//     first; a semantically invalid event will never become valid and
//     retrying it would re-trigger duplicate side effects.
//   - StepTransient: return the error, the retry middleware redelivers.
//   - StepFatal: invoke the fatal hook and return nil; the process is
//     going down, redelivery will happen on another instance.
func (r *Router) WrapHandler(name, topic string, handler func(msg *message.Message) error) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		metrics.RecordQueueConsume(topic)
		err := handler(msg)
		switch Classify(err) {
		case StepFatal:
			r.logger.Error("fatal consumer error, terminating", err, watermill.LogFields{
				"handler":      name,
				"message_uuid": msg.UUID,
			})
			if r.onFatal != nil {
				r.onFatal(err)
			}
			return nil
		case StepTransient:
			metrics.RecordQueueRedelivery(topic)
			return err
		default:
			if err != nil {
				metrics.RecordQueueDropped(topic)
				r.logger.Error("event handled but failed, acknowledging", err, watermill.LogFields{
					"handler":      name,
					"message_uuid": msg.UUID,
				})
			}
			return nil
		}
	}
}

// Run starts the router and blocks until context cancellation or Close.
func (r *Router) Run(ctx context.Context) error {
	r.running = true
	defer func() { r.running = false }()
	return r.router.Run(ctx)
}

// Running returns a channel that closes once the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is currently processing.
func (r *Router) IsRunning() bool {
	return r.running
}

// Close gracefully stops the router, waiting up to CloseTimeout for
// in-flight messages.
func (r *Router) Close() error {
	return r.router.Close()
}
