// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package notify

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/relayhub/relayhub/internal/metrics"
	"github.com/relayhub/relayhub/internal/store"
)

// EmailProvider delivers one rendered email.
type EmailProvider interface {
	Send(ctx context.Context, to store.Recipient, subject, body string) error
}

// PushProvider delivers one rendered push message to a device token.
type PushProvider interface {
	Send(ctx context.Context, token store.PushToken, title, body string) error
}

// BreakerConfig tunes a provider circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns conservative settings for a provider
// breaker: trip after five consecutive failures, probe again after
// thirty seconds.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// breaker wraps provider calls with circuit breaker protection and
// records request outcomes and state transitions.
type breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func newBreaker(cfg BreakerConfig) *breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, float64(to))
		},
	}
	return &breaker{
		name: cfg.Name,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// do runs fn through the breaker and records the outcome.
func (b *breaker) do(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	switch {
	case err == nil:
		metrics.RecordBreakerRequest(b.name, "success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordBreakerRequest(b.name, "rejected")
	default:
		metrics.RecordBreakerRequest(b.name, "failure")
	}
	return err
}
