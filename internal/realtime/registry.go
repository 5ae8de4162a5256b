// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/relayhub/relayhub/internal/logging"
	"github.com/relayhub/relayhub/internal/metrics"
)

// Registry tracks live connections per user and owns the subscribe/
// unsubscribe lifecycle: one Redis subscription per user with at least
// one open connection, dropped when the last connection closes.
//
// Constructed once at process start and injected; never a package-level
// singleton.
type Registry struct {
	rdb redis.UniversalClient
	log zerolog.Logger

	mu    sync.Mutex
	users map[int64]*userSubscription
}

type userSubscription struct {
	conns  map[*Client]struct{}
	pubsub *redis.PubSub
}

// NewRegistry creates a connection registry over an existing Redis
// client.
func NewRegistry(rdb redis.UniversalClient) *Registry {
	return &Registry{
		rdb:   rdb,
		log:   logging.With().Str("component", "realtime").Logger(),
		users: make(map[int64]*userSubscription),
	}
}

// register adds a connection. The first connection for a user opens the
// Redis subscription and starts the relay goroutine.
func (r *Registry) register(ctx context.Context, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.users[c.userID]
	if sub == nil {
		pubsub := r.rdb.Subscribe(ctx, ChannelFor(c.userID))
		sub = &userSubscription{
			conns:  make(map[*Client]struct{}),
			pubsub: pubsub,
		}
		r.users[c.userID] = sub
		go r.relay(c.userID, pubsub)
		r.log.Debug().Int64("userId", c.userID).Msg("Subscribed to user channel")
	}
	sub.conns[c] = struct{}{}
	metrics.WSConnections.Inc()
}

// unregister removes a connection. The last connection for a user
// closes the Redis subscription, which terminates the relay goroutine.
func (r *Registry) unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.users[c.userID]
	if sub == nil {
		return
	}
	if _, ok := sub.conns[c]; !ok {
		return
	}
	delete(sub.conns, c)
	close(c.send)
	metrics.WSConnections.Dec()

	if len(sub.conns) == 0 {
		if err := sub.pubsub.Close(); err != nil {
			r.log.Warn().Err(err).Int64("userId", c.userID).Msg("Pubsub close failed")
		}
		delete(r.users, c.userID)
		r.log.Debug().Int64("userId", c.userID).Msg("Unsubscribed from user channel")
	}
}

// relay forwards channel messages to every open connection of one user.
// Exits when the subscription closes. A connection whose send buffer is
// full misses the message; real-time delivery is best effort.
func (r *Registry) relay(userID int64, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		r.mu.Lock()
		sub := r.users[userID]
		if sub == nil {
			r.mu.Unlock()
			return
		}
		for c := range sub.conns {
			select {
			case c.send <- []byte(msg.Payload):
				metrics.WSMessagesSent.Inc()
			default:
				r.log.Warn().Int64("userId", userID).Msg("Dropping message for slow client")
			}
		}
		r.mu.Unlock()
	}
}

// ConnectionCount reports the number of open connections for a user.
func (r *Registry) ConnectionCount(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub := r.users[userID]; sub != nil {
		return len(sub.conns)
	}
	return 0
}

// Close drops every subscription. Called on gateway shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, sub := range r.users {
		for c := range sub.conns {
			close(c.send)
		}
		_ = sub.pubsub.Close()
		delete(r.users, userID)
	}
	return nil
}
