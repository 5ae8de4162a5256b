// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package realtime

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// ChannelFor returns the deterministic per-user channel name.
func ChannelFor(userID int64) string {
	return fmt.Sprintf("user:%d:events", userID)
}

// Envelope is the message published onto a per-user channel and relayed
// verbatim over the user's live connections.
type Envelope struct {
	UserID  int64  `json:"userId"`
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// RedisNotifier publishes envelopes onto per-user Redis channels. It is
// the worker-side half of real-time delivery; at-most-once, no
// persistence, offline users catch up through the inbox query path.
type RedisNotifier struct {
	rdb redis.UniversalClient
}

// NewRedisNotifier wraps an existing Redis client.
func NewRedisNotifier(rdb redis.UniversalClient) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// Notify publishes one envelope to the user's channel. A publish error
// is returned for logging but the caller treats delivery as
// fire-and-forget.
func (n *RedisNotifier) Notify(ctx context.Context, userID int64, name string, payload any) error {
	data, err := json.Marshal(Envelope{UserID: userID, Name: name, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal realtime envelope: %w", err)
	}
	if err := n.rdb.Publish(ctx, ChannelFor(userID), data).Err(); err != nil {
		return fmt.Errorf("publish realtime envelope: %w", err)
	}
	return nil
}
