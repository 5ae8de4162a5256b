// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package notify

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/relayhub/relayhub/internal/logging"
	"github.com/relayhub/relayhub/internal/metrics"
	"github.com/relayhub/relayhub/internal/queue"
	"github.com/relayhub/relayhub/internal/store"
)

// PushConsumer turns push jobs into provider deliveries. A user may
// hold several device tokens; each token is a separate delivery.
type PushConsumer struct {
	store    Store
	provider PushProvider
	breaker  *breaker
	stats    queue.Stats
	log      zerolog.Logger
	now      func() time.Time
}

// NewPushConsumer builds the push job consumer.
func NewPushConsumer(st Store, provider PushProvider, cfg BreakerConfig) *PushConsumer {
	return &PushConsumer{
		store:    st,
		provider: provider,
		breaker:  newBreaker(cfg),
		log:      logging.With().Str("component", "notify-push").Logger(),
		now:      time.Now,
	}
}

// HandleMessage processes one push job with the same acknowledgement
// semantics as the email consumer.
func (c *PushConsumer) HandleMessage(msg *message.Message) (err error) {
	c.stats.Received()
	start := time.Now()
	defer func() {
		metrics.RecordProcessing(queue.TopicPush, time.Since(start))
		c.stats.Observe(err)
	}()

	ctx := msg.Context()

	activityID, err := DecodeJob(msg)
	if err != nil {
		return queue.NewPermanentError("decode push job", err)
	}

	detail, targets, err := c.resolve(ctx, activityID)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	content := renderActivity(detail)
	tokens, err := c.store.PushTokens(ctx, targets)
	if err != nil {
		return queue.NewRetryableError("load push tokens", err)
	}

	for _, tok := range tokens {
		err := c.breaker.do(func() error {
			return c.provider.Send(ctx, tok, content.Subject, content.Body)
		})
		if err != nil {
			metrics.RecordNotificationError("push")
			c.log.Error().Err(err).
				Int64("activityId", activityID).
				Int64("userId", tok.UserID).
				Msg("Push delivery failed")
			continue
		}
		metrics.RecordNotification("push")
	}
	return nil
}

// Stats reports the consumer's message counters.
func (c *PushConsumer) Stats() queue.StatsSnapshot {
	return c.stats.Snapshot()
}

func (c *PushConsumer) resolve(ctx context.Context, activityID int64) (store.ActivityDetail, []int64, error) {
	detail, err := c.store.ActivityDetail(ctx, activityID)
	if errors.Is(err, store.ErrNotFound) {
		return store.ActivityDetail{}, nil, queue.NewPermanentError("activity gone", err)
	}
	if err != nil {
		return store.ActivityDetail{}, nil, queue.NewRetryableError("load activity", err)
	}

	userIDs, err := c.store.ActivityAudienceUserIDs(ctx, activityID)
	if err != nil {
		return store.ActivityDetail{}, nil, queue.NewRetryableError("load audience", err)
	}
	inboxes, err := c.store.InboxesByUserIDs(ctx, userIDs)
	if err != nil {
		return store.ActivityDetail{}, nil, queue.NewRetryableError("load inboxes", err)
	}

	now := c.now()
	targets := make([]int64, 0, len(inboxes))
	for _, inbox := range inboxes {
		switch {
		case inbox.UserID == detail.CreatorID:
			metrics.RecordNotificationSuppressed("push", "actor")
		case !inbox.PushEnabled:
			metrics.RecordNotificationSuppressed("push", "preference")
		case inbox.Muted(now):
			metrics.RecordNotificationSuppressed("push", "muted")
		default:
			targets = append(targets, inbox.UserID)
		}
	}
	return detail, targets, nil
}
