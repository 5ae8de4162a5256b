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

// Store is the read surface the downstream consumers need.
type Store interface {
	ActivityDetail(ctx context.Context, id int64) (store.ActivityDetail, error)
	ActivityAudienceUserIDs(ctx context.Context, activityID int64) ([]int64, error)
	InboxesByUserIDs(ctx context.Context, userIDs []int64) ([]store.Inbox, error)
	Recipients(ctx context.Context, userIDs []int64) ([]store.Recipient, error)
	PushTokens(ctx context.Context, userIDs []int64) ([]store.PushToken, error)
}

// EmailConsumer turns email jobs into provider deliveries.
type EmailConsumer struct {
	store    Store
	provider EmailProvider
	breaker  *breaker
	stats    queue.Stats
	log      zerolog.Logger
	now      func() time.Time
}

// NewEmailConsumer builds the email job consumer.
func NewEmailConsumer(st Store, provider EmailProvider, cfg BreakerConfig) *EmailConsumer {
	return &EmailConsumer{
		store:    st,
		provider: provider,
		breaker:  newBreaker(cfg),
		log:      logging.With().Str("component", "notify-email").Logger(),
		now:      time.Now,
	}
}

// HandleMessage processes one email job. Jobs that can never succeed
// (bad id, deleted activity) are acknowledged; store failures are
// retried. Provider failures for individual recipients are logged and
// do not fail the job.
func (c *EmailConsumer) HandleMessage(msg *message.Message) (err error) {
	c.stats.Received()
	start := time.Now()
	defer func() {
		metrics.RecordProcessing(queue.TopicEmail, time.Since(start))
		c.stats.Observe(err)
	}()

	ctx := msg.Context()

	activityID, err := DecodeJob(msg)
	if err != nil {
		return queue.NewPermanentError("decode email job", err)
	}

	detail, targets, err := c.resolve(ctx, activityID)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	content := renderActivity(detail)
	recipients, err := c.store.Recipients(ctx, targets)
	if err != nil {
		return queue.NewRetryableError("load recipients", err)
	}

	for _, r := range recipients {
		if r.Email == "" {
			continue
		}
		err := c.breaker.do(func() error {
			return c.provider.Send(ctx, r, content.Subject, content.Body)
		})
		if err != nil {
			metrics.RecordNotificationError("email")
			c.log.Error().Err(err).
				Int64("activityId", activityID).
				Int64("userId", r.UserID).
				Msg("Email delivery failed")
			continue
		}
		metrics.RecordNotification("email")
	}
	return nil
}

// Stats reports the consumer's message counters.
func (c *EmailConsumer) Stats() queue.StatsSnapshot {
	return c.stats.Snapshot()
}

// resolve reloads the activity and applies per-inbox gating, returning
// the user ids that should receive an email.
func (c *EmailConsumer) resolve(ctx context.Context, activityID int64) (store.ActivityDetail, []int64, error) {
	detail, err := c.store.ActivityDetail(ctx, activityID)
	if errors.Is(err, store.ErrNotFound) {
		// The activity was deleted between fan-out and delivery.
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
			metrics.RecordNotificationSuppressed("email", "actor")
		case !inbox.EmailEnabled:
			metrics.RecordNotificationSuppressed("email", "preference")
		case inbox.Muted(now):
			metrics.RecordNotificationSuppressed("email", "muted")
		default:
			targets = append(targets, inbox.UserID)
		}
	}
	return detail, targets, nil
}
