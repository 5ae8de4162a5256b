// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/relayhub/relayhub/internal/activity"
	"github.com/relayhub/relayhub/internal/logging"
	"github.com/relayhub/relayhub/internal/metrics"
	"github.com/relayhub/relayhub/internal/notify"
	"github.com/relayhub/relayhub/internal/queue"
	"github.com/relayhub/relayhub/internal/store"
)

// ErrPartialFanout signals that a link-table insert committed fewer rows
// than the number of ledger rows. The transaction is aborted; a partial
// fan-out is never committed. This indicates a modeling bug, not a
// normal race, and is logged loudly.
var ErrPartialFanout = errors.New("fanout: link row count does not match activity count")

// RealtimeEventName is the event name pushed onto per-user channels for
// every committed activity.
const RealtimeEventName = "new-activity"

// Store is the persistence surface the service requires.
type Store interface {
	InTx(ctx context.Context, fn func(tx store.Tx) error) error
	TeamMemberIDs(ctx context.Context, teamID int64) ([]int64, error)
	TaskSubscriberIDs(ctx context.Context, taskID int64) ([]int64, error)
	InboxesByUserIDs(ctx context.Context, userIDs []int64) ([]store.Inbox, error)
	ActivityDetails(ctx context.Context, ids []int64) ([]store.ActivityDetail, error)
}

// Notifier pushes one real-time notification to one user. Delivery is
// fire-and-forget; errors are logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, userID int64, name string, payload any) error
}

// JobPublisher enqueues downstream email/push jobs.
type JobPublisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

// Event is the entity context a handler resolves before handing its
// change records to the service.
type Event struct {
	Entity    string
	EntityID  int64
	ActorID   int64
	Type      string
	CreatedAt time.Time

	// TaskID scopes the event to a task; 0 for non-task events.
	TaskID int64
	// BookID scopes the event to a workspace; 0 when absent.
	BookID int64
	// TeamID identifies the owning team. 0 means a personal workspace,
	// which never fans out.
	TeamID int64
	// SubtaskID is set when the event was rolled up from a sub-task onto
	// its parent. Sub-task activities never trigger downstream
	// email/push.
	SubtaskID int64
}

// Service persists change records and fans them out.
type Service struct {
	store    Store
	notifier Notifier
	jobs     JobPublisher
	triggers Triggers
	log      zerolog.Logger
}

// New creates a fan-out service. notifier and jobs may be nil in tests;
// the corresponding steps are skipped.
func New(st Store, notifier Notifier, jobs JobPublisher, triggers Triggers) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		jobs:     jobs,
		triggers: triggers,
		log:      logging.With().Str("component", "fanout").Logger(),
	}
}

// activityData is the JSON persisted in each ledger row: the change
// record itself plus enough entity context to render it later.
type activityData struct {
	activity.ChangeRecord
	Entity    string `json:"entity"`
	EntityID  int64  `json:"entityId"`
	SubtaskID int64  `json:"subtaskId,omitempty"`
}

// Apply writes one ledger row per change record, links each row to its
// task/book/inbox contexts atomically, then notifies the audience and
// enqueues downstream jobs. An empty record list is a no-op.
func (s *Service) Apply(ctx context.Context, ev Event, records []activity.ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()

	audience, err := s.resolveAudience(ctx, ev)
	if err != nil {
		return err
	}

	inboxes, err := s.store.InboxesByUserIDs(ctx, audience.All())
	if err != nil {
		return queue.NewRetryableError("load audience inboxes", err)
	}

	activities := make([]store.NewActivity, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(activityData{
			ChangeRecord: rec,
			Entity:       ev.Entity,
			EntityID:     ev.EntityID,
			SubtaskID:    ev.SubtaskID,
		})
		if err != nil {
			return fmt.Errorf("marshal activity data: %w", err)
		}
		activities = append(activities, store.NewActivity{
			Data:      data,
			CreatorID: ev.ActorID,
			Type:      ev.Type,
			CreatedAt: ev.CreatedAt,
		})
	}

	var ids []int64
	var inboxLinkCount int
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		var txErr error
		ids, txErr = tx.InsertActivities(ctx, activities)
		if txErr != nil {
			return txErr
		}
		if len(ids) != len(records) {
			return ErrPartialFanout
		}

		if ev.TaskID != 0 {
			n, txErr := tx.InsertTaskLinks(ctx, ids, ev.TaskID, ev.TeamID)
			if txErr != nil {
				return txErr
			}
			if n != int64(len(ids)) {
				return ErrPartialFanout
			}
		}
		if ev.BookID != 0 {
			n, txErr := tx.InsertBookLinks(ctx, ids, ev.BookID, ev.TeamID)
			if txErr != nil {
				return txErr
			}
			if n != int64(len(ids)) {
				return ErrPartialFanout
			}
		}

		links := buildInboxLinks(ids, ev, audience, inboxes)
		if len(links) == 0 {
			return nil
		}
		n, txErr := tx.InsertInboxLinks(ctx, links)
		if txErr != nil {
			return txErr
		}
		if n != int64(len(links)) {
			return ErrPartialFanout
		}
		inboxLinkCount = len(links)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPartialFanout) {
			metrics.RecordFanoutAbort()
			s.log.Error().
				Str("entity", ev.Entity).
				Int64("entityId", ev.EntityID).
				Int("records", len(records)).
				Msg("Fan-out aborted on row count mismatch")
			// A row-count mismatch is a modeling bug; redelivering the
			// event would only abort again.
			return err
		}
		return queue.NewRetryableError("fanout transaction", err)
	}

	metrics.RecordAudience(len(audience.All()))
	metrics.RecordFanout(len(ids), taskLinkCount(ev, ids), bookLinkCount(ev, ids),
		inboxLinkCount, time.Since(start))

	s.pushRealtime(ctx, ids, audience)
	s.enqueueDownstream(ctx, ev, records, ids)
	return nil
}

func taskLinkCount(ev Event, ids []int64) int {
	if ev.TaskID == 0 {
		return 0
	}
	return len(ids)
}

func bookLinkCount(ev Event, ids []int64) int {
	if ev.BookID == 0 {
		return 0
	}
	return len(ids)
}

// buildInboxLinks produces one link row per (activity, audience inbox).
// Subscribers get private rows, members public ones; a user in both
// sets already collapsed into one during audience resolution.
func buildInboxLinks(ids []int64, ev Event, a Audience, inboxes []store.Inbox) []store.InboxLink {
	inboxByUser := make(map[int64]int64, len(inboxes))
	for _, ib := range inboxes {
		inboxByUser[ib.UserID] = ib.ID
	}

	links := make([]store.InboxLink, 0, len(ids)*len(inboxes))
	for _, id := range ids {
		for _, userID := range a.Members {
			inboxID, ok := inboxByUser[userID]
			if !ok {
				continue
			}
			links = append(links, store.InboxLink{
				ActivityID: id,
				InboxID:    inboxID,
				TeamID:     ev.TeamID,
				Type:       store.InboxTypePublic,
			})
		}
		for _, userID := range a.Subscribers {
			inboxID, ok := inboxByUser[userID]
			if !ok {
				continue
			}
			links = append(links, store.InboxLink{
				ActivityID: id,
				InboxID:    inboxID,
				TeamID:     ev.TeamID,
				Type:       store.InboxTypePrivate,
				TaskID:     ev.TaskID,
			})
		}
	}
	return links
}

// pushRealtime reloads the committed activities with actor display data
// and notifies every audience member once per activity. Failures are
// logged and never fail the already-committed event.
func (s *Service) pushRealtime(ctx context.Context, ids []int64, a Audience) {
	if s.notifier == nil {
		return
	}
	details, err := s.store.ActivityDetails(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Msg("Reload of committed activities failed, skipping real-time push")
		return
	}
	for _, userID := range a.All() {
		for i := range details {
			err := s.notifier.Notify(ctx, userID, RealtimeEventName, &details[i])
			metrics.RecordRealtimePublish(RealtimeEventName, err)
			if err != nil {
				s.log.Warn().Err(err).
					Int64("userId", userID).
					Int64("activityId", details[i].ID).
					Msg("Real-time publish failed")
			}
		}
	}
}

// enqueueDownstream gates each record's column against the email/push
// allow-lists and enqueues one job per match. Sub-task activities are
// never forwarded downstream.
func (s *Service) enqueueDownstream(ctx context.Context, ev Event, records []activity.ChangeRecord, ids []int64) {
	if s.jobs == nil || ev.SubtaskID != 0 {
		return
	}
	for i, rec := range records {
		if s.triggers.Email.Has(rec.Column) {
			if err := s.jobs.Publish(ctx, queue.TopicEmail, notify.EncodeJob(ids[i])); err != nil {
				s.log.Error().Err(err).Int64("activityId", ids[i]).Msg("Email job enqueue failed")
			}
		}
		if s.triggers.Push.Has(rec.Column) {
			if err := s.jobs.Publish(ctx, queue.TopicPush, notify.EncodeJob(ids[i])); err != nil {
				s.log.Error().Err(err).Int64("activityId", ids[i]).Msg("Push job enqueue failed")
			}
		}
	}
}
