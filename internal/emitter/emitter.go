// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

// Package emitter publishes change events onto the activity queue.
//
// Business-logic collaborators call Emit synchronously after committing
// a mutation. The emitter projects both snapshots down to the entity's
// field allow-list before encoding, so full rows never travel on the
// wire and unrelated fields cannot leak into the pipeline.
package emitter

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/relayhub/relayhub/internal/activity"
	"github.com/relayhub/relayhub/internal/logging"
	"github.com/relayhub/relayhub/internal/queue"
)

// Publisher is the queue surface the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

// Emitter serializes change events and sends them to the activity
// topic.
type Emitter struct {
	pub   Publisher
	allow map[string]activity.FieldSet
	now   func() time.Time
	log   zerolog.Logger
}

// New creates an emitter with the production allow-lists.
func New(pub Publisher) *Emitter {
	return &Emitter{
		pub:   pub,
		allow: defaultAllowLists(),
		now:   time.Now,
		log:   logging.With().Str("component", "emitter").Logger(),
	}
}

// defaultAllowLists bounds the snapshot fields each entity kind may
// carry on the wire. The id field always survives projection.
func defaultAllowLists() map[string]activity.FieldSet {
	return map[string]activity.FieldSet{
		"task": activity.NewFieldSet(
			"title", "dueDate", "completedAt", "assigneeId",
			"startDate", "endDate", "tagName", "tagColor",
			"listId", "bookId", "teamId",
		),
		"subtask":    activity.NewFieldSet("title", "completedAt", "parentId", "bookId", "teamId"),
		"project":    activity.NewFieldSet("title", "bookId", "teamId"),
		"message":    activity.NewFieldSet("content", "bookId", "teamId"),
		"attachment": activity.NewFieldSet("fileName", "taskId", "bookId", "teamId"),
		"book":       activity.NewFieldSet("title", "teamId"),
		"annotation": activity.NewFieldSet("content", "resolved", "projectId", "bookId", "teamId"),
		"reminder":   activity.NewFieldSet("remindAt", "taskId", "bookId", "teamId"),
	}
}

// Emit projects, encodes, and publishes one change event. Either
// snapshot may be nil to signal pure creation or deletion.
func (e *Emitter) Emit(ctx context.Context, entity string, from, to *activity.Snapshot, actorID int64, eventType string) error {
	allow, ok := e.allow[entity]
	if !ok {
		return fmt.Errorf("%w: %q", activity.ErrUnknownEntity, entity)
	}

	ev := &activity.ChangeEvent{
		Entity:    entity,
		From:      from.Project(allow),
		To:        to.Project(allow),
		ActorID:   actorID,
		Type:      eventType,
		CreatedAt: e.now().UTC(),
	}
	msg, err := activity.EncodeMessage(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}

	// Reminder changes ride their own topic; the handler path is the
	// same, but delivery sweeps can lag without holding back the main
	// activity stream.
	topic := queue.TopicActivity
	if entity == "reminder" {
		topic = queue.TopicReminder
	}
	if err := e.pub.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	e.log.Debug().
		Str("entity", entity).
		Int64("actorId", actorID).
		Str("type", eventType).
		Msg("Change event published")
	return nil
}
