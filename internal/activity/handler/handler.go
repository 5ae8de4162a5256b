// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/relayhub/relayhub/internal/activity"
	"github.com/relayhub/relayhub/internal/fanout"
	"github.com/relayhub/relayhub/internal/logging"
	"github.com/relayhub/relayhub/internal/metrics"
	"github.com/relayhub/relayhub/internal/queue"
)

// Entity kinds known to the pipeline.
const (
	KindTask       = "task"
	KindSubtask    = "subtask"
	KindProject    = "project"
	KindMessage    = "message"
	KindAttachment = "attachment"
	KindBook       = "book"
	KindAnnotation = "annotation"
	KindReminder   = "reminder"
)

// Loader provides the authoritative display lookups handlers need to
// build human-readable records (e.g. both list titles for a
// reassignment). Lookup failures are transient: the message is
// redelivered.
type Loader interface {
	TaskTitle(ctx context.Context, taskID int64) (string, error)
	ListTitle(ctx context.Context, listID int64) (string, error)
	BookTitle(ctx context.Context, bookID int64) (string, error)
}

// Sink receives the derived change records for persistence and fan-out.
type Sink interface {
	Apply(ctx context.Context, ev fanout.Event, records []activity.ChangeRecord) error
}

// Handler processes change events for one entity kind.
type Handler interface {
	Kind() string
	Handle(ctx context.Context, ev *activity.ChangeEvent) error
}

// Registry is the closed mapping from entity kind to handler.
type Registry struct {
	handlers map[string]Handler
	stats    queue.Stats
	log      zerolog.Logger
}

// NewRegistry assembles all entity handlers and validates their diff
// policies once at startup.
func NewRegistry(loader Loader, sink Sink) (*Registry, error) {
	handlers := []Handler{
		NewTask(loader, sink),
		NewSubtask(sink),
		NewProject(sink),
		NewMessage(sink),
		NewAttachment(sink),
		NewBook(sink),
		NewAnnotation(loader, sink),
		NewReminder(loader, sink),
	}

	r := &Registry{
		handlers: make(map[string]Handler, len(handlers)),
		log:      logging.With().Str("component", "handler").Logger(),
	}
	for _, h := range handlers {
		if _, dup := r.handlers[h.Kind()]; dup {
			return nil, fmt.Errorf("duplicate handler for kind %q", h.Kind())
		}
		if v, ok := h.(interface{ policy() *activity.Policy }); ok {
			if p := v.policy(); p != nil {
				if err := p.Validate(); err != nil {
					return nil, fmt.Errorf("handler %q: %w", h.Kind(), err)
				}
			}
		}
		r.handlers[h.Kind()] = h
	}
	return r, nil
}

// Known reports whether a kind has a registered handler. Passed to the
// decoder so unknown kinds fail before dispatch.
func (r *Registry) Known(kind string) bool {
	_, ok := r.handlers[kind]
	return ok
}

// Handle dispatches a decoded event to its handler.
func (r *Registry) Handle(ctx context.Context, ev *activity.ChangeEvent) error {
	h, ok := r.handlers[ev.Entity]
	if !ok {
		return fmt.Errorf("%w: %q", activity.ErrUnknownEntity, ev.Entity)
	}
	return h.Handle(ctx, ev)
}

// HandleMessage is the consumer entry point wired into the queue
// router: decode, dispatch, classify. Decode and business errors come
// back permanent (the message is acknowledged); the handlers wrap
// transient store failures as retryable themselves.
func (r *Registry) HandleMessage(msg *message.Message) (err error) {
	start := time.Now()
	r.stats.Received()
	defer func() { r.stats.Observe(err) }()

	ev, err := activity.DecodeMessage(msg, r.Known)
	if err != nil {
		return queue.NewPermanentError("decode change event", err)
	}

	err = r.Handle(msg.Context(), ev)
	metrics.RecordProcessing(queue.TopicActivity, time.Since(start))
	if err != nil {
		return fmt.Errorf("handle %s event: %w", ev.Entity, err)
	}
	return nil
}

// Stats reports the registry's consumer counters.
func (r *Registry) Stats() queue.StatsSnapshot {
	return r.stats.Snapshot()
}

// lifecycleRecord builds the single synthetic record for a pure
// create/delete event.
func lifecycleRecord(kind string, ev *activity.ChangeEvent, label string) []activity.ChangeRecord {
	action := activity.CreateAction(kind)
	if ev.IsDelete() {
		action = activity.DeleteAction(kind)
	}
	return []activity.ChangeRecord{{Action: action, CustomValue: label}}
}

// snapInt reads a numeric field, preferring the after snapshot.
func snapInt(ev *activity.ChangeEvent, key string) int64 {
	if ev.To != nil {
		if v := ev.To.Int64(key); v != 0 {
			return v
		}
	}
	if ev.From != nil {
		return ev.From.Int64(key)
	}
	return 0
}

// snapString reads a string field, preferring the after snapshot.
func snapString(ev *activity.ChangeEvent, key string) string {
	if ev.To != nil {
		if v := ev.To.String(key); v != "" {
			return v
		}
	}
	if ev.From != nil {
		return ev.From.String(key)
	}
	return ""
}
