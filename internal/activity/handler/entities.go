// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package handler

import (
	"context"

	"github.com/relayhub/relayhub/internal/activity"
	"github.com/relayhub/relayhub/internal/fanout"
	"github.com/relayhub/relayhub/internal/queue"
)

// previewLen bounds the text excerpt used as a descriptive label for
// entities without a title of their own.
const previewLen = 80

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen] + "…"
}

// Project handles change events for documents.
type Project struct {
	sink Sink
	pol  *activity.Policy
}

func NewProject(sink Sink) *Project {
	return &Project{
		sink: sink,
		pol: &activity.Policy{
			Ignore: activity.NewFieldSet("id", "bookId", "teamId"),
			ValueOnAction: map[activity.Action]activity.FieldSet{
				activity.ActionCreate: activity.NewFieldSet("title"),
				activity.ActionUpdate: activity.NewFieldSet("title"),
				activity.ActionDelete: activity.NewFieldSet("title"),
			},
			AlsoCaptureOldValueOn: activity.NewFieldSet("title"),
		},
	}
}

func (h *Project) Kind() string { return KindProject }

func (h *Project) policy() *activity.Policy { return h.pol }

func (h *Project) Handle(ctx context.Context, ev *activity.ChangeEvent) error {
	return handleSimple(ctx, h.sink, ev, h.pol, KindProject, simpleContext{
		label:  snapString(ev, "title"),
		bookID: snapInt(ev, "bookId"),
	})
}

// Message handles change events for chat messages. Messages have no
// title; the content preview rides as the descriptive label.
type Message struct {
	sink Sink
	pol  *activity.Policy
}

func NewMessage(sink Sink) *Message {
	return &Message{
		sink: sink,
		pol: &activity.Policy{
			Ignore: activity.NewFieldSet("id", "bookId", "teamId"),
		},
	}
}

func (h *Message) Kind() string { return KindMessage }

func (h *Message) policy() *activity.Policy { return h.pol }

func (h *Message) Handle(ctx context.Context, ev *activity.ChangeEvent) error {
	pol := *h.pol
	pol.TitleLabel = preview(snapString(ev, "content"))
	return handleSimple(ctx, h.sink, ev, &pol, KindMessage, simpleContext{
		label:  pol.TitleLabel,
		bookID: snapInt(ev, "bookId"),
	})
}

// Attachment handles file attach/detach events. The interesting cases
// are lifecycle; a rename surfaces as a fileName update.
type Attachment struct {
	sink Sink
	pol  *activity.Policy
}

func NewAttachment(sink Sink) *Attachment {
	return &Attachment{
		sink: sink,
		pol: &activity.Policy{
			Ignore: activity.NewFieldSet("id", "taskId", "bookId", "teamId", "size", "contentType"),
			ValueOnAction: map[activity.Action]activity.FieldSet{
				activity.ActionCreate: activity.NewFieldSet("fileName"),
				activity.ActionUpdate: activity.NewFieldSet("fileName"),
				activity.ActionDelete: activity.NewFieldSet("fileName"),
			},
			AlsoCaptureOldValueOn: activity.NewFieldSet("fileName"),
		},
	}
}

func (h *Attachment) Kind() string { return KindAttachment }

func (h *Attachment) policy() *activity.Policy { return h.pol }

func (h *Attachment) Handle(ctx context.Context, ev *activity.ChangeEvent) error {
	return handleSimple(ctx, h.sink, ev, h.pol, KindAttachment, simpleContext{
		label:  snapString(ev, "fileName"),
		taskID: snapInt(ev, "taskId"),
		bookID: snapInt(ev, "bookId"),
	})
}

// Book handles change events for workspaces themselves.
type Book struct {
	sink Sink
	pol  *activity.Policy
}

func NewBook(sink Sink) *Book {
	return &Book{
		sink: sink,
		pol: &activity.Policy{
			Ignore: activity.NewFieldSet("id", "teamId", "ownerId"),
			ValueOnAction: map[activity.Action]activity.FieldSet{
				activity.ActionCreate: activity.NewFieldSet("title"),
				activity.ActionUpdate: activity.NewFieldSet("title"),
				activity.ActionDelete: activity.NewFieldSet("title"),
			},
			AlsoCaptureOldValueOn: activity.NewFieldSet("title"),
		},
	}
}

func (h *Book) Kind() string { return KindBook }

func (h *Book) policy() *activity.Policy { return h.pol }

func (h *Book) Handle(ctx context.Context, ev *activity.ChangeEvent) error {
	id, err := ev.EntityID()
	if err != nil {
		return err
	}
	return handleSimpleWithID(ctx, h.sink, ev, h.pol, KindBook, id, simpleContext{
		label:  snapString(ev, "title"),
		bookID: id,
	})
}

// Annotation handles inline comments on documents.
type Annotation struct {
	loader Loader
	sink   Sink
	pol    *activity.Policy
}

func NewAnnotation(loader Loader, sink Sink) *Annotation {
	return &Annotation{
		loader: loader,
		sink:   sink,
		pol: &activity.Policy{
			Ignore: activity.NewFieldSet("id", "projectId", "bookId", "teamId"),
			ValueOnAction: map[activity.Action]activity.FieldSet{
				activity.ActionCreate: activity.NewFieldSet("resolved"),
				activity.ActionUpdate: activity.NewFieldSet("resolved"),
				activity.ActionDelete: activity.NewFieldSet("resolved"),
			},
		},
	}
}

func (h *Annotation) Kind() string { return KindAnnotation }

func (h *Annotation) policy() *activity.Policy { return h.pol }

func (h *Annotation) Handle(ctx context.Context, ev *activity.ChangeEvent) error {
	pol := *h.pol
	pol.TitleLabel = preview(snapString(ev, "content"))
	bookID := snapInt(ev, "bookId")
	// Highlights carry no text of their own; label them with the
	// workspace title instead.
	if pol.TitleLabel == "" && bookID != 0 {
		title, err := h.loader.BookTitle(ctx, bookID)
		if err != nil {
			return queue.NewRetryableError("load workspace title", err)
		}
		pol.TitleLabel = title
	}
	return handleSimple(ctx, h.sink, ev, &pol, KindAnnotation, simpleContext{
		label:  pol.TitleLabel,
		bookID: bookID,
	})
}

// Reminder handles task reminder changes; the reminder queue feeds the
// same pipeline as every other entity.
type Reminder struct {
	loader Loader
	sink   Sink
	pol    *activity.Policy
}

func NewReminder(loader Loader, sink Sink) *Reminder {
	return &Reminder{
		loader: loader,
		sink:   sink,
		pol: &activity.Policy{
			Ignore: activity.NewFieldSet("id", "taskId", "bookId", "teamId"),
			ValueOnAction: map[activity.Action]activity.FieldSet{
				activity.ActionCreate: activity.NewFieldSet("remindAt"),
				activity.ActionUpdate: activity.NewFieldSet("remindAt"),
				activity.ActionDelete: activity.NewFieldSet("remindAt"),
			},
			AlsoCaptureOldValueOn: activity.NewFieldSet("remindAt"),
		},
	}
}

func (h *Reminder) Kind() string { return KindReminder }

func (h *Reminder) policy() *activity.Policy { return h.pol }

func (h *Reminder) Handle(ctx context.Context, ev *activity.ChangeEvent) error {
	taskID := snapInt(ev, "taskId")
	// A reminder reads as "reminder on <task>", not as a raw timestamp.
	label := snapString(ev, "remindAt")
	if taskID != 0 {
		title, err := h.loader.TaskTitle(ctx, taskID)
		if err != nil {
			return queue.NewRetryableError("load task title", err)
		}
		if title != "" {
			label = title
		}
	}
	return handleSimple(ctx, h.sink, ev, h.pol, KindReminder, simpleContext{
		label:  label,
		taskID: taskID,
		bookID: snapInt(ev, "bookId"),
	})
}

// simpleContext captures the shared fan-out context of the entities
// without composite rules.
type simpleContext struct {
	label  string
	taskID int64
	bookID int64
}

func handleSimple(ctx context.Context, sink Sink, ev *activity.ChangeEvent, pol *activity.Policy, kind string, sc simpleContext) error {
	id, err := ev.EntityID()
	if err != nil {
		return err
	}
	return handleSimpleWithID(ctx, sink, ev, pol, kind, id, sc)
}

func handleSimpleWithID(ctx context.Context, sink Sink, ev *activity.ChangeEvent, pol *activity.Policy, kind string, id int64, sc simpleContext) error {
	var records []activity.ChangeRecord
	if ev.IsCreate() || ev.IsDelete() {
		records = lifecycleRecord(kind, ev, sc.label)
	} else {
		records = activity.Compare(ev.From, ev.To, pol)
	}
	if len(records) == 0 {
		return nil
	}

	return sink.Apply(ctx, fanout.Event{
		Entity:    kind,
		EntityID:  id,
		ActorID:   ev.ActorID,
		Type:      ev.Type,
		CreatedAt: ev.CreatedAt,
		TaskID:    sc.taskID,
		BookID:    sc.bookID,
		TeamID:    snapInt(ev, "teamId"),
	}, records)
}
