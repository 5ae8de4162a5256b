// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/relayhub/relayhub/internal/activity"
	"github.com/relayhub/relayhub/internal/fanout"
)

// ErrNotSubtask is returned for a subtask event whose snapshots carry
// no parent task id. A business error: logged, acknowledged, never
// retried.
var ErrNotSubtask = errors.New("subtask event has no parent task id")

// Subtask rolls sub-task changes up onto the parent task's activity
// stream. Subtasks have no inbox of their own: the records carry the
// subtask's title as a marker, the fan-out context points at the
// parent, and downstream email/push is suppressed.
type Subtask struct {
	sink Sink
	pol  *activity.Policy
}

func NewSubtask(sink Sink) *Subtask {
	return &Subtask{
		sink: sink,
		pol: &activity.Policy{
			Ignore: activity.NewFieldSet("id", "teamId", "bookId", "parentId"),
			ValueOnAction: map[activity.Action]activity.FieldSet{
				activity.ActionCreate: activity.NewFieldSet("title", "completedAt"),
				activity.ActionUpdate: activity.NewFieldSet("title", "completedAt"),
				activity.ActionDelete: activity.NewFieldSet("title"),
			},
			AlsoCaptureOldValueOn: activity.NewFieldSet("title"),
		},
	}
}

func (h *Subtask) Kind() string { return KindSubtask }

func (h *Subtask) policy() *activity.Policy { return h.pol }

func (h *Subtask) Handle(ctx context.Context, ev *activity.ChangeEvent) error {
	id, err := ev.EntityID()
	if err != nil {
		return err
	}
	parentID := snapInt(ev, "parentId")
	if parentID == 0 {
		return fmt.Errorf("subtask %d: %w", id, ErrNotSubtask)
	}
	title := snapString(ev, "title")

	var records []activity.ChangeRecord
	if ev.IsCreate() || ev.IsDelete() {
		records = lifecycleRecord(KindSubtask, ev, title)
	} else {
		pol := *h.pol
		pol.TitleLabel = title
		records = activity.Compare(ev.From, ev.To, &pol)
	}
	if len(records) == 0 {
		return nil
	}

	return h.sink.Apply(ctx, fanout.Event{
		Entity:    KindTask,
		EntityID:  parentID,
		ActorID:   ev.ActorID,
		Type:      ev.Type,
		CreatedAt: ev.CreatedAt,
		TaskID:    parentID,
		BookID:    snapInt(ev, "bookId"),
		TeamID:    snapInt(ev, "teamId"),
		SubtaskID: id,
	}, records)
}
