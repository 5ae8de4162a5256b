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

// Task handles change events for top-level tasks. Beyond the generic
// diff it derives three composite records: the startDate/endDate pair
// collapses into one "dates" change, tagName/tagColor into one "tag"
// change, and a listId change loads both list titles to produce a
// human-readable reassignment.
type Task struct {
	loader Loader
	sink   Sink
	pol    *activity.Policy
}

func NewTask(loader Loader, sink Sink) *Task {
	return &Task{
		loader: loader,
		sink:   sink,
		pol: &activity.Policy{
			Ignore: activity.NewFieldSet(
				"id", "teamId", "bookId", "listId", "parentId",
				"startDate", "endDate", "tagName", "tagColor",
			),
			ValueOnAction: map[activity.Action]activity.FieldSet{
				activity.ActionCreate: activity.NewFieldSet("title", "dueDate", "completedAt", "assigneeId"),
				activity.ActionUpdate: activity.NewFieldSet("title", "dueDate", "completedAt", "assigneeId"),
				activity.ActionDelete: activity.NewFieldSet("title", "dueDate", "assigneeId"),
			},
			AlsoCaptureOldValueOn: activity.NewFieldSet("title", "assigneeId"),
		},
	}
}

func (h *Task) Kind() string { return KindTask }

func (h *Task) policy() *activity.Policy { return h.pol }

func (h *Task) Handle(ctx context.Context, ev *activity.ChangeEvent) error {
	id, err := ev.EntityID()
	if err != nil {
		return err
	}

	var records []activity.ChangeRecord
	if ev.IsCreate() || ev.IsDelete() {
		records = lifecycleRecord(KindTask, ev, snapString(ev, "title"))
	} else {
		records = activity.Compare(ev.From, ev.To, h.pol)
		composites, err := h.composites(ctx, ev)
		if err != nil {
			return err
		}
		records = append(records, composites...)
	}
	if len(records) == 0 {
		return nil
	}

	return h.sink.Apply(ctx, fanout.Event{
		Entity:    KindTask,
		EntityID:  id,
		ActorID:   ev.ActorID,
		Type:      ev.Type,
		CreatedAt: ev.CreatedAt,
		TaskID:    id,
		BookID:    snapInt(ev, "bookId"),
		TeamID:    snapInt(ev, "teamId"),
	}, records)
}

func (h *Task) composites(ctx context.Context, ev *activity.ChangeEvent) ([]activity.ChangeRecord, error) {
	var out []activity.ChangeRecord

	if rec, ok := dateRangeRecord(ev.From, ev.To); ok {
		out = append(out, rec)
	}
	if rec, ok := tagRecord(ev.From, ev.To); ok {
		out = append(out, rec)
	}

	rec, ok, err := h.listReassignment(ctx, ev)
	if err != nil {
		return nil, err
	}
	if ok {
		out = append(out, rec)
	}
	return out, nil
}

// dateRangeRecord collapses the startDate/endDate pair into one change.
func dateRangeRecord(from, to *activity.Snapshot) (activity.ChangeRecord, bool) {
	oldRange := joinRange(from.String("startDate"), from.String("endDate"))
	newRange := joinRange(to.String("startDate"), to.String("endDate"))
	if oldRange == newRange {
		return activity.ChangeRecord{}, false
	}

	rec := activity.ChangeRecord{Column: "dates", Action: activity.ActionUpdate, Value: newRange, AdditionValue: oldRange}
	switch {
	case oldRange == "":
		rec.Action = activity.ActionCreate
		rec.AdditionValue = nil
	case newRange == "":
		rec.Action = activity.ActionDelete
		rec.Value = oldRange
		rec.AdditionValue = nil
	}
	return rec, true
}

func joinRange(start, end string) string {
	if start == "" && end == "" {
		return ""
	}
	return start + " / " + end
}

// tagRecord collapses the tagName/tagColor pair into one change. A
// color-only change still reports the (unchanged) tag name as value.
func tagRecord(from, to *activity.Snapshot) (activity.ChangeRecord, bool) {
	oldName, newName := from.String("tagName"), to.String("tagName")
	oldColor, newColor := from.String("tagColor"), to.String("tagColor")
	if oldName == newName && oldColor == newColor {
		return activity.ChangeRecord{}, false
	}

	rec := activity.ChangeRecord{Column: "tag", Action: activity.ActionUpdate, Value: newName, AdditionValue: oldName}
	switch {
	case oldName == "" && newName != "":
		rec.Action = activity.ActionCreate
		rec.AdditionValue = nil
	case newName == "" && oldName != "":
		rec.Action = activity.ActionDelete
		rec.Value = oldName
		rec.AdditionValue = nil
	case oldName == newName:
		// color-only change
		rec.AdditionValue = nil
	}
	return rec, true
}

// listReassignment loads both lists' display titles to build a
// before/after record for a listId change.
func (h *Task) listReassignment(ctx context.Context, ev *activity.ChangeEvent) (activity.ChangeRecord, bool, error) {
	oldID, newID := ev.From.Int64("listId"), ev.To.Int64("listId")
	if oldID == newID || newID == 0 {
		return activity.ChangeRecord{}, false, nil
	}

	newTitle, err := h.loader.ListTitle(ctx, newID)
	if err != nil {
		return activity.ChangeRecord{}, false, queue.NewRetryableError("load list title", err)
	}
	rec := activity.ChangeRecord{Column: "list", Action: activity.ActionUpdate, Value: newTitle}
	if oldID != 0 {
		oldTitle, err := h.loader.ListTitle(ctx, oldID)
		if err != nil {
			return activity.ChangeRecord{}, false, queue.NewRetryableError("load list title", err)
		}
		rec.AdditionValue = oldTitle
	} else {
		rec.Action = activity.ActionCreate
	}
	return rec, true, nil
}
