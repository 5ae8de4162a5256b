// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package store

import (
	"strings"
	"testing"
	"time"
)

func TestInsertActivitiesQuery(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	activities := []NewActivity{
		{Data: []byte(`{"a":1}`), CreatorID: 7, Type: "task-update", CreatedAt: now},
		{Data: []byte(`{"b":2}`), CreatorID: 7, RelatedUserID: 9, Type: "task-update", CreatedAt: now},
	}

	query, args := insertActivitiesQuery(activities)

	if !strings.HasPrefix(query, "INSERT INTO activities") {
		t.Fatalf("unexpected query: %s", query)
	}
	if !strings.Contains(query, "($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10)") {
		t.Errorf("placeholder numbering wrong: %s", query)
	}
	if !strings.HasSuffix(query, "RETURNING id") {
		t.Errorf("missing RETURNING clause: %s", query)
	}
	if len(args) != 10 {
		t.Fatalf("args = %d, want 10", len(args))
	}
	if args[2] != nil {
		t.Errorf("zero related user should bind NULL, got %v", args[2])
	}
	if args[7] != int64(9) {
		t.Errorf("related user = %v, want 9", args[7])
	}
}

func TestInsertContextLinksQuery(t *testing.T) {
	query, args := insertContextLinksQuery("task_activities", "task_id", []int64{10, 11, 12}, 5, 3)

	if !strings.Contains(query, "INSERT INTO task_activities (activity_id, task_id, team_id)") {
		t.Errorf("unexpected query: %s", query)
	}
	if !strings.Contains(query, "($7, $8, $9)") {
		t.Errorf("third tuple placeholders wrong: %s", query)
	}
	if len(args) != 9 {
		t.Fatalf("args = %d, want 9", len(args))
	}
	if args[0] != int64(10) || args[1] != int64(5) || args[2] != int64(3) {
		t.Errorf("first tuple args wrong: %v", args[:3])
	}
}

func TestInsertInboxLinksQuery(t *testing.T) {
	links := []InboxLink{
		{ActivityID: 10, InboxID: 100, TeamID: 3, Type: InboxTypePublic},
		{ActivityID: 10, InboxID: 101, TeamID: 3, Type: InboxTypePrivate, TaskID: 5},
	}

	query, args := insertInboxLinksQuery(links)

	if !strings.Contains(query, "inbox_activities") {
		t.Errorf("unexpected query: %s", query)
	}
	if len(args) != 10 {
		t.Fatalf("args = %d, want 10", len(args))
	}
	if args[4] != nil {
		t.Errorf("public link task id should bind NULL, got %v", args[4])
	}
	if args[9] != int64(5) {
		t.Errorf("private link task id = %v, want 5", args[9])
	}
	if args[3] != InboxTypePublic || args[8] != InboxTypePrivate {
		t.Errorf("link types wrong: %v %v", args[3], args[8])
	}
}

func TestInboxMuted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("zero muted until is not muted", func(t *testing.T) {
		if (Inbox{}).Muted(now) {
			t.Error("unmuted inbox reported muted")
		}
	})

	t.Run("future muted until is muted", func(t *testing.T) {
		ib := Inbox{MutedUntil: now.Add(time.Hour)}
		if !ib.Muted(now) {
			t.Error("muted inbox reported unmuted")
		}
	})

	t.Run("expired mute is not muted", func(t *testing.T) {
		ib := Inbox{MutedUntil: now.Add(-time.Hour)}
		if ib.Muted(now) {
			t.Error("expired mute still reported muted")
		}
	})
}
