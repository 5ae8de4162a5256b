// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package fanout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relayhub/relayhub/internal/activity"
	"github.com/relayhub/relayhub/internal/queue"
	"github.com/relayhub/relayhub/internal/store"
)

// fakeStore stages writes inside InTx and commits them only when the
// transaction function returns nil, mirroring real transaction
// semantics.
type fakeStore struct {
	members     map[int64][]int64
	subscribers map[int64][]int64
	inboxes     map[int64]store.Inbox

	activities []store.NewActivity
	taskLinks  []store.InboxLink // reuse shape: ActivityID+TaskID+TeamID
	bookLinks  int
	inboxLinks []store.InboxLink

	failMembers      error
	failInboxLoad    error
	failInboxInsert  error
	shortInboxInsert bool

	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:     map[int64][]int64{},
		subscribers: map[int64][]int64{},
		inboxes:     map[int64]store.Inbox{},
	}
}

func (f *fakeStore) addInbox(userID int64) {
	f.inboxes[userID] = store.Inbox{ID: userID + 1000, UserID: userID, EmailEnabled: true, PushEnabled: true}
}

func (f *fakeStore) InTx(_ context.Context, fn func(tx store.Tx) error) error {
	tx := &fakeTx{store: f, nextID: f.nextID}
	if err := fn(tx); err != nil {
		return err
	}
	f.nextID = tx.nextID
	f.activities = append(f.activities, tx.activities...)
	f.taskLinks = append(f.taskLinks, tx.taskLinks...)
	f.bookLinks += tx.bookLinks
	f.inboxLinks = append(f.inboxLinks, tx.inboxLinks...)
	return nil
}

func (f *fakeStore) TeamMemberIDs(_ context.Context, teamID int64) ([]int64, error) {
	if f.failMembers != nil {
		return nil, f.failMembers
	}
	return f.members[teamID], nil
}

func (f *fakeStore) TaskSubscriberIDs(_ context.Context, taskID int64) ([]int64, error) {
	return f.subscribers[taskID], nil
}

func (f *fakeStore) InboxesByUserIDs(_ context.Context, userIDs []int64) ([]store.Inbox, error) {
	if f.failInboxLoad != nil {
		return nil, f.failInboxLoad
	}
	var out []store.Inbox
	for _, id := range userIDs {
		if ib, ok := f.inboxes[id]; ok {
			out = append(out, ib)
		}
	}
	return out, nil
}

func (f *fakeStore) ActivityDetails(_ context.Context, ids []int64) ([]store.ActivityDetail, error) {
	out := make([]store.ActivityDetail, 0, len(ids))
	for _, id := range ids {
		out = append(out, store.ActivityDetail{ID: id, CreatorName: "Actor"})
	}
	return out, nil
}

type fakeTx struct {
	store  *fakeStore
	nextID int64

	activities []store.NewActivity
	taskLinks  []store.InboxLink
	bookLinks  int
	inboxLinks []store.InboxLink
}

func (t *fakeTx) InsertActivities(_ context.Context, activities []store.NewActivity) ([]int64, error) {
	ids := make([]int64, 0, len(activities))
	for range activities {
		t.nextID++
		ids = append(ids, t.nextID)
	}
	t.activities = append(t.activities, activities...)
	return ids, nil
}

func (t *fakeTx) InsertTaskLinks(_ context.Context, activityIDs []int64, taskID, teamID int64) (int64, error) {
	for _, id := range activityIDs {
		t.taskLinks = append(t.taskLinks, store.InboxLink{ActivityID: id, TaskID: taskID, TeamID: teamID})
	}
	return int64(len(activityIDs)), nil
}

func (t *fakeTx) InsertBookLinks(_ context.Context, activityIDs []int64, _, _ int64) (int64, error) {
	t.bookLinks += len(activityIDs)
	return int64(len(activityIDs)), nil
}

func (t *fakeTx) InsertInboxLinks(_ context.Context, links []store.InboxLink) (int64, error) {
	if t.store.failInboxInsert != nil {
		return 0, t.store.failInboxInsert
	}
	if t.store.shortInboxInsert {
		return int64(len(links)) - 1, nil
	}
	t.inboxLinks = append(t.inboxLinks, links...)
	return int64(len(links)), nil
}

type fakeNotifier struct {
	notified []struct {
		UserID int64
		Name   string
	}
}

func (n *fakeNotifier) Notify(_ context.Context, userID int64, name string, _ any) error {
	n.notified = append(n.notified, struct {
		UserID int64
		Name   string
	}{userID, name})
	return nil
}

type fakeJobs struct {
	published []string // topics in publish order
}

func (j *fakeJobs) Publish(_ context.Context, topic string, _ *message.Message) error {
	j.published = append(j.published, topic)
	return nil
}

func testEvent() Event {
	return Event{
		Entity:    "task",
		EntityID:  5,
		ActorID:   1,
		Type:      "task-update",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TaskID:    5,
		TeamID:    3,
	}
}

func titleUpdate() []activity.ChangeRecord {
	return []activity.ChangeRecord{
		{Column: "title", Action: activity.ActionUpdate, Value: "New", AdditionValue: "Old"},
	}
}

func TestApply_EmptyRecordsIsNoop(t *testing.T) {
	fs := newFakeStore()
	svc := New(fs, &fakeNotifier{}, &fakeJobs{}, DefaultTriggers())

	if err := svc.Apply(context.Background(), testEvent(), nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(fs.activities) != 0 {
		t.Errorf("no-op wrote %d activities", len(fs.activities))
	}
}

func TestApply_FanoutAtomicity(t *testing.T) {
	fs := newFakeStore()
	fs.members[3] = []int64{1, 2, 3}
	fs.addInbox(2)
	fs.addInbox(3)
	fs.failInboxInsert = errors.New("constraint violation")

	svc := New(fs, &fakeNotifier{}, &fakeJobs{}, DefaultTriggers())
	records := []activity.ChangeRecord{
		{Column: "title", Action: activity.ActionUpdate, Value: "New"},
		{Column: "dueDate", Action: activity.ActionCreate, Value: "2026-04-01"},
	}

	err := svc.Apply(context.Background(), testEvent(), records)
	if err == nil {
		t.Fatal("expected error from failing link insert")
	}
	if len(fs.activities) != 0 || len(fs.taskLinks) != 0 || len(fs.inboxLinks) != 0 {
		t.Errorf("partial fan-out committed: %d activities, %d task links, %d inbox links",
			len(fs.activities), len(fs.taskLinks), len(fs.inboxLinks))
	}
}

func TestApply_RowCountMismatchAborts(t *testing.T) {
	fs := newFakeStore()
	fs.members[3] = []int64{1, 2}
	fs.addInbox(2)
	fs.shortInboxInsert = true

	svc := New(fs, &fakeNotifier{}, &fakeJobs{}, DefaultTriggers())

	err := svc.Apply(context.Background(), testEvent(), titleUpdate())
	if !errors.Is(err, ErrPartialFanout) {
		t.Fatalf("err = %v, want ErrPartialFanout", err)
	}
	if len(fs.activities) != 0 {
		t.Errorf("mismatched fan-out committed %d activities", len(fs.activities))
	}
	// Redelivering a mismatched event would only abort again, so the
	// message is acknowledged rather than retried.
	if got := queue.Classify(err); got != queue.StepContinue {
		t.Errorf("Classify = %v, want StepContinue", got)
	}
}

func TestApply_StoreOutageIsRetryable(t *testing.T) {
	outage := errors.New("dial tcp 127.0.0.1:5432: connection refused")

	cases := []struct {
		name  string
		inject func(fs *fakeStore)
	}{
		{"member load", func(fs *fakeStore) { fs.failMembers = outage }},
		{"inbox load", func(fs *fakeStore) { fs.failInboxLoad = outage }},
		{"link insert", func(fs *fakeStore) { fs.failInboxInsert = outage }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := newFakeStore()
			fs.members[3] = []int64{1, 2}
			fs.addInbox(2)
			tc.inject(fs)

			svc := New(fs, &fakeNotifier{}, &fakeJobs{}, DefaultTriggers())
			err := svc.Apply(context.Background(), testEvent(), titleUpdate())
			if !errors.Is(err, outage) {
				t.Fatalf("err = %v, want wrapped outage", err)
			}
			if got := queue.Classify(err); got != queue.StepTransient {
				t.Errorf("Classify = %v, want StepTransient (redeliver)", got)
			}
		})
	}
}

func TestApply_SelfExclusion(t *testing.T) {
	fs := newFakeStore()
	fs.members[3] = []int64{1, 2}
	fs.subscribers[5] = []int64{1}
	fs.addInbox(1)
	fs.addInbox(2)
	notifier := &fakeNotifier{}

	svc := New(fs, notifier, &fakeJobs{}, DefaultTriggers())
	if err := svc.Apply(context.Background(), testEvent(), titleUpdate()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for _, l := range fs.inboxLinks {
		if l.InboxID == fs.inboxes[1].ID {
			t.Errorf("actor received inbox link: %+v", l)
		}
	}
	for _, n := range notifier.notified {
		if n.UserID == 1 {
			t.Error("actor received real-time notification")
		}
	}
}

func TestApply_AudienceCorrectness(t *testing.T) {
	// Workspace members {1,2,3,4}; only 3 subscribes to the task; 1 acts.
	fs := newFakeStore()
	fs.members[3] = []int64{1, 2, 3, 4}
	fs.subscribers[5] = []int64{3}
	for _, id := range []int64{1, 2, 3, 4} {
		fs.addInbox(id)
	}
	notifier := &fakeNotifier{}

	svc := New(fs, notifier, &fakeJobs{}, DefaultTriggers())
	if err := svc.Apply(context.Background(), testEvent(), titleUpdate()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var private, public []int64
	for _, l := range fs.inboxLinks {
		userID := l.InboxID - 1000
		switch l.Type {
		case store.InboxTypePrivate:
			private = append(private, userID)
		case store.InboxTypePublic:
			public = append(public, userID)
		}
	}

	if len(private) != 1 || private[0] != 3 {
		t.Errorf("private entries = %v, want [3]", private)
	}
	if len(public) != 3 {
		t.Errorf("public entries = %v, want users 2,3,4", public)
	}
	for _, id := range public {
		if id == 1 {
			t.Error("actor received public entry")
		}
	}

	// Real-time: each of 2,3,4 exactly once for the single activity.
	counts := map[int64]int{}
	for _, n := range notifier.notified {
		counts[n.UserID]++
	}
	for _, id := range []int64{2, 3, 4} {
		if counts[id] != 1 {
			t.Errorf("user %d notified %d times, want 1", id, counts[id])
		}
	}
}

func TestApply_TriggerGating(t *testing.T) {
	run := func(t *testing.T, ev Event, rec activity.ChangeRecord, wantTopics []string) {
		t.Helper()
		fs := newFakeStore()
		fs.members[3] = []int64{1, 2}
		fs.addInbox(2)
		jobs := &fakeJobs{}

		svc := New(fs, nil, jobs, DefaultTriggers())
		if err := svc.Apply(context.Background(), ev, []activity.ChangeRecord{rec}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if len(jobs.published) != len(wantTopics) {
			t.Fatalf("published %v, want %v", jobs.published, wantTopics)
		}
		for i, topic := range wantTopics {
			if jobs.published[i] != topic {
				t.Errorf("published[%d] = %s, want %s", i, jobs.published[i], topic)
			}
		}
	}

	t.Run("title triggers email and push", func(t *testing.T) {
		run(t, testEvent(),
			activity.ChangeRecord{Column: "title", Action: activity.ActionUpdate, Value: "New"},
			[]string{queue.TopicEmail, queue.TopicPush})
	})

	t.Run("tag triggers push only", func(t *testing.T) {
		run(t, testEvent(),
			activity.ChangeRecord{Column: "tag", Action: activity.ActionUpdate, Value: "urgent"},
			[]string{queue.TopicPush})
	})

	t.Run("unlisted column triggers neither", func(t *testing.T) {
		run(t, testEvent(),
			activity.ChangeRecord{Column: "description", Action: activity.ActionUpdate},
			nil)
	})

	t.Run("lifecycle record triggers neither", func(t *testing.T) {
		run(t, testEvent(),
			activity.ChangeRecord{Action: activity.CreateAction("task"), CustomValue: "New task"},
			nil)
	})

	t.Run("subtask origin suppresses downstream", func(t *testing.T) {
		ev := testEvent()
		ev.SubtaskID = 9
		run(t, ev,
			activity.ChangeRecord{Column: "title", Action: activity.ActionUpdate, Value: "New"},
			nil)
	})
}

func TestApply_DuplicateDeliveryWritesTwice(t *testing.T) {
	// At-least-once: the same event processed twice yields two ledger
	// rows. Downstream consumers must tolerate duplicates.
	fs := newFakeStore()
	fs.members[3] = []int64{1, 2}
	fs.addInbox(2)

	svc := New(fs, nil, nil, DefaultTriggers())
	for i := 0; i < 2; i++ {
		if err := svc.Apply(context.Background(), testEvent(), titleUpdate()); err != nil {
			t.Fatalf("Apply #%d: %v", i+1, err)
		}
	}

	if len(fs.activities) != 2 {
		t.Errorf("activities = %d, want 2", len(fs.activities))
	}
}

func TestApply_PersonalWorkspaceDoesNotFanOut(t *testing.T) {
	fs := newFakeStore()
	notifier := &fakeNotifier{}

	ev := testEvent()
	ev.TeamID = 0

	svc := New(fs, notifier, nil, DefaultTriggers())
	if err := svc.Apply(context.Background(), ev, titleUpdate()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(fs.activities) != 1 {
		t.Errorf("ledger rows = %d, want 1", len(fs.activities))
	}
	if len(fs.inboxLinks) != 0 {
		t.Errorf("personal workspace produced %d inbox links", len(fs.inboxLinks))
	}
	if len(notifier.notified) != 0 {
		t.Errorf("personal workspace produced %d notifications", len(notifier.notified))
	}
}
