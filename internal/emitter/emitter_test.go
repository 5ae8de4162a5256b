// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package emitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relayhub/relayhub/internal/activity"
	"github.com/relayhub/relayhub/internal/queue"
)

type capturedPublish struct {
	Topic string
	Msg   *message.Message
}

type fakePublisher struct {
	published []capturedPublish
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, msg *message.Message) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, capturedPublish{topic, msg})
	return nil
}

func newTestEmitter(pub Publisher) *Emitter {
	e := New(pub)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestEmit_ProjectsToAllowList(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEmitter(pub)

	to := activity.NewSnapshot(
		"id", 5,
		"title", "New",
		"secretInternalScore", 99,
		"teamId", 3,
	)

	if err := e.Emit(context.Background(), "task", nil, to, 1, "task-create"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published = %d, want 1", len(pub.published))
	}
	if pub.published[0].Topic != queue.TopicActivity {
		t.Errorf("topic = %s, want %s", pub.published[0].Topic, queue.TopicActivity)
	}

	ev, err := activity.DecodeMessage(pub.published[0].Msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if _, ok := ev.To.Get("secretInternalScore"); ok {
		t.Error("disallowed field leaked through projection")
	}
	if ev.To.String("title") != "New" {
		t.Errorf("title = %q, want New", ev.To.String("title"))
	}
	if id, _ := ev.To.ID(); id != 5 {
		t.Errorf("id = %d, want 5 (id always survives projection)", id)
	}
}

func TestEmit_RemindersUseReminderTopic(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEmitter(pub)

	to := activity.NewSnapshot("id", 11, "taskId", 5, "teamId", 3, "remindAt", "2026-04-01T09:00:00Z")
	if err := e.Emit(context.Background(), "reminder", nil, to, 1, "reminder-create"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if pub.published[0].Topic != queue.TopicReminder {
		t.Errorf("topic = %s, want %s", pub.published[0].Topic, queue.TopicReminder)
	}
}

func TestEmit_UnknownEntityRejected(t *testing.T) {
	e := newTestEmitter(&fakePublisher{})

	err := e.Emit(context.Background(), "invoice", nil, activity.NewSnapshot("id", 1), 1, "invoice-create")
	if !errors.Is(err, activity.ErrUnknownEntity) {
		t.Errorf("err = %v, want ErrUnknownEntity", err)
	}
}

func TestEmit_NilSnapshotsSignalLifecycle(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEmitter(pub)

	from := activity.NewSnapshot("id", 5, "title", "Gone")
	if err := e.Emit(context.Background(), "task", from, nil, 1, "task-delete"); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	ev, err := activity.DecodeMessage(pub.published[0].Msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if !ev.IsDelete() {
		t.Errorf("event not decoded as pure deletion: from=%v to=%v", ev.From, ev.To)
	}
}

func TestEmit_PublishFailurePropagates(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats unavailable")}
	e := newTestEmitter(pub)

	err := e.Emit(context.Background(), "task", nil, activity.NewSnapshot("id", 5, "title", "x"), 1, "task-create")
	if err == nil {
		t.Fatal("expected publish error to propagate")
	}
}
