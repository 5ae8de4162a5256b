// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"

	"github.com/relayhub/relayhub/internal/queue"
	"github.com/relayhub/relayhub/internal/store"
)

type fakeNotifyStore struct {
	detail   store.ActivityDetail
	audience []int64
	inboxes  []store.Inbox
	recips   []store.Recipient
	tokens   []store.PushToken

	detailErr error
	loadErr   error
}

func (s *fakeNotifyStore) ActivityDetail(_ context.Context, id int64) (store.ActivityDetail, error) {
	if s.detailErr != nil {
		return store.ActivityDetail{}, s.detailErr
	}
	return s.detail, nil
}

func (s *fakeNotifyStore) ActivityAudienceUserIDs(context.Context, int64) ([]int64, error) {
	return s.audience, s.loadErr
}

func (s *fakeNotifyStore) InboxesByUserIDs(context.Context, []int64) ([]store.Inbox, error) {
	return s.inboxes, s.loadErr
}

func (s *fakeNotifyStore) Recipients(_ context.Context, userIDs []int64) ([]store.Recipient, error) {
	var out []store.Recipient
	for _, r := range s.recips {
		for _, id := range userIDs {
			if r.UserID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *fakeNotifyStore) PushTokens(_ context.Context, userIDs []int64) ([]store.PushToken, error) {
	var out []store.PushToken
	for _, t := range s.tokens {
		for _, id := range userIDs {
			if t.UserID == id {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

type fakeEmailProvider struct {
	sent   []store.Recipient
	failTo int64
}

func (p *fakeEmailProvider) Send(_ context.Context, to store.Recipient, _, _ string) error {
	if p.failTo != 0 && to.UserID == p.failTo {
		return errors.New("smtp refused")
	}
	p.sent = append(p.sent, to)
	return nil
}

type fakePushProvider struct {
	sent []store.PushToken
}

func (p *fakePushProvider) Send(_ context.Context, tok store.PushToken, _, _ string) error {
	p.sent = append(p.sent, tok)
	return nil
}

func activityRow(t *testing.T, creatorID int64) store.ActivityDetail {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"entity":      "task",
		"entityId":    5,
		"column":      "title",
		"action":      "update",
		"value":       "New title",
		"customValue": "Old title",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return store.ActivityDetail{
		ID:          12,
		Data:        data,
		CreatorID:   creatorID,
		CreatorName: "Alice",
		Type:        "comment",
		CreatedAt:   time.Now(),
	}
}

func inbox(userID int64, email, push bool) store.Inbox {
	return store.Inbox{ID: userID + 1000, UserID: userID, EmailEnabled: email, PushEnabled: push}
}

func TestEmailConsumer_DecodeErrorIsPermanent(t *testing.T) {
	c := NewEmailConsumer(&fakeNotifyStore{}, &fakeEmailProvider{}, DefaultBreakerConfig("email"))

	msg := message.NewMessage("m1", nil) // no activity id
	err := c.HandleMessage(msg)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := queue.Classify(err); got != queue.StepContinue {
		t.Errorf("Classify = %v, want StepContinue", got)
	}
	if s := c.Stats(); s.Received != 1 || s.Dropped != 1 {
		t.Errorf("stats = %+v, want 1 received / 1 dropped", s)
	}
}

func TestEmailConsumer_ActivityGoneIsPermanent(t *testing.T) {
	st := &fakeNotifyStore{detailErr: store.ErrNotFound}
	c := NewEmailConsumer(st, &fakeEmailProvider{}, DefaultBreakerConfig("email"))

	err := c.HandleMessage(EncodeJob(12))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := queue.Classify(err); got != queue.StepContinue {
		t.Errorf("Classify = %v, want StepContinue", got)
	}
}

func TestEmailConsumer_StoreFailureIsRetryable(t *testing.T) {
	st := &fakeNotifyStore{detailErr: errors.New("connection reset")}
	c := NewEmailConsumer(st, &fakeEmailProvider{}, DefaultBreakerConfig("email"))

	err := c.HandleMessage(EncodeJob(12))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := queue.Classify(err); got != queue.StepTransient {
		t.Errorf("Classify = %v, want StepTransient", got)
	}
	if s := c.Stats(); s.Failed != 1 {
		t.Errorf("stats = %+v, want 1 failed", s)
	}
}

func TestEmailConsumer_PreferenceAndMuteGating(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	muted := inbox(4, true, true)
	muted.MutedUntil = now.Add(time.Hour)

	st := &fakeNotifyStore{
		detail:   activityRow(t, 1),
		audience: []int64{2, 3, 4},
		inboxes: []store.Inbox{
			inbox(2, true, true),
			inbox(3, false, true), // email disabled
			muted,
		},
		recips: []store.Recipient{
			{UserID: 2, Name: "Bob", Email: "bob@example.com"},
			{UserID: 3, Name: "Carol", Email: "carol@example.com"},
			{UserID: 4, Name: "Dave", Email: "dave@example.com"},
		},
	}
	provider := &fakeEmailProvider{}
	c := NewEmailConsumer(st, provider, DefaultBreakerConfig("email"))
	c.now = func() time.Time { return now }

	if err := c.HandleMessage(EncodeJob(12)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(provider.sent) != 1 || provider.sent[0].UserID != 2 {
		t.Errorf("sent = %+v, want only user 2", provider.sent)
	}
}

func TestEmailConsumer_ActorNeverNotified(t *testing.T) {
	st := &fakeNotifyStore{
		detail:   activityRow(t, 2),
		audience: []int64{2},
		inboxes:  []store.Inbox{inbox(2, true, true)},
		recips:   []store.Recipient{{UserID: 2, Email: "bob@example.com"}},
	}
	provider := &fakeEmailProvider{}
	c := NewEmailConsumer(st, provider, DefaultBreakerConfig("email"))

	if err := c.HandleMessage(EncodeJob(12)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(provider.sent) != 0 {
		t.Errorf("actor received a notification: %+v", provider.sent)
	}
}

func TestEmailConsumer_RecipientFailureDoesNotFailJob(t *testing.T) {
	st := &fakeNotifyStore{
		detail:   activityRow(t, 1),
		audience: []int64{2, 3},
		inboxes:  []store.Inbox{inbox(2, true, true), inbox(3, true, true)},
		recips: []store.Recipient{
			{UserID: 2, Email: "bob@example.com"},
			{UserID: 3, Email: "carol@example.com"},
		},
	}
	provider := &fakeEmailProvider{failTo: 2}
	c := NewEmailConsumer(st, provider, DefaultBreakerConfig("email"))

	if err := c.HandleMessage(EncodeJob(12)); err != nil {
		t.Fatalf("HandleMessage returned error despite per-recipient isolation: %v", err)
	}
	if len(provider.sent) != 1 || provider.sent[0].UserID != 3 {
		t.Errorf("sent = %+v, want only user 3", provider.sent)
	}
}

func TestPushConsumer_DeliversPerToken(t *testing.T) {
	st := &fakeNotifyStore{
		detail:   activityRow(t, 1),
		audience: []int64{2},
		inboxes:  []store.Inbox{inbox(2, true, true)},
		tokens: []store.PushToken{
			{UserID: 2, Token: "tok-a"},
			{UserID: 2, Token: "tok-b"},
		},
	}
	provider := &fakePushProvider{}
	c := NewPushConsumer(st, provider, DefaultBreakerConfig("push"))

	if err := c.HandleMessage(EncodeJob(12)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(provider.sent) != 2 {
		t.Errorf("sent %d pushes, want one per token", len(provider.sent))
	}
	if s := c.Stats(); s.Received != 1 || s.Processed != 1 {
		t.Errorf("stats = %+v, want 1 received / 1 processed", s)
	}
}

func TestPushConsumer_PushDisabledSuppresses(t *testing.T) {
	st := &fakeNotifyStore{
		detail:   activityRow(t, 1),
		audience: []int64{2},
		inboxes:  []store.Inbox{inbox(2, true, false)},
		tokens:   []store.PushToken{{UserID: 2, Token: "tok-a"}},
	}
	provider := &fakePushProvider{}
	c := NewPushConsumer(st, provider, DefaultBreakerConfig("push"))

	if err := c.HandleMessage(EncodeJob(12)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(provider.sent) != 0 {
		t.Errorf("sent = %+v, want none", provider.sent)
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := newBreaker(BreakerConfig{
		Name:             "test",
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	})

	boom := errors.New("provider down")
	for i := 0; i < 2; i++ {
		if err := b.do(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	// Breaker is open now; the callback must not run.
	called := false
	err := b.do(func() error { called = true; return nil })
	if err == nil {
		t.Fatal("expected open-state rejection")
	}
	if called {
		t.Error("callback ran while breaker open")
	}
}

func TestRenderActivity(t *testing.T) {
	t.Run("field update", func(t *testing.T) {
		got := renderActivity(activityRow(t, 1))
		if got.Subject != "Task: Old title" {
			t.Errorf("Subject = %q", got.Subject)
		}
		if !strings.Contains(got.Body, "Alice") || !strings.Contains(got.Body, "title") {
			t.Errorf("Body = %q", got.Body)
		}
	})

	t.Run("lifecycle create", func(t *testing.T) {
		data, _ := json.Marshal(map[string]any{
			"entity":      "book",
			"entityId":    8,
			"action":      "book-create",
			"customValue": "Q3 Notes",
		})
		got := renderActivity(store.ActivityDetail{Data: data, CreatorName: "Alice"})
		want := fmt.Sprintf("Alice created book %q.", "Q3 Notes")
		if got.Body != want {
			t.Errorf("Body = %q, want %q", got.Body, want)
		}
	})

	t.Run("unreadable data falls back", func(t *testing.T) {
		got := renderActivity(store.ActivityDetail{Data: []byte("{"), CreatorName: "Alice"})
		if got.Subject != "New activity" {
			t.Errorf("Subject = %q", got.Subject)
		}
	})
}
