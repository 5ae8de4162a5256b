// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package activity

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeDecodeMessage(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	event := &ChangeEvent{
		Entity:    "task",
		From:      NewSnapshot("id", 5, "title", "Old"),
		To:        NewSnapshot("id", 5, "title", "New"),
		ActorID:   7,
		Type:      "update",
		CreatedAt: created,
	}

	msg, err := EncodeMessage(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if msg.Metadata.Get(AttrEntity) != "task" {
		t.Errorf("expected entity attribute, got %q", msg.Metadata.Get(AttrEntity))
	}
	if msg.Metadata.Get(AttrCreatorID) != "7" {
		t.Errorf("expected creatorId attribute, got %q", msg.Metadata.Get(AttrCreatorID))
	}

	decoded, err := DecodeMessage(msg, func(kind string) bool { return kind == "task" })
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ActorID != 7 || decoded.Type != "update" {
		t.Errorf("decoded event mismatch: %+v", decoded)
	}
	if !decoded.CreatedAt.Equal(created) {
		t.Errorf("expected createdAt %v, got %v", created, decoded.CreatedAt)
	}
	if decoded.To.String("title") != "New" || decoded.From.String("title") != "Old" {
		t.Errorf("snapshots not round-tripped: %+v", decoded)
	}
}

func TestEncodeMessage_PureCreate(t *testing.T) {
	event := &ChangeEvent{
		Entity:    "task",
		To:        NewSnapshot("id", 5, "title", "New"),
		ActorID:   7,
		Type:      "create",
		CreatedAt: time.Now().UTC(),
	}
	msg, err := EncodeMessage(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if msg.Metadata.Get(AttrFrom) != "" {
		t.Errorf("expected empty from attribute, got %q", msg.Metadata.Get(AttrFrom))
	}

	decoded, err := DecodeMessage(msg, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.IsCreate() {
		t.Error("expected pure-create event")
	}
}

func TestDecodeMessage_UnknownEntity(t *testing.T) {
	event := &ChangeEvent{
		Entity:    "meteor",
		To:        NewSnapshot("id", 1),
		ActorID:   1,
		CreatedAt: time.Now(),
	}
	msg, err := EncodeMessage(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeMessage(msg, func(kind string) bool { return kind == "task" })
	if !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestChangeEvent_EntityID(t *testing.T) {
	t.Run("prefers to", func(t *testing.T) {
		e := &ChangeEvent{From: NewSnapshot("id", 1), To: NewSnapshot("id", 2)}
		id, err := e.EntityID()
		if err != nil || id != 2 {
			t.Errorf("expected id=2, got %d, %v", id, err)
		}
	})

	t.Run("falls back to from", func(t *testing.T) {
		e := &ChangeEvent{From: NewSnapshot("id", 1)}
		id, err := e.EntityID()
		if err != nil || id != 1 {
			t.Errorf("expected id=1, got %d, %v", id, err)
		}
	})

	t.Run("missing everywhere", func(t *testing.T) {
		e := &ChangeEvent{To: NewSnapshot("title", "x")}
		if _, err := e.EntityID(); !errors.Is(err, ErrMissingID) {
			t.Errorf("expected ErrMissingID, got %v", err)
		}
	})
}

func TestChangeEvent_Validate(t *testing.T) {
	base := func() *ChangeEvent {
		return &ChangeEvent{Entity: "task", To: NewSnapshot("id", 1), ActorID: 2}
	}

	if err := base().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	e := base()
	e.To = nil
	if !errors.Is(e.Validate(), ErrEmptyEvent) {
		t.Error("expected ErrEmptyEvent")
	}

	e = base()
	e.ActorID = 0
	if !errors.Is(e.Validate(), ErrMissingActor) {
		t.Error("expected ErrMissingActor")
	}
}
