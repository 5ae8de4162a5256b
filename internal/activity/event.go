// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package activity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Message metadata keys for the activity queue wire format.
//
// The structured fields ride in metadata so consumers can dispatch on
// entity kind without a body parse step. The from/to attributes are
// JSON documents, or empty for pure creation/deletion.
const (
	AttrFrom      = "from"
	AttrTo        = "to"
	AttrCreatedAt = "createdAt"
	AttrType      = "type"
	AttrEntity    = "entity"
	AttrCreatorID = "creatorId"
)

// Sentinel decode/validation errors.
var (
	ErrUnknownEntity = errors.New("unknown entity kind")
	ErrEmptyEvent    = errors.New("event carries neither from nor to snapshot")
	ErrMissingActor  = errors.New("event carries no actor id")
)

// ChangeEvent is one "entity changed" notification on the wire.
//
// From and To are partial snapshots restricted by the emitter to a
// per-entity allow-list of fields. Either may be nil to signal pure
// creation or pure deletion; never both.
type ChangeEvent struct {
	Entity    string
	From      *Snapshot
	To        *Snapshot
	ActorID   int64
	Type      string
	CreatedAt time.Time
}

// Validate checks the structural invariants of an event.
func (e *ChangeEvent) Validate() error {
	if e.Entity == "" {
		return fmt.Errorf("%w: empty kind", ErrUnknownEntity)
	}
	if e.From == nil && e.To == nil {
		return ErrEmptyEvent
	}
	if e.ActorID == 0 {
		return ErrMissingActor
	}
	return nil
}

// EntityID recovers the stable entity identifier, preferring the after
// snapshot. Fails with ErrMissingID when neither snapshot carries one.
func (e *ChangeEvent) EntityID() (int64, error) {
	if e.To != nil {
		if id, err := e.To.ID(); err == nil {
			return id, nil
		}
	}
	if e.From != nil {
		if id, err := e.From.ID(); err == nil {
			return id, nil
		}
	}
	return 0, ErrMissingID
}

// IsCreate reports a pure-creation event.
func (e *ChangeEvent) IsCreate() bool { return e.From == nil && e.To != nil }

// IsDelete reports a pure-deletion event.
func (e *ChangeEvent) IsDelete() bool { return e.From != nil && e.To == nil }

// EncodeMessage serializes the event onto a queue message. The payload
// stays empty; all fields travel as metadata attributes.
func EncodeMessage(e *ChangeEvent) (*message.Message, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	msg := message.NewMessage(uuid.New().String(), nil)
	msg.Metadata.Set(AttrEntity, e.Entity)
	msg.Metadata.Set(AttrType, e.Type)
	msg.Metadata.Set(AttrCreatorID, strconv.FormatInt(e.ActorID, 10))
	msg.Metadata.Set(AttrCreatedAt, e.CreatedAt.UTC().Format(time.RFC3339Nano))

	for _, part := range []struct {
		key  string
		snap *Snapshot
	}{{AttrFrom, e.From}, {AttrTo, e.To}} {
		if part.snap == nil {
			msg.Metadata.Set(part.key, "")
			continue
		}
		data, err := part.snap.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode %s snapshot: %w", part.key, err)
		}
		msg.Metadata.Set(part.key, string(data))
	}

	return msg, nil
}

// DecodeMessage parses the event out of a queue message's metadata.
// knownEntity rejects unrecognized kinds at decode time, before any
// handler dispatch happens.
func DecodeMessage(msg *message.Message, knownEntity func(string) bool) (*ChangeEvent, error) {
	entity := msg.Metadata.Get(AttrEntity)
	if entity == "" || (knownEntity != nil && !knownEntity(entity)) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}

	actorID, err := strconv.ParseInt(msg.Metadata.Get(AttrCreatorID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", AttrCreatorID, err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, msg.Metadata.Get(AttrCreatedAt))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", AttrCreatedAt, err)
	}

	from, err := ParseSnapshot([]byte(msg.Metadata.Get(AttrFrom)))
	if err != nil {
		return nil, fmt.Errorf("parse %s snapshot: %w", AttrFrom, err)
	}
	to, err := ParseSnapshot([]byte(msg.Metadata.Get(AttrTo)))
	if err != nil {
		return nil, fmt.Errorf("parse %s snapshot: %w", AttrTo, err)
	}

	event := &ChangeEvent{
		Entity:    entity,
		From:      from,
		To:        to,
		ActorID:   actorID,
		Type:      msg.Metadata.Get(AttrType),
		CreatedAt: createdAt,
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}
