// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by point lookups when the row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrEmptyDSN is returned when Open is called without a connection string.
	ErrEmptyDSN = errors.New("store: empty dsn")
)

// Link scope types for inbox_activities rows.
const (
	InboxTypePublic  = "public"
	InboxTypePrivate = "private"
)

// NewActivity is one ledger row to insert. Data carries the serialized
// change record plus entity context as JSON.
type NewActivity struct {
	Data          []byte
	CreatorID     int64
	RelatedUserID int64 // 0 means none
	Type          string
	CreatedAt     time.Time
}

// InboxLink is one inbox_activities row to insert.
type InboxLink struct {
	ActivityID int64
	InboxID    int64
	TeamID     int64
	Type       string // InboxTypePublic or InboxTypePrivate
	TaskID     int64  // 0 means none
}

// Inbox holds a user's notification destination and preferences.
// Read-only from the pipeline's perspective except for link rows.
type Inbox struct {
	ID           int64
	UserID       int64
	EmailEnabled bool
	PushEnabled  bool
	MutedUntil   time.Time // zero means not muted
}

// Muted reports whether the inbox is muted at the given instant.
func (i Inbox) Muted(now time.Time) bool {
	return !i.MutedUntil.IsZero() && now.Before(i.MutedUntil)
}

// ActivityDetail is a ledger row reloaded with denormalized actor
// display data, used for real-time payloads and notification rendering.
type ActivityDetail struct {
	ID            int64     `json:"id"`
	Data          []byte    `json:"data"`
	CreatorID     int64     `json:"creatorId"`
	CreatorName   string    `json:"creatorName"`
	CreatorAvatar string    `json:"creatorAvatar,omitempty"`
	RelatedUserID int64     `json:"relatedUserId,omitempty"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Recipient is a user resolvable as an email target.
type Recipient struct {
	UserID int64
	Name   string
	Email  string
}

// PushToken is one registered device token for a user.
type PushToken struct {
	UserID int64
	Token  string
}
