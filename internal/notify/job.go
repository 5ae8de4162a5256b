// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package notify

import (
	"errors"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Downstream job messages carry only the activity id; the consumer
// reloads the ledger row and resolves recipients itself.
const attrActivityID = "activityId"

// ErrMissingActivityID is returned when a job message carries no usable
// activity id. Such messages can never become well-formed and are
// acknowledged without retry.
var ErrMissingActivityID = errors.New("job carries no activity id")

// EncodeJob builds a queue message for a downstream email or push job.
func EncodeJob(activityID int64) *message.Message {
	msg := message.NewMessage(uuid.New().String(), nil)
	msg.Metadata.Set(attrActivityID, strconv.FormatInt(activityID, 10))
	return msg
}

// DecodeJob extracts the activity id from a downstream job message.
func DecodeJob(msg *message.Message) (int64, error) {
	raw := msg.Metadata.Get(attrActivityID)
	if raw == "" {
		return 0, ErrMissingActivityID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMissingActivityID
	}
	return id, nil
}
