// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package fanout

import (
	"github.com/relayhub/relayhub/internal/activity"
)

// Triggers holds the fixed column allow-lists that gate downstream
// email and push jobs. A change record whose column is absent from a
// list never enqueues the corresponding job; lifecycle records
// (empty column) never trigger either.
type Triggers struct {
	Email activity.FieldSet
	Push  activity.FieldSet
}

// DefaultTriggers returns the production allow-lists. Title changes
// notify on both channels; assignment and due-date changes are loud
// enough for email; the composite tag change is push-only.
func DefaultTriggers() Triggers {
	return Triggers{
		Email: activity.NewFieldSet("title", "assigneeId", "dueDate", "completedAt"),
		Push:  activity.NewFieldSet("title", "assigneeId", "tag"),
	}
}
