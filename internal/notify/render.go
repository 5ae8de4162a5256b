// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package notify

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/relayhub/relayhub/internal/activity"
	"github.com/relayhub/relayhub/internal/store"
)

// payload is the read side of the JSON persisted in each ledger row.
type payload struct {
	activity.ChangeRecord
	Entity    string `json:"entity"`
	EntityID  int64  `json:"entityId"`
	SubtaskID int64  `json:"subtaskId"`
}

// rendered is a notification ready for delivery on any channel.
type rendered struct {
	Subject string
	Body    string
}

// renderActivity turns a reloaded ledger row into subject and body
// text. Rendering never fails the job: a row with unreadable data gets
// a generic message.
func renderActivity(detail store.ActivityDetail) rendered {
	actor := detail.CreatorName
	if actor == "" {
		actor = "Someone"
	}

	var p payload
	if err := json.Unmarshal(detail.Data, &p); err != nil {
		return rendered{
			Subject: "New activity",
			Body:    fmt.Sprintf("%s made a change.", actor),
		}
	}

	label := p.CustomValue
	if label == "" {
		label = p.Entity
	}

	subject := fmt.Sprintf("%s: %s", capitalize(p.Entity), label)
	return rendered{
		Subject: subject,
		Body:    describeChange(actor, label, p),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func describeChange(actor, label string, p payload) string {
	if p.IsLifecycle() {
		switch {
		case strings.HasSuffix(string(p.Action), "-create"):
			return fmt.Sprintf("%s created %s %q.", actor, p.Entity, label)
		case strings.HasSuffix(string(p.Action), "-delete"):
			return fmt.Sprintf("%s deleted %s %q.", actor, p.Entity, label)
		default:
			return fmt.Sprintf("%s changed %s %q.", actor, p.Entity, label)
		}
	}

	switch p.Action {
	case activity.ActionCreate:
		if p.Value != nil {
			return fmt.Sprintf("%s set %s of %q to %v.", actor, p.Column, label, p.Value)
		}
		return fmt.Sprintf("%s set %s of %q.", actor, p.Column, label)
	case activity.ActionDelete:
		return fmt.Sprintf("%s removed %s from %q.", actor, p.Column, label)
	default:
		if p.Value != nil && p.AdditionValue != nil {
			return fmt.Sprintf("%s changed %s of %q from %v to %v.", actor, p.Column, label, p.AdditionValue, p.Value)
		}
		if p.Value != nil {
			return fmt.Sprintf("%s changed %s of %q to %v.", actor, p.Column, label, p.Value)
		}
		return fmt.Sprintf("%s changed %s of %q.", actor, p.Column, label)
	}
}
