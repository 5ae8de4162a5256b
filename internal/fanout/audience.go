// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package fanout

import (
	"context"

	"github.com/relayhub/relayhub/internal/queue"
)

// Audience is the resolved recipient set for one event. Members receive
// public inbox entries, Subscribers private ones. A subscriber who is
// also a member appears in both sets and gets one row of each scope;
// real-time delivery collapses the overlap so no user is pushed twice
// for the same activity. The acting user appears in neither set.
type Audience struct {
	Members     []int64
	Subscribers []int64
}

// All returns the distinct users across both sets, members first.
func (a Audience) All() []int64 {
	all := make([]int64, 0, len(a.Members)+len(a.Subscribers))
	seen := make(map[int64]bool, cap(all))
	for _, id := range a.Members {
		if !seen[id] {
			seen[id] = true
			all = append(all, id)
		}
	}
	for _, id := range a.Subscribers {
		if !seen[id] {
			seen[id] = true
			all = append(all, id)
		}
	}
	return all
}

// resolveAudience computes the recipient set. Personal workspaces
// (team id 0) never fan out and yield an empty audience.
func (s *Service) resolveAudience(ctx context.Context, ev Event) (Audience, error) {
	if ev.TeamID == 0 {
		return Audience{}, nil
	}

	memberIDs, err := s.store.TeamMemberIDs(ctx, ev.TeamID)
	if err != nil {
		return Audience{}, queue.NewRetryableError("load team members", err)
	}

	var a Audience
	a.Members = excludeUser(memberIDs, ev.ActorID)

	if ev.TaskID != 0 {
		subscriberIDs, err := s.store.TaskSubscriberIDs(ctx, ev.TaskID)
		if err != nil {
			return Audience{}, queue.NewRetryableError("load task subscribers", err)
		}
		a.Subscribers = excludeUser(subscriberIDs, ev.ActorID)
	}
	return a, nil
}

func excludeUser(ids []int64, userID int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id == userID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
