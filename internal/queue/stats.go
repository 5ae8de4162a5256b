// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package queue

import "sync/atomic"

// Stats tracks per-consumer message counters. All methods are safe for
// concurrent use; consumers bump them inline and expose snapshots for
// logging and readiness checks.
type Stats struct {
	received  atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// StatsSnapshot is a point-in-time copy of a consumer's counters.
type StatsSnapshot struct {
	Received  int64 `json:"received"`
	Processed int64 `json:"processed"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
}

// Received records a delivered message.
func (s *Stats) Received() { s.received.Add(1) }

// Processed records a successfully handled message.
func (s *Stats) Processed() { s.processed.Add(1) }

// Dropped records a message acknowledged without effect (business
// errors, malformed payloads).
func (s *Stats) Dropped() { s.dropped.Add(1) }

// Failed records a transient failure that will be redelivered.
func (s *Stats) Failed() { s.failed.Add(1) }

// Observe bumps the outcome counter matching a handler result: nil is
// processed, acknowledged errors are dropped, everything else failed.
func (s *Stats) Observe(err error) {
	if err == nil {
		s.Processed()
		return
	}
	if Classify(err) == StepContinue {
		s.Dropped()
		return
	}
	s.Failed()
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Received:  s.received.Load(),
		Processed: s.processed.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
	}
}
