// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

/*
Package fanout persists change records to the activity ledger and
distributes them to their audience.

For one handled event the service resolves the audience (workspace
members publicly, task subscribers privately, the actor always
excluded), writes one ledger row per change record plus the matching
context and inbox link rows inside a single transaction, and aborts the
whole transaction if any link insert commits fewer rows than expected.
After commit it pushes each activity to every audience member's
real-time channel and enqueues email/push jobs for changes on
allow-listed columns.
*/
package fanout
