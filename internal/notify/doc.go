// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

// Package notify consumes downstream email and push jobs.
//
// Jobs carry only an activity id; each consumer reloads the ledger row,
// resolves the audience again, applies per-inbox preference and mute
// gating, and hands the rendered notification to a provider. Providers
// sit behind circuit breakers so a failing upstream cannot stall the
// queue. A provider failure for one recipient never fails the job
// message: delivery is per-recipient best effort, and the job is
// acknowledged once every recipient was attempted.
package notify
