// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

/*
Package realtime delivers committed activities to connected clients
across server processes.

The worker side publishes one envelope per (user, activity) onto a
per-user Redis channel; delivery is fire-and-forget and nothing is
persisted. The gateway side holds the WebSocket connections: a process
subscribes to a user's channel exactly while it holds at least one open
connection for that user and unsubscribes when the last one closes,
bounding channel fan-in to active users.
*/
package realtime
