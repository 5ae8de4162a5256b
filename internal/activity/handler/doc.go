// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

/*
Package handler dispatches decoded change events to per-entity-kind
handlers.

Each handler owns the diff policy for its entity, derives composite
change records the generic diff cannot express (date ranges, tag pairs,
list reassignment), and hands the result to the fan-out service. The
registry is the closed set of known kinds: unknown kinds are rejected
at decode time, before dispatch.

Handlers are written for at-least-once delivery with no ordering
guarantee: they trust the snapshots in the event, treat an empty diff
as a safe no-op, and let a duplicate delivery write a duplicate
activity rather than attempting dedup.
*/
package handler
