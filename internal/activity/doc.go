// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

// Package activity defines the core types of the fan-out pipeline: the
// ChangeEvent wire format, order-preserving entity snapshots, the
// policy-driven diff engine, and the ChangeRecord list it produces.
//
// Everything in this package is pure: no I/O, no clocks, no globals.
// Persistence, audience resolution, and delivery live in the fanout,
// store, and realtime packages.
package activity
