// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

/*
Package store provides Postgres persistence for the activity pipeline.

The pipeline owns four tables and creates them on startup: the
append-only activities ledger and the task_activities, book_activities,
and inbox_activities link tables. Everything else the pipeline reads
(team membership, task subscriptions, inboxes, users, tasks, lists,
books) belongs to the surrounding application and is consumed through
point lookups only.

Activity rows are written exclusively inside InTx; the ledger is
append-only and rows are never updated or deleted here.
*/
package store
