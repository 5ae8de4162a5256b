// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

// Package queue provides the message-queue layer of the pipeline:
// JetStream publisher and subscriber wrappers, the consumer router with
// its retry/poison middleware stack, error classification deciding
// between acknowledge, redeliver, and terminate, and an optional
// embedded NATS server.
package queue
