// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

/*
Package metrics provides Prometheus metrics collection for the activity
pipeline.

Instruments cover queue publish/consume/redelivery, change event
processing, fan-out transactions, real-time push, notification dispatch,
and provider circuit breakers. Metrics are registered via promauto and
exposed at the /metrics endpoint in Prometheus text format.

Record helpers keep call sites terse:

	metrics.RecordQueuePublish(queue.TopicActivity)
	metrics.RecordEventProcessed("task", len(records))
	metrics.RecordFanout(2, 2, 0, 6, elapsed)
*/
package metrics
