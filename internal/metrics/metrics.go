// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the activity pipeline:
// - Queue publish/consume/redelivery per topic
// - Change event processing latency and outcomes
// - Fan-out writes (activities, link rows) and integrity aborts
// - Real-time push and WebSocket connections
// - Notification dispatch and provider circuit breakers

var (
	// Queue Metrics
	QueueMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_published_total",
			Help: "Total number of messages published, by topic",
		},
		[]string{"topic"},
	)

	QueueMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_consumed_total",
			Help: "Total number of messages consumed, by topic",
		},
		[]string{"topic"},
	)

	QueueMessagesRedelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_redelivered_total",
			Help: "Total number of messages returned for redelivery after a transient failure",
		},
		[]string{"topic"},
	)

	QueueMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_dropped_total",
			Help: "Total number of messages acknowledged despite a permanent processing error",
		},
		[]string{"topic"},
	)

	QueueProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_processing_duration_seconds",
			Help:    "Duration of message handler execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	// Change Event Metrics
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_processed_total",
			Help: "Total number of change events processed, by entity kind",
		},
		[]string{"entity"},
	)

	EventsNoop = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_noop_total",
			Help: "Total number of change events that produced no records",
		},
		[]string{"entity"},
	)

	DiffRecordsProduced = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diff_records_per_event",
			Help:    "Number of change records produced per event",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	// Fan-out Metrics
	ActivitiesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activities_written_total",
			Help: "Total number of activity rows committed to the ledger",
		},
	)

	LinkRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_link_rows_written_total",
			Help: "Total number of link rows committed, by link table",
		},
		[]string{"table"}, // "task", "book", "inbox"
	)

	FanoutAborts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanout_aborts_total",
			Help: "Total number of fan-out transactions aborted on row-count mismatch",
		},
	)

	FanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_duration_seconds",
			Help:    "Duration of fan-out transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AudienceSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_audience_size",
			Help:    "Number of recipients resolved per activity",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// Real-time Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	RealtimePublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_publishes_total",
			Help: "Total number of per-user real-time notifications published",
		},
		[]string{"name"},
	)

	RealtimePublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_publish_errors_total",
			Help: "Total number of real-time publish failures (fire-and-forget)",
		},
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications dispatched, by channel",
		},
		[]string{"channel"}, // "email", "push"
	)

	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Total number of notifications suppressed, by channel and reason",
		},
		[]string{"channel", "reason"}, // reason: "preference", "muted", "actor"
	)

	NotificationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_errors_total",
			Help: "Total number of per-recipient delivery failures, by channel",
		},
		[]string{"channel"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// Store Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of Postgres queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of Postgres query errors",
		},
		[]string{"operation"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordQueuePublish records a message published to a topic.
func RecordQueuePublish(topic string) {
	QueueMessagesPublished.WithLabelValues(topic).Inc()
}

// RecordQueueConsume records a message received from a topic.
func RecordQueueConsume(topic string) {
	QueueMessagesConsumed.WithLabelValues(topic).Inc()
}

// RecordQueueRedelivery records a message returned for redelivery.
func RecordQueueRedelivery(topic string) {
	QueueMessagesRedelivered.WithLabelValues(topic).Inc()
}

// RecordQueueDropped records a message acknowledged after a permanent error.
func RecordQueueDropped(topic string) {
	QueueMessagesDropped.WithLabelValues(topic).Inc()
}

// RecordProcessing records handler execution time for a topic.
func RecordProcessing(topic string, duration time.Duration) {
	QueueProcessingDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordEventProcessed records a processed change event and its record count.
func RecordEventProcessed(entity string, records int) {
	EventsProcessed.WithLabelValues(entity).Inc()
	DiffRecordsProduced.Observe(float64(records))
	if records == 0 {
		EventsNoop.WithLabelValues(entity).Inc()
	}
}

// RecordFanout records a committed fan-out transaction.
func RecordFanout(activities, taskLinks, bookLinks, inboxLinks int, duration time.Duration) {
	ActivitiesWritten.Add(float64(activities))
	LinkRowsWritten.WithLabelValues("task").Add(float64(taskLinks))
	LinkRowsWritten.WithLabelValues("book").Add(float64(bookLinks))
	LinkRowsWritten.WithLabelValues("inbox").Add(float64(inboxLinks))
	FanoutDuration.Observe(duration.Seconds())
}

// RecordFanoutAbort records a fan-out transaction aborted on integrity failure.
func RecordFanoutAbort() {
	FanoutAborts.Inc()
}

// RecordAudience records the resolved recipient count for an activity.
func RecordAudience(size int) {
	AudienceSize.Observe(float64(size))
}

// RecordRealtimePublish records a per-user real-time notification.
func RecordRealtimePublish(name string, err error) {
	RealtimePublishes.WithLabelValues(name).Inc()
	if err != nil {
		RealtimePublishErrors.Inc()
	}
}

// RecordNotification records a dispatched notification.
func RecordNotification(channel string) {
	NotificationsSent.WithLabelValues(channel).Inc()
}

// RecordNotificationSuppressed records a notification withheld by gating.
func RecordNotificationSuppressed(channel, reason string) {
	NotificationsSuppressed.WithLabelValues(channel, reason).Inc()
}

// RecordNotificationError records a per-recipient delivery failure.
func RecordNotificationError(channel string) {
	NotificationErrors.WithLabelValues(channel).Inc()
}

// RecordDBQuery records a store query metric.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordBreakerRequest records a request passing through a circuit breaker.
func RecordBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// SetBreakerState updates the state gauge for a circuit breaker.
func SetBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}
