// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package queue

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/relayhub/relayhub/internal/logging"
)

// ZerologAdapter bridges watermill's LoggerAdapter onto zerolog so the
// queue layer logs through the same sink as the rest of the process.
type ZerologAdapter struct {
	logger zerolog.Logger
	fields watermill.LogFields
}

// NewLoggerAdapter returns a watermill logger backed by the global
// zerolog logger, tagged with the queue component.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &ZerologAdapter{logger: logging.With().Str("component", "queue").Logger()}
}

// Error logs an error-level message.
func (a *ZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.emit(a.logger.Error().Err(err), fields, msg)
}

// Info logs an info-level message.
func (a *ZerologAdapter) Info(msg string, fields watermill.LogFields) {
	a.emit(a.logger.Info(), fields, msg)
}

// Debug logs a debug-level message.
func (a *ZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	a.emit(a.logger.Debug(), fields, msg)
}

// Trace logs a trace-level message.
func (a *ZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	a.emit(a.logger.Trace(), fields, msg)
}

// With returns a logger carrying additional default fields.
func (a *ZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(a.fields)+len(fields))
	for k, v := range a.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ZerologAdapter{logger: a.logger, fields: merged}
}

func (a *ZerologAdapter) emit(event *zerolog.Event, fields watermill.LogFields, msg string) {
	for k, v := range a.fields {
		event = event.Interface(k, v)
	}
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
