// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package queue

import "errors"

// Sentinel errors for queue configuration and lifecycle.
var (
	// ErrNilPublisher is returned when attempting to use a nil publisher.
	ErrNilPublisher = errors.New("publisher cannot be nil")

	// ErrStreamNotFound is returned when the target stream doesn't exist.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// PermanentError marks a message as handled-but-failed: it is logged
// and acknowledged, never redelivered. A malformed payload or an event
// whose entity state has authoritatively diverged will not become valid
// by retrying, and redelivery would only re-trigger side effects.
type PermanentError struct {
	Message string
	Cause   error
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, cause error) *PermanentError {
	return &PermanentError{Message: message, Cause: cause}
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PermanentError) Unwrap() error { return e.Cause }

// RetryableError marks a transient failure: the message is redelivered
// after the visibility timeout or by the retry middleware.
type RetryableError struct {
	Message string
	Cause   error
}

// NewRetryableError creates a new retryable error.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{Message: message, Cause: cause}
}

func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error { return e.Cause }

// FatalError marks a transport-level failure the consumer cannot make
// progress past, such as the target stream having been deleted. It
// terminates the supervision tree so the process exits non-zero and an
// operator sees it, instead of looping forever.
type FatalError struct {
	Message string
	Cause   error
}

// NewFatalError creates a new fatal error.
func NewFatalError(message string, cause error) *FatalError {
	return &FatalError{Message: message, Cause: cause}
}

func (e *FatalError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *FatalError) Unwrap() error { return e.Cause }

// StepResult classifies how the consumer loop proceeds after one
// message. Modeling the outcome explicitly lets tests drive iterations
// without a real process exit.
type StepResult int

const (
	// StepContinue means the message is acknowledged and polling resumes.
	// Covers success and permanent (handled-but-failed) errors alike.
	StepContinue StepResult = iota

	// StepTransient means the message is negatively acknowledged and
	// will be redelivered.
	StepTransient

	// StepFatal means the consumer cannot make progress; the process
	// must stop with a non-zero status.
	StepFatal
)

func (r StepResult) String() string {
	switch r {
	case StepContinue:
		return "continue"
	case StepTransient:
		return "transient"
	case StepFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps a handler error onto the loop's next step.
func Classify(err error) StepResult {
	if err == nil {
		return StepContinue
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return StepFatal
	}
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return StepTransient
	}
	// Unknown errors are treated as permanent: the event is considered
	// handled-but-failed and is not worth re-running.
	return StepContinue
}
