// Package errs defines the error taxonomy shared by the recorder, the event
// store and the HTTP layer. Transient failures are retried with bounded
// backoff; everything else is surfaced to the caller immediately.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionCompleted marks attempts to mutate or restart a finalized
	// session. Terminal, never retried.
	ErrSessionCompleted = errors.New("session already completed")

	// ErrSessionNotFound marks lookups of unknown sessions.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSlideNotFound marks lookups of slides without a manifest.
	ErrSlideNotFound = errors.New("slide not found")

	// ErrValidation marks malformed input (bad event batches, unknown
	// kinds). The whole batch is rejected and never retried.
	ErrValidation = errors.New("validation failed")

	// ErrRenderTimeout marks a rendering surface that failed to settle in
	// time. Replay logs it and proceeds rather than hanging.
	ErrRenderTimeout = errors.New("render settle timeout")
)

type transientError struct {
	err error
}

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// Transient wraps err so that IsTransient reports true. Used for network
// and server-side failures that are worth retrying.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transientf formats a new transient error.
func Transientf(format string, args ...any) error {
	return &transientError{err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err (or anything it wraps) was marked
// transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
