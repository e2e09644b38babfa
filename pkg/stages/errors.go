// Package stages implements the individual pipeline stage tasks: OCR,
// Classify, Summarize, Score-Classification, Score-Summary, File, and
// File-Summarize. Each stage is a function over one document or file id
// that mutates the row and returns nothing semantically — errors returned
// from a stage are classified by the flow layer into a retry or a terminal
// failure, never propagated as a panic.
package stages

import (
	"context"
	"errors"
)

// Error kinds per the pipeline's error-handling design. A stage wraps the
// underlying cause with one of these sentinels via fmt.Errorf("...: %w", ...)
// so the flow layer can classify it with errors.Is without inspecting
// provider-specific error types.
var (
	// ErrTransient covers I/O timeouts, 5xx responses, DB deadlocks, and a
	// per-type lock wait that did not reach the deadline. The flow layer
	// increments retry_count and resets status to the stage's entry status.
	ErrTransient = errors.New("stages: transient error")

	// ErrSchema covers a malformed LLM JSON response or a missing required
	// field. The flow layer handles it exactly like ErrTransient: it counts
	// against the same retry_count/max_retries budget, and a repeat on the
	// same row is not escalated to permanent any sooner.
	ErrSchema = errors.New("stages: schema error")

	// ErrDomain covers conditions with no retry path: a missing document
	// folder, or no active prompt for a required scope with no fallback.
	// The flow layer marks the row permanently_failed immediately.
	ErrDomain = errors.New("stages: domain error")

	// ErrCancelled signals the stage observed context cancellation. Not an
	// error for bookkeeping purposes: no retry increment, row left as-is.
	ErrCancelled = errors.New("stages: cancelled")
)

// Transient wraps err with ErrTransient.
func Transient(err error) error {
	return wrap(ErrTransient, err)
}

// Schema wraps err with ErrSchema.
func Schema(err error) error {
	return wrap(ErrSchema, err)
}

// Domain wraps err with ErrDomain.
func Domain(err error) error {
	return wrap(ErrDomain, err)
}

func wrap(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return &classifiedError{sentinel: sentinel, cause: err}
}

type classifiedError struct {
	sentinel error
	cause    error
}

func (e *classifiedError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *classifiedError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}

// classifyExternalErr maps an error returned by the OCR or LLM provider, or
// by a gate/lock wait, to one of the sentinels above. Context cancellation
// always wins regardless of what the provider itself returned, since a
// cancelled call's error is often provider-specific noise.
func classifyExternalErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	// LockTimeout (typelock.ErrLockTimeout) falls through here too: spec
	// error kind 5 treats it as transient, same as any other provider error.
	return Transient(err)
}
