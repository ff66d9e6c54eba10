package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTaskNotFound marks lookups of an unknown correlation id or task number.
	ErrTaskNotFound = errors.New("background task not found")
	// ErrTaskCancelled is the terminal error recorded for cancelled tasks.
	ErrTaskCancelled = errors.New("cancelled")
	// ErrDuplicateTask is returned when a correlation id is registered twice.
	ErrDuplicateTask = errors.New("background task already registered")
)

// PermanentError represents a failure that must not be retried. Every
// background work failure is surfaced as one.
type PermanentError struct {
	Err     error
	Message string // LLM-friendly message
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err as non-retryable.
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

// DegradedError represents a soft condition: the caller continues with the
// last good state instead of failing.
type DegradedError struct {
	Err     error
	Reason  string
	Message string // LLM-friendly message
}

func (e *DegradedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Reason != "" {
		return fmt.Sprintf("degraded (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("degraded error: %v", e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// NewDegradedError builds a soft-failure error with a short machine reason.
func NewDegradedError(err error, reason, message string) *DegradedError {
	return &DegradedError{Err: err, Reason: reason, Message: message}
}

// IsPermanent reports whether err was explicitly marked permanent.
func IsPermanent(err error) bool {
	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// IsDegraded reports whether err describes a soft condition.
func IsDegraded(err error) bool {
	var degradedErr *DegradedError
	return errors.As(err, &degradedErr)
}

// IsCancelled reports whether err is a task cancellation or a context cancellation.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTaskCancelled) || errors.Is(err, context.Canceled)
}

// FormatForLLM converts errors to short, actionable messages for tool output.
func FormatForLLM(err error) string {
	if err == nil {
		return ""
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) && permanentErr.Message != "" {
		return permanentErr.Message
	}
	var degradedErr *DegradedError
	if errors.As(err, &degradedErr) && degradedErr.Message != "" {
		return degradedErr.Message
	}

	switch {
	case errors.Is(err, ErrTaskCancelled):
		return "The task was cancelled before it produced a result."
	case errors.Is(err, context.DeadlineExceeded):
		return "The task exceeded its deadline."
	case errors.Is(err, ErrTaskNotFound):
		return "No background task matches that reference. Check the task number."
	}

	return strings.TrimSpace(err.Error())
}
