package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "explicit permanent", err: NewPermanentError(errors.New("boom"), ""), expected: true},
		{name: "wrapped permanent", err: fmt.Errorf("task: %w", NewPermanentError(errors.New("boom"), "")), expected: true},
		{name: "plain error", err: errors.New("boom"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.expected {
				t.Errorf("IsPermanent(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestDegradedError(t *testing.T) {
	err := NewDegradedError(errors.New("limit"), "max_iterations", "")
	if !IsDegraded(err) {
		t.Fatal("expected degraded")
	}
	if got := err.Error(); got != "degraded (max_iterations): limit" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("expected unwrap to expose the cause")
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(ErrTaskCancelled) {
		t.Error("ErrTaskCancelled should be cancelled")
	}
	if !IsCancelled(fmt.Errorf("work: %w", context.Canceled)) {
		t.Error("wrapped context.Canceled should be cancelled")
	}
	if IsCancelled(errors.New("other")) {
		t.Error("plain error should not be cancelled")
	}
}

func TestFormatForLLM(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "permanent message", err: NewPermanentError(errors.New("x"), "crawl failed: 404"), want: "crawl failed: 404"},
		{name: "cancelled", err: ErrTaskCancelled, want: "The task was cancelled before it produced a result."},
		{name: "not found", err: fmt.Errorf("lookup: %w", ErrTaskNotFound), want: "No background task matches that reference. Check the task number."},
		{name: "plain", err: errors.New("  disk full \n"), want: "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatForLLM(tt.err); got != tt.want {
				t.Errorf("FormatForLLM() = %q, want %q", got, tt.want)
			}
		})
	}
}
