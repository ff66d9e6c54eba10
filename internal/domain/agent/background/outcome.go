package background

import (
	"errors"
	"fmt"

	sharederrors "offload/internal/shared/errors"
)

// Status classifies an Outcome.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRunning   Status = "running"
	StatusNotFound  Status = "not_found"
)

// Outcome is what a wait or lookup observed for one task. Timeouts and
// unknown references are outcomes, not errors.
type Outcome struct {
	CorrelationID string
	Number        int
	Status        Status
	Result        string
	Err           error
}

// Resolved reports whether the task reached a terminal state.
func (o Outcome) Resolved() bool {
	switch o.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// DisplayID returns the human-facing "Task-N" reference.
func (o Outcome) DisplayID() string {
	return DisplayID(o.Number)
}

// DisplayID formats a sequence number for humans.
func DisplayID(number int) string {
	return fmt.Sprintf("Task-%d", number)
}

func statusFor(completed bool, err error) Status {
	switch {
	case !completed:
		return StatusRunning
	case err == nil:
		return StatusCompleted
	case errors.Is(err, sharederrors.ErrTaskCancelled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

func notFound(number int) Outcome {
	return Outcome{Number: number, Status: StatusNotFound, Err: sharederrors.ErrTaskNotFound}
}
