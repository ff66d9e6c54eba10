package background

import (
	"time"

	agent "offload/internal/domain/agent/ports/agent"
)

// task is the registry-owned record. Every field is guarded by Registry.mu.
type task struct {
	correlationID string
	number        int
	description   string
	kind          string
	createdAt     time.Time
	lastUpdate    time.Time

	handle *Handle
	inner  *Handle
	// detached is set once the wrapper was cancelled without force.
	detached bool
	// settled is closed when completed flips, so waiters also wake on
	// cancellations that do not terminate the unit.
	settled chan struct{}

	result     string
	err        error
	completed  bool
	resultSeen bool

	tally      map[string]int
	totalCalls int
	currentOp  string
}

func (t *task) snapshot() Task {
	out := Task{
		CorrelationID:    t.correlationID,
		Number:           t.number,
		Description:      t.description,
		Kind:             t.kind,
		CreatedAt:        t.createdAt,
		LastUpdate:       t.lastUpdate,
		Started:          t.handle != nil,
		Completed:        t.completed,
		ResultSeen:       t.resultSeen,
		Result:           t.result,
		Err:              t.err,
		TotalCalls:       t.totalCalls,
		CurrentOperation: t.currentOp,
	}
	if len(t.tally) > 0 {
		out.ToolCalls = make(map[string]int, len(t.tally))
		for name, count := range t.tally {
			out.ToolCalls[name] = count
		}
	}
	return out
}

// Task is a point-in-time copy of a background task.
type Task struct {
	CorrelationID    string
	Number           int
	Description      string
	Kind             string
	CreatedAt        time.Time
	LastUpdate       time.Time
	Started          bool
	Completed        bool
	ResultSeen       bool
	Result           string
	Err              error
	ToolCalls        map[string]int
	TotalCalls       int
	CurrentOperation string
}

// DisplayID returns "Task-N".
func (t Task) DisplayID() string {
	return DisplayID(t.Number)
}

// Outcome derives the task's current outcome.
func (t Task) Outcome() Outcome {
	status := statusFor(t.Completed, t.Err)
	out := Outcome{CorrelationID: t.CorrelationID, Number: t.Number, Status: status}
	if status != StatusRunning {
		out.Result = t.Result
		out.Err = t.Err
	}
	return out
}

// State maps the outcome onto the display state.
func (t Task) State() agent.TaskState {
	switch statusFor(t.Completed, t.Err) {
	case StatusCompleted:
		return agent.TaskStateCompleted
	case StatusCancelled:
		return agent.TaskStateCancelled
	case StatusFailed:
		return agent.TaskStateFailed
	default:
		return agent.TaskStateRunning
	}
}

// Progress builds a progress snapshot relative to now.
func (t Task) Progress(now time.Time) agent.TaskProgress {
	end := now
	if t.Completed {
		end = t.LastUpdate
	}
	elapsed := end.Sub(t.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return agent.TaskProgress{
		DisplayID:        t.DisplayID(),
		Number:           t.Number,
		Kind:             t.Kind,
		Description:      t.Description,
		State:            t.State(),
		Elapsed:          elapsed,
		ToolCalls:        t.ToolCalls,
		TotalCalls:       t.TotalCalls,
		CurrentOperation: t.CurrentOperation,
		LastUpdate:       t.LastUpdate,
	}
}
