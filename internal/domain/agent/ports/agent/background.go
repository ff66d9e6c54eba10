package agent

import "time"

// TaskState is the display state of a background task.
type TaskState string

const (
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCancelled TaskState = "cancelled"
)

// TaskStatus is one row of a status report. It never carries raw results.
type TaskStatus struct {
	DisplayID   string    `json:"display_id" yaml:"display_id"`
	Number      int       `json:"number" yaml:"number"`
	Kind        string    `json:"kind" yaml:"kind"`
	Description string    `json:"description" yaml:"description"`
	State       TaskState `json:"state" yaml:"state"`
}

// StatusReport summarizes the registry for UIs and reconnect tooling.
type StatusReport struct {
	Total     int          `json:"total" yaml:"total"`
	Pending   int          `json:"pending" yaml:"pending"`
	Completed int          `json:"completed" yaml:"completed"`
	Tasks     []TaskStatus `json:"tasks" yaml:"tasks"`
}

// TaskProgress is a best-effort snapshot of a running task.
type TaskProgress struct {
	DisplayID        string         `json:"display_id"`
	Number           int            `json:"number"`
	Kind             string         `json:"kind"`
	Description      string         `json:"description"`
	State            TaskState      `json:"state"`
	Elapsed          time.Duration  `json:"elapsed"`
	ToolCalls        map[string]int `json:"tool_calls,omitempty"`
	TotalCalls       int            `json:"total_calls"`
	CurrentOperation string         `json:"current_operation,omitempty"`
	LastUpdate       time.Time      `json:"last_update"`
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
