package orchestration

import (
	"context"
	"time"

	"offload/internal/domain/agent/background"
	agent "offload/internal/domain/agent/ports/agent"
)

// TaskRegistry is the part of the background registry the status tools use.
type TaskRegistry interface {
	WaitForOne(ctx context.Context, number int, timeout time.Duration) background.Outcome
	WaitForAll(ctx context.Context, timeout time.Duration) map[string]background.Outcome
	GetByNumber(number int) (background.Task, bool)
	Tasks() []background.Task
	MarkSeen(number int) bool
	Progress(number int) (agent.TaskProgress, bool)
	Now() time.Time
}

var _ TaskRegistry = (*background.Registry)(nil)

// MaxWaitTimeout caps caller-supplied wait timeouts.
const MaxWaitTimeout = 10 * time.Minute
