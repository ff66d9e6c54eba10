package orchestration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"offload/internal/domain/agent/background"
	"offload/internal/domain/agent/ports"
	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/infra/tools/builtin/shared"
)

type waitTool struct {
	shared.BaseTool
	tasks          TaskRegistry
	defaultTimeout time.Duration
}

// NewWait creates the wait tool. It blocks on one task or on every
// outstanding task and marks resolved results as delivered.
func NewWait(tasks TaskRegistry, defaultTimeout time.Duration) *waitTool {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &waitTool{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        WaitToolName,
				Description: `Block until a background task finishes, or until every outstanding task finishes when task_number is omitted. Returns the result of each finished task. Tasks still running at the timeout are reported as running, which is not a failure.`,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"task_number": {
							Type:        "integer",
							Description: "The N in Task-N. Omit to wait for all outstanding tasks.",
						},
						"timeout_seconds": {
							Type:        "number",
							Description: "Maximum time to wait in seconds.",
						},
					},
				},
			},
			ports.ToolMetadata{
				Name:     WaitToolName,
				Version:  "1.0.0",
				Category: "orchestration",
				Tags:     []string{"background", "orchestration"},
			},
		),
		tasks:          tasks,
		defaultTimeout: defaultTimeout,
	}
}

func (t *waitTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	timeout := t.defaultTimeout
	if secs, ok := shared.FloatArg(call.Arguments, "timeout_seconds"); ok {
		if !(secs > 0) {
			return shared.ToolError(call.ID, "timeout_seconds must be positive")
		}
		// Cap before converting so huge values cannot overflow a Duration.
		timeout = MaxWaitTimeout
		if secs < MaxWaitTimeout.Seconds() {
			timeout = time.Duration(secs * float64(time.Second))
		}
	}

	if _, present := call.Arguments["task_number"]; present {
		number, ok := shared.IntArg(call.Arguments, "task_number")
		if !ok {
			return shared.ToolError(call.ID, "task_number must be an integer")
		}
		return t.waitOne(ctx, call.ID, number, timeout), nil
	}
	return t.waitAll(ctx, call.ID, timeout), nil
}

func (t *waitTool) waitOne(ctx context.Context, callID string, number int, timeout time.Duration) *ports.ToolResult {
	out := t.tasks.WaitForOne(ctx, number, timeout)
	seen := false
	if out.Resolved() {
		seen = t.tasks.MarkSeen(number)
	}
	return &ports.ToolResult{
		CallID:   callID,
		Content:  formatOutcome(out, t.progress(out)),
		Metadata: outcomeMetadata(out, seen),
	}
}

func (t *waitTool) waitAll(ctx context.Context, callID string, timeout time.Duration) *ports.ToolResult {
	outcomes := t.tasks.WaitForAll(ctx, timeout)

	// Tasks that finished before the wait began but were never delivered are
	// reported alongside the ones just waited on.
	for _, task := range t.tasks.Tasks() {
		if task.Completed && !task.ResultSeen {
			if _, ok := outcomes[task.CorrelationID]; !ok {
				outcomes[task.CorrelationID] = task.Outcome()
			}
		}
	}
	if len(outcomes) == 0 {
		return &ports.ToolResult{
			CallID:   callID,
			Content:  "No outstanding background tasks.",
			Metadata: map[string]any{"resolved": 0, "running": 0},
		}
	}

	ordered := make([]background.Outcome, 0, len(outcomes))
	for _, out := range outcomes {
		ordered = append(ordered, out)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	resolved, running := 0, 0
	sections := make([]string, 0, len(ordered))
	for _, out := range ordered {
		if out.Resolved() {
			resolved++
			t.tasks.MarkSeen(out.Number)
		} else {
			running++
		}
		sections = append(sections, formatOutcome(out, t.progress(out)))
	}
	header := fmt.Sprintf("%d finished, %d still running.", resolved, running)
	return &ports.ToolResult{
		CallID:   callID,
		Content:  header + "\n\n" + strings.Join(sections, "\n\n"),
		Metadata: map[string]any{"resolved": resolved, "running": running},
	}
}

func (t *waitTool) progress(out background.Outcome) *agent.TaskProgress {
	if out.Status != background.StatusRunning {
		return nil
	}
	p, ok := t.tasks.Progress(out.Number)
	if !ok {
		return nil
	}
	return &p
}
