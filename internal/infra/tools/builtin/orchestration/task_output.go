package orchestration

import (
	"context"
	"fmt"
	"strings"

	"offload/internal/domain/agent/background"
	"offload/internal/domain/agent/ports"
	"offload/internal/infra/tools/builtin/shared"
)

type taskOutput struct {
	shared.BaseTool
	tasks TaskRegistry
}

// NewTaskOutput creates the non-blocking task_output tool.
func NewTaskOutput(tasks TaskRegistry) *taskOutput {
	return &taskOutput{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        TaskOutputToolName,
				Description: `Read the result of a finished background task, or a progress snapshot if it is still running. Never blocks. Omit task_number to report on every task.`,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"task_number": {
							Type:        "integer",
							Description: "The N in Task-N. Omit to report on all tasks.",
						},
					},
				},
			},
			ports.ToolMetadata{
				Name:     TaskOutputToolName,
				Version:  "1.0.0",
				Category: "orchestration",
				Tags:     []string{"background", "orchestration"},
			},
		),
		tasks: tasks,
	}
}

func (t *taskOutput) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if _, present := call.Arguments["task_number"]; present {
		number, ok := shared.IntArg(call.Arguments, "task_number")
		if !ok {
			return shared.ToolError(call.ID, "task_number must be an integer")
		}
		content, meta := t.report(number)
		return &ports.ToolResult{CallID: call.ID, Content: content, Metadata: meta}, nil
	}

	tasks := t.tasks.Tasks()
	if len(tasks) == 0 {
		return &ports.ToolResult{CallID: call.ID, Content: "No background tasks."}, nil
	}
	running := 0
	sections := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if !task.Completed {
			running++
		}
		content, _ := t.render(task)
		sections = append(sections, content)
	}
	header := fmt.Sprintf("Background tasks: %d total, %d running, %d finished.", len(tasks), running, len(tasks)-running)
	return &ports.ToolResult{
		CallID:   call.ID,
		Content:  header + "\n\n" + strings.Join(sections, "\n\n"),
		Metadata: map[string]any{"total": len(tasks), "running": running},
	}, nil
}

func (t *taskOutput) report(number int) (string, map[string]any) {
	task, ok := t.tasks.GetByNumber(number)
	if !ok {
		out := background.Outcome{Number: number, Status: background.StatusNotFound}
		return formatOutcome(out, nil), outcomeMetadata(out, false)
	}
	return t.render(task)
}

// render reports one reconciled task, marking completed results delivered.
func (t *taskOutput) render(task background.Task) (string, map[string]any) {
	out := task.Outcome()
	if !task.Completed {
		progress := task.Progress(t.tasks.Now())
		return formatOutcome(out, &progress), outcomeMetadata(out, false)
	}
	seen := t.tasks.MarkSeen(task.Number)
	return formatOutcome(out, nil), outcomeMetadata(out, seen)
}
