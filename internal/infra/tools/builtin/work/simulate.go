package work

import (
	"context"
	"fmt"
	"strings"
	"time"

	"offload/internal/domain/agent/background"
	"offload/internal/domain/agent/ports"
	"offload/internal/infra/tools/builtin/shared"
)

const (
	SimulateToolName = "simulate"

	defaultSimulateSteps = 3
	defaultStepDuration  = 100 * time.Millisecond
	maxSimulateSteps     = 1000
)

type simulate struct {
	shared.BaseTool
}

// NewSimulate creates a work tool that runs timed steps and reports each one
// as an operation. It stands in for arbitrary long-running work.
func NewSimulate() *simulate {
	return &simulate{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        SimulateToolName,
				Description: "Run a number of timed steps, optionally failing at a given step.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"steps":   {Type: "integer", Description: "Number of steps to run (default 3)."},
						"step_ms": {Type: "integer", Description: "Duration of each step in milliseconds (default 100)."},
						"fail_at": {Type: "integer", Description: "Fail when this step number is reached."},
						"result":  {Type: "string", Description: "Text to return on success."},
					},
				},
			},
			ports.ToolMetadata{
				Name:     SimulateToolName,
				Version:  "1.0.0",
				Category: "work",
				Tags:     []string{"work", "demo"},
			},
		),
	}
}

func (t *simulate) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	steps := defaultSimulateSteps
	if v, ok := shared.IntArg(call.Arguments, "steps"); ok {
		steps = v
	}
	if steps < 0 || steps > maxSimulateSteps {
		return shared.ToolError(call.ID, "steps must be between 0 and %d", maxSimulateSteps)
	}
	stepDuration := defaultStepDuration
	if v, ok := shared.IntArg(call.Arguments, "step_ms"); ok {
		if v < 0 {
			return shared.ToolError(call.ID, "step_ms must not be negative")
		}
		stepDuration = time.Duration(v) * time.Millisecond
	}
	failAt, shouldFail := shared.IntArg(call.Arguments, "fail_at")

	timer := time.NewTimer(stepDuration)
	defer timer.Stop()
	for step := 1; step <= steps; step++ {
		background.ReportOperation(ctx, "step")
		if shouldFail && step == failAt {
			return shared.ToolError(call.ID, "simulated failure at step %d", step)
		}
		if step > 1 {
			timer.Reset(stepDuration)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	result := strings.TrimSpace(shared.StringArg(call.Arguments, "result"))
	if result == "" {
		result = fmt.Sprintf("Completed %d simulated step(s).", steps)
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		Content:  result,
		Metadata: map[string]any{"steps": steps},
	}, nil
}
