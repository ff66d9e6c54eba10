package orchestration

import (
	"context"
	"fmt"
	"strings"

	"offload/internal/domain/agent/ports"
	"offload/internal/infra/tools/builtin/shared"
)

const (
	DelegateToolName   = "delegate"
	WaitToolName       = "wait"
	TaskOutputToolName = "task_output"
)

// ToolCaller executes a nested tool call through the session pipeline.
type ToolCaller interface {
	Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)
}

type delegate struct {
	shared.BaseTool
	caller ToolCaller
}

// NewDelegate creates the delegate tool. Executed directly it runs the work
// tool named by kind inline; the delegation interceptor reroutes it to the
// background instead.
func NewDelegate(caller ToolCaller) *delegate {
	return &delegate{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        DelegateToolName,
				Description: `Delegate a long-running unit of work to run in the background. Returns immediately with a task number (shown as Task-N). Keep working; you will be notified when it completes. Use task_output to check progress or read the result, and wait to block on it.`,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"description": {
							Type:        "string",
							Description: "A short human-readable description of the work.",
						},
						"kind": {
							Type:        "string",
							Description: "The work tool to run, for example \"simulate\" or \"crawl\".",
						},
						"args": {
							Type:        "object",
							Description: "Arguments passed to the work tool.",
						},
					},
					Required: []string{"description", "kind"},
				},
			},
			ports.ToolMetadata{
				Name:     DelegateToolName,
				Version:  "1.0.0",
				Category: "orchestration",
				Tags:     []string{"background", "orchestration", "async"},
			},
		),
		caller: caller,
	}
}

func (t *delegate) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	for key := range call.Arguments {
		switch key {
		case "description", "kind", "args":
		default:
			return shared.ToolError(call.ID, "unsupported parameter: %s", key)
		}
	}
	kind, errResult := shared.RequireStringArg(call.Arguments, call.ID, "kind")
	if errResult != nil {
		return errResult, nil
	}
	switch kind {
	case DelegateToolName, WaitToolName, TaskOutputToolName:
		return shared.ToolError(call.ID, "%s cannot be delegated", kind)
	}
	if t.caller == nil {
		return shared.ToolError(call.ID, "delegation is not available in this context")
	}

	var args map[string]any
	if raw, ok := call.Arguments["args"]; ok && raw != nil {
		typed, ok := raw.(map[string]any)
		if !ok {
			return shared.ToolError(call.ID, "args must be an object, got %T", raw)
		}
		args = typed
	}

	result, err := t.caller.Execute(ctx, ports.ToolCall{
		ID:        fmt.Sprintf("%s/%s", call.ID, kind),
		Name:      kind,
		Arguments: args,
		SessionID: call.SessionID,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return shared.ToolError(call.ID, "%s returned no result", kind)
	}
	out := *result
	out.CallID = call.ID
	out.Content = strings.TrimSpace(out.Content)
	return &out, nil
}
