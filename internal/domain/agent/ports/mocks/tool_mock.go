package mocks

import (
	"context"

	"offload/internal/domain/agent/ports"
	tools "offload/internal/domain/agent/ports/tools"
)

// MockToolExecutor is a configurable tools.ToolExecutor.
type MockToolExecutor struct {
	ToolName    string
	ExecuteFunc func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)
	Params      ports.ParameterSchema
}

var _ tools.ToolExecutor = (*MockToolExecutor)(nil)

func (m *MockToolExecutor) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, call)
	}
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: "mock result",
	}, nil
}

func (m *MockToolExecutor) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{Name: m.name(), Description: "mock tool", Parameters: m.Params}
}

func (m *MockToolExecutor) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{Name: m.name(), Category: "mock"}
}

func (m *MockToolExecutor) name() string {
	if m.ToolName == "" {
		return "mock_tool"
	}
	return m.ToolName
}
