package tools

import (
	"context"

	"offload/internal/domain/agent/ports"
)

// ToolExecutor executes a single tool call.
type ToolExecutor interface {
	Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)
	Definition() ports.ToolDefinition
	Metadata() ports.ToolMetadata
}

// ToolRegistry manages available tools
type ToolRegistry interface {
	Register(tool ToolExecutor) error
	Get(name string) (ToolExecutor, error)
	List() []ports.ToolDefinition
	Unregister(name string) error
}
