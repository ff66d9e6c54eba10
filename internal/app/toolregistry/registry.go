package toolregistry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"offload/internal/domain/agent/background"
	"offload/internal/domain/agent/ports"
	tools "offload/internal/domain/agent/ports/tools"
	"offload/internal/shared/logging"
	"offload/internal/shared/utils/id"
)

// Continuation executes a call through the remainder of the pipeline.
type Continuation func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)

// Interceptor may handle a call itself or pass it to next unchanged.
type Interceptor func(ctx context.Context, call ports.ToolCall, next Continuation) (*ports.ToolResult, error)

// Registry implements ToolRegistry and is the session's tool-call pipeline:
// interceptors run first in registration order, then the wrapped tool.
type Registry struct {
	mu           sync.RWMutex
	tools        map[string]tools.ToolExecutor
	interceptors []Interceptor
	cachedDefs   []ports.ToolDefinition
	defsDirty    bool
	logger       logging.Logger
}

// Config wires optional collaborators.
type Config struct {
	Logger logging.Logger
}

func NewRegistry(config Config) *Registry {
	logger := config.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("ToolRegistry")
	}
	return &Registry{
		tools:     make(map[string]tools.ToolExecutor),
		defsDirty: true,
		logger:    logger,
	}
}

func (r *Registry) Register(tool tools.ToolExecutor) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Metadata().Name
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already exists: %s", name)
	}
	r.tools[name] = wrapTool(tool)
	r.defsDirty = true
	return nil
}

// Use appends an interceptor to the pipeline.
func (r *Registry) Use(interceptor Interceptor) {
	if interceptor == nil {
		return
	}
	r.mu.Lock()
	r.interceptors = append(r.interceptors, interceptor)
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (tools.ToolExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tool, ok := r.tools[name]; ok {
		return tool, nil
	}
	return nil, fmt.Errorf("tool not found: %s", name)
}

func (r *Registry) List() []ports.ToolDefinition {
	r.mu.RLock()
	if !r.defsDirty && r.cachedDefs != nil {
		defs := r.cachedDefs
		r.mu.RUnlock()
		return defs
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring write lock.
	if !r.defsDirty && r.cachedDefs != nil {
		return r.cachedDefs
	}
	defs := make([]ports.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	r.cachedDefs = defs
	r.defsDirty = false
	return defs
}

func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return fmt.Errorf("tool not found: %s", name)
	}
	delete(r.tools, name)
	r.defsDirty = true
	return nil
}

// Execute runs call through the interceptors and then the named tool. A
// call without an ID is assigned one so results can always be correlated.
// Unknown tools produce a failed result, not an error.
func (r *Registry) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if call.ID == "" {
		call.ID = id.NewCallID()
	}
	r.mu.RLock()
	chain := append([]Interceptor(nil), r.interceptors...)
	r.mu.RUnlock()

	r.logger.Debug("Executing %s (call %s)", call.Name, call.ID)
	return r.continuation(chain)(ctx, call)
}

func (r *Registry) continuation(chain []Interceptor) Continuation {
	if len(chain) == 0 {
		return r.executeTool
	}
	head, rest := chain[0], chain[1:]
	next := r.continuation(rest)
	return func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		return head(ctx, call, next)
	}
}

func (r *Registry) executeTool(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	tool, err := r.Get(call.Name)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Content: err.Error(), Error: err}, nil
	}
	return tool.Execute(ctx, call)
}

// wrapTool layers validation, progress reporting and ID propagation around
// a tool. The ID layer is outermost so every result is correlated.
func wrapTool(tool tools.ToolExecutor) tools.ToolExecutor {
	base := unwrapTool(tool)
	validated := &validatingExecutor{delegate: base}
	progress := &progressExecutor{delegate: validated}
	return &idAwareExecutor{delegate: progress}
}

func unwrapTool(tool tools.ToolExecutor) tools.ToolExecutor {
	for {
		switch typed := tool.(type) {
		case *idAwareExecutor:
			tool = typed.delegate
		case *progressExecutor:
			tool = typed.delegate
		case *validatingExecutor:
			tool = typed.delegate
		default:
			return tool
		}
	}
}

type idAwareExecutor struct {
	delegate tools.ToolExecutor
}

func (w *idAwareExecutor) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	result, err := w.delegate.Execute(ctx, call)
	if result != nil {
		if result.CallID == "" {
			result.CallID = call.ID
		}
		if result.SessionID == "" {
			result.SessionID = call.SessionID
		}
	}
	return result, err
}

func (w *idAwareExecutor) Definition() ports.ToolDefinition {
	return w.delegate.Definition()
}

func (w *idAwareExecutor) Metadata() ports.ToolMetadata {
	return w.delegate.Metadata()
}

// progressExecutor counts tool calls made from inside delegated work against
// the owning task. Outside delegated work it is a passthrough.
type progressExecutor struct {
	delegate tools.ToolExecutor
}

func (p *progressExecutor) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if call.Name != DelegateToolName {
		background.ReportOperation(ctx, call.Name)
	}
	return p.delegate.Execute(ctx, call)
}

func (p *progressExecutor) Definition() ports.ToolDefinition {
	return p.delegate.Definition()
}

func (p *progressExecutor) Metadata() ports.ToolMetadata {
	return p.delegate.Metadata()
}

var _ tools.ToolRegistry = (*Registry)(nil)
