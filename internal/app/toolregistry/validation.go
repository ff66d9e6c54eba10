package toolregistry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"offload/internal/domain/agent/ports"
	tools "offload/internal/domain/agent/ports/tools"
)

// validatingExecutor rejects calls whose arguments do not fit the tool's
// parameter schema, so malformed delegations never reach the registry.
type validatingExecutor struct {
	delegate tools.ToolExecutor
}

func (v *validatingExecutor) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if v.delegate == nil {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("tool executor missing")}, nil
	}
	if err := validateArguments(v.delegate.Definition().Parameters, call.Arguments); err != nil {
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("Invalid arguments for %s: %v", call.Name, err),
			Error:   fmt.Errorf("argument validation: %w", err),
		}, nil
	}
	return v.delegate.Execute(ctx, call)
}

func (v *validatingExecutor) Definition() ports.ToolDefinition {
	return v.delegate.Definition()
}

func (v *validatingExecutor) Metadata() ports.ToolMetadata {
	return v.delegate.Metadata()
}

// validateArguments reports every problem at once, in argument-name order.
// Arguments without a schema entry and explicit nulls for optional
// arguments are accepted.
func validateArguments(schema ports.ParameterSchema, args map[string]any) error {
	if len(schema.Properties) == 0 {
		return nil
	}

	var errs error
	for _, name := range schema.Required {
		if args[name] == nil {
			errs = multierr.Append(errs, fmt.Errorf("missing required argument %q", name))
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		prop, known := schema.Properties[name]
		val := args[name]
		if !known || val == nil {
			continue
		}
		if err := checkType(name, prop.Type, val); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, checkEnum(name, prop.Enum, val))
	}
	return errs
}

var typeChecks = map[string]func(any) bool{
	"string": func(v any) bool { _, ok := v.(string); return ok },
	"number": func(v any) bool {
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	},
	"integer": func(v any) bool {
		switch n := v.(type) {
		case int, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	},
	"boolean": func(v any) bool { _, ok := v.(bool); return ok },
	"array":   func(v any) bool { _, ok := v.([]any); return ok },
	"object":  func(v any) bool { _, ok := v.(map[string]any); return ok },
}

func checkType(name, want string, val any) error {
	want = strings.ToLower(want)
	matches, ok := typeChecks[want]
	if !ok || matches(val) {
		return nil
	}
	if f, isFloat := val.(float64); isFloat {
		return fmt.Errorf("argument %q: expected %s, got %v", name, want, f)
	}
	return fmt.Errorf("argument %q: expected %s, got %T", name, want, val)
}

func checkEnum(name string, enum []any, val any) error {
	if len(enum) == 0 {
		return nil
	}
	got := fmt.Sprint(val)
	for _, allowed := range enum {
		if fmt.Sprint(allowed) == got {
			return nil
		}
	}
	return fmt.Errorf("argument %q: %v is not one of %v", name, val, enum)
}

var _ tools.ToolExecutor = (*validatingExecutor)(nil)
