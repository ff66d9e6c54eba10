package shared

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"offload/internal/domain/agent/ports"
)

// StringArg fetches a string-like argument from the tool call map, returning an
// empty string when the key is absent or nil.
func StringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	value, ok := args[key]
	if !ok || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// RequireStringArg returns a trimmed, non-empty string argument or a failed
// ToolResult describing what is missing.
func RequireStringArg(args map[string]any, callID, key string) (string, *ports.ToolResult) {
	value := strings.TrimSpace(StringArg(args, key))
	if value == "" {
		err := fmt.Errorf("missing required parameter: %s", key)
		return "", &ports.ToolResult{CallID: callID, Content: err.Error(), Error: err}
	}
	return value, nil
}

// IntArg parses an integer-like argument into an int, returning (0,false) if absent or invalid.
func IntArg(args map[string]any, key string) (int, bool) {
	if args == nil {
		return 0, false
	}
	value, ok := args[key]
	if !ok || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// FloatArg parses a float-like argument into a float64, returning (0,false) if absent or invalid.
func FloatArg(args map[string]any, key string) (float64, bool) {
	if args == nil {
		return 0, false
	}
	value, ok := args[key]
	if !ok || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// BoolArgWithDefault returns a boolean argument or the provided default.
func BoolArgWithDefault(args map[string]any, key string, def bool) bool {
	if args == nil {
		return def
	}
	value, ok := args[key]
	if !ok {
		return def
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "y", "on":
			return true
		case "false", "0", "no", "n", "off":
			return false
		}
	case int:
		return v != 0
	case float64:
		return v != 0
	}
	return def
}

// ContentSnippet returns a trimmed prefix of content to use as a lightweight
// preview, avoiding empty strings and over-long slices.
func ContentSnippet(content string, max int) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}
	runes := []rune(trimmed)
	if len(runes) <= max {
		return trimmed
	}
	return string(runes[:max])
}

// ToolError constructs a failed ToolResult from a formatted error message.
func ToolError(callID string, format string, args ...any) (*ports.ToolResult, error) {
	err := fmt.Errorf(format, args...)
	return &ports.ToolResult{CallID: callID, Content: err.Error(), Error: err}, nil
}
