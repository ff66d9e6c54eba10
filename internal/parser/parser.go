package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"offload/internal/domain/agent/ports"
	tools "offload/internal/domain/agent/ports/tools"
)

var (
	toolCallPattern = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)
	toolNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
)

// Parser decodes tool calls and their arguments from model output. Malformed
// JSON is passed through jsonrepair before giving up.
type Parser struct{}

func New() *Parser {
	return &Parser{}
}

// Parse decodes a raw argument object. An empty string yields an empty map.
func (p *Parser) Parse(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(trimmed), &args); err == nil {
		return args, nil
	}
	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		return nil, fmt.Errorf("repair arguments: %w", err)
	}
	args = map[string]any{}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("decode repaired arguments: %w", err)
	}
	return args, nil
}

// ParseToolCalls extracts <tool_call>{"name": ..., "args": {...}}</tool_call>
// blocks from content. Blocks that cannot be decoded or carry an invalid tool
// name are skipped. Returned calls have no ID; the tool registry assigns one.
func (p *Parser) ParseToolCalls(content string) []ports.ToolCall {
	var calls []ports.ToolCall
	for _, match := range toolCallPattern.FindAllStringSubmatch(content, -1) {
		block, err := p.Parse(match[1])
		if err != nil {
			continue
		}
		name, _ := block["name"].(string)
		if !toolNamePattern.MatchString(name) {
			continue
		}
		args, _ := block["args"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, ports.ToolCall{Name: name, Arguments: args})
	}
	return calls
}

// StripToolCalls removes tool call markup, leaving the surrounding prose.
func StripToolCalls(content string) string {
	return strings.TrimSpace(toolCallPattern.ReplaceAllString(content, ""))
}

var _ tools.ArgumentParser = (*Parser)(nil)
