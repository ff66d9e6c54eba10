package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidArguments(t *testing.T) {
	args, err := New().Parse(`{"task_number": 2, "timeout_seconds": 1.5}`)
	require.NoError(t, err)
	assert.Equal(t, float64(2), args["task_number"])
	assert.Equal(t, 1.5, args["timeout_seconds"])
}

func TestParseRepairsMalformedArguments(t *testing.T) {
	args, err := New().Parse(`{description: 'crawl docs', "kind": "crawl",}`)
	require.NoError(t, err)
	assert.Equal(t, "crawl docs", args["description"])
	assert.Equal(t, "crawl", args["kind"])
}

func TestParseEmptyArguments(t *testing.T) {
	args, err := New().Parse("   ")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestParseToolCalls(t *testing.T) {
	content := `Starting the crawl.
<tool_call>{"name": "delegate", "args": {"description": "crawl docs", "kind": "crawl", "args": {"url": "https://example.com"}}}</tool_call>
<tool_call>{"name": "bad name!", "args": {}}</tool_call>
<tool_call>{"name": "task_output"}</tool_call>`

	calls := New().ParseToolCalls(content)
	require.Len(t, calls, 2)
	assert.Equal(t, "delegate", calls[0].Name)
	assert.Equal(t, "crawl", calls[0].Arguments["kind"])
	nested, ok := calls[0].Arguments["args"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", nested["url"])
	assert.Equal(t, "task_output", calls[1].Name)
	assert.Empty(t, calls[1].Arguments)
	assert.Empty(t, calls[0].ID)

	assert.Equal(t, "Starting the crawl.", StripToolCalls(content))
}
