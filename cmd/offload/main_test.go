package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serverhttp "offload/internal/delivery/server/http"
	"offload/internal/domain/agent/background"
	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/output"
	"offload/internal/shared/logging"
)

const quickScript = `turns:
  - |
    Delegating the quick job.
    <tool_call>{"name": "delegate", "args": {"description": "quick sim", "kind": "simulate", "args": {"steps": 2, "step_ms": %d, "result": "sim done"}}}</tool_call>
closing: "All done."
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), append(args, "--log-level", "error"), &stdout, &stderr)
	return stdout.String(), err
}

func writeScript(t *testing.T, stepMS int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(quickScript, stepMS)), 0o644))
	return path
}

func TestConfigCommandPrintsYAML(t *testing.T) {
	out, err := runCLI(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "max_iterations: 10")
	assert.Contains(t, out, "auto_wait: false")
}

func TestRunAutoWaitDeliversNotification(t *testing.T) {
	out, err := runCLI(t, "run", "--script", writeScript(t, 5), "--auto-wait")
	require.NoError(t, err)

	assert.Contains(t, out, "assistant: Delegating the quick job.")
	assert.Contains(t, out, "notification: Background task Task-1 (quick sim) completed.")
	assert.Contains(t, out, "Task-1 completed:")
	assert.Contains(t, out, "2 invocation(s), 1 notification(s)")
	assert.Contains(t, out, "Background tasks: 1 total, 0 pending, 1 completed")
	assert.Contains(t, out, "All done.\n")
}

func TestRunWithoutAutoWaitReturnsControl(t *testing.T) {
	out, err := runCLI(t, "run", "--script", writeScript(t, 500), "--stream")
	require.NoError(t, err)
	assert.Contains(t, out, "assistant: Delegating the quick job.")
	assert.Contains(t, out, "1 invocation(s), 0 notification(s)")
	assert.NotContains(t, out, "notification: ")
}

func TestRunRejectsBadIterationBound(t *testing.T) {
	_, err := runCLI(t, "run", "--script", writeScript(t, 5), "--max-iterations", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_iterations")
}

func TestCancelRejectsBadNumber(t *testing.T) {
	_, err := runCLI(t, "cancel", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid task number "abc"`)
}

func newServedRegistry(t *testing.T) string {
	t.Helper()
	tasks := background.NewRegistry(background.Config{Logger: logging.Nop()})
	_, err := tasks.Register("call-1", "index the docs", "simulate")
	require.NoError(t, err)
	require.NoError(t, tasks.Start(context.Background(), "call-1", func(ctx context.Context) (string, error) {
		background.ReportOperation(ctx, "step")
		return "indexed", nil
	}))
	require.True(t, tasks.WaitForOne(context.Background(), 1, 2*time.Second).Resolved())

	srv := httptest.NewServer(serverhttp.NewRouter(serverhttp.RouterConfig{Tasks: tasks, Logger: logging.Nop()}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestStatusCommandRendersRemoteReport(t *testing.T) {
	addr := newServedRegistry(t)

	out, err := runCLI(t, "status", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Background tasks: 1 total, 0 pending, 1 completed")
	assert.Contains(t, out, "Task-1  simulate  completed  index the docs")
	assert.NotContains(t, out, "indexed")

	out, err = runCLI(t, "status", "--addr", addr, "--task", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Task-1 completed (simulate)")
	assert.Contains(t, out, "Operations: 1 (step x1)")
}

func TestCancelFinishedTaskFails(t *testing.T) {
	addr := newServedRegistry(t)
	_, err := runCLI(t, "cancel", "1", "--addr", addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already finished")
}

type fakeFetcher struct {
	report agent.StatusReport
	err    error
}

func (f fakeFetcher) Report(context.Context) (agent.StatusReport, error) {
	return f.report, f.err
}

func TestWatchModelRendersFetchedReport(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	output.ConfigureCLIColorProfile(&bytes.Buffer{})
	renderer := output.NewCLIRendererWithMarkdown(nil, 0, false)
	fetcher := fakeFetcher{report: agent.StatusReport{
		Total:   1,
		Pending: 1,
		Tasks:   []agent.TaskStatus{{DisplayID: "Task-1", Number: 1, Kind: "crawl", Description: "fetch page", State: agent.TaskStateRunning}},
	}}
	m := newWatchModel(context.Background(), fetcher, renderer, ":8089", time.Millisecond)
	assert.Contains(t, m.View(), "Connecting...")

	next, cmd := m.Update(m.fetch()())
	require.NotNil(t, cmd)
	view := next.View()
	assert.Contains(t, view, "offload :8089 (1 running)")
	assert.Contains(t, view, "Task-1  crawl  running    fetch page")

	_, quit := next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, quit)
	assert.Equal(t, tea.Quit(), quit())
}

func TestWatchModelShowsFetchError(t *testing.T) {
	renderer := output.NewCLIRendererWithMarkdown(nil, 0, false)
	m := newWatchModel(context.Background(), fakeFetcher{err: errors.New("connection refused")}, renderer, ":1", 0)
	next, _ := m.Update(m.fetch()())
	assert.Contains(t, next.View(), "Error: connection refused")
	assert.NotContains(t, next.View(), "Connecting...")
}
