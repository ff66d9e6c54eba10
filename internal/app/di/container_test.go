package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offload/internal/app/agent/scripted"
	"offload/internal/domain/agent/ports"
	runtimeconfig "offload/internal/shared/config"
	"offload/internal/shared/logging"
)

func testRuntime() runtimeconfig.Config {
	cfg := runtimeconfig.Default()
	cfg.Orchestrator.AutoWait = true
	cfg.Orchestrator.WaitTimeout = 2 * time.Second
	cfg.Observability.Metrics.Enabled = true
	return cfg
}

func TestSessionRunsEndToEnd(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Release notes</title></head><body><a href="/v2">v2</a></body></html>`))
	}))
	defer page.Close()

	script := scripted.Script{
		Turns: []string{`Starting.
<tool_call>{"name": "delegate", "args": {"description": "quick sim", "kind": "simulate", "args": {"steps": 2, "step_ms": 5, "result": "sim ok"}}}</tool_call>
<tool_call>{"name": "delegate", "args": {"description": "read notes", "kind": "crawl", "args": {"url": "` + page.URL + `"}}}</tool_call>`},
		Closing: "All done.",
	}
	c, err := BuildContainer(Config{
		Runtime:         testRuntime(),
		SessionID:       "session-test",
		Script:          func() (scripted.Script, error) { return script, nil },
		HTTPClient:      page.Client(),
		AllowLocalFetch: true,
		Logger:          logging.Nop(),
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Shutdown(context.Background())) }()

	res, err := c.Orchestrator.Run(context.Background(), &ports.ConversationState{SessionID: c.SessionID})
	require.NoError(t, err)
	assert.False(t, res.Exhausted)
	assert.GreaterOrEqual(t, res.Notifications, 1)
	assert.Equal(t, "All done.", res.State.LastAssistant())

	for _, task := range c.Tasks.Tasks() {
		assert.True(t, task.Completed, "%s should be complete", task.DisplayID())
		assert.True(t, task.ResultSeen, "%s should be delivered", task.DisplayID())
	}
	crawl, ok := c.Tasks.GetByNumber(2)
	require.True(t, ok)
	assert.Contains(t, crawl.Result, "Release notes")

	rec := httptest.NewRecorder()
	c.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "offload_tasks_registered")
}

func TestSessionsAreIsolated(t *testing.T) {
	a, err := BuildContainer(Config{Runtime: runtimeconfig.Default(), Logger: logging.Nop()})
	require.NoError(t, err)
	b, err := BuildContainer(Config{Runtime: runtimeconfig.Default(), Logger: logging.Nop()})
	require.NoError(t, err)
	assert.NotSame(t, a.Tasks, b.Tasks)
	assert.NotEqual(t, a.SessionID, b.SessionID)
	require.NoError(t, a.Shutdown(context.Background()))
	require.NoError(t, b.Shutdown(context.Background()))
}

func TestScriptErrorFailsBuild(t *testing.T) {
	_, err := BuildContainer(Config{
		Runtime: runtimeconfig.Default(),
		Script:  func() (scripted.Script, error) { return scripted.Script{}, assert.AnError },
		Logger:  logging.Nop(),
	})
	assert.ErrorIs(t, err, assert.AnError)
}
