package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"offload/internal/domain/agent/background"
	"offload/internal/domain/agent/ports"
	"offload/internal/shared/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRegistry() *background.Registry {
	return background.NewRegistry(background.Config{Logger: logging.Nop()})
}

func launch(t *testing.T, r *background.Registry, id string, work background.Work) background.Task {
	t.Helper()
	task, err := r.Register(id, "work "+id, "simulate")
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background(), id, work))
	return task
}

func settle(t *testing.T, r *background.Registry, number int) {
	t.Helper()
	out := r.WaitForOne(context.Background(), number, 2*time.Second)
	require.True(t, out.Resolved(), "task %d did not settle", number)
}

func TestTaskOutputDeliversOnceAndStaysIdempotent(t *testing.T) {
	r := newRegistry()
	release := make(chan struct{})
	task := launch(t, r, "call-1", func(ctx context.Context) (string, error) {
		<-release
		return "the answer", nil
	})
	tool := NewTaskOutput(r)
	call := ports.ToolCall{ID: "c-out", Name: TaskOutputToolName, Arguments: map[string]any{"task_number": float64(task.Number)}}

	running, err := tool.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.Contains(t, running.Content, "Task-1 is still running")
	assert.Contains(t, running.Content, "not a failure")
	assert.Equal(t, "running", running.Metadata["status"])

	close(release)
	settle(t, r, task.Number)

	first, err := tool.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, "c-out", first.CallID)
	assert.Contains(t, first.Content, "Task-1 completed:\nthe answer")
	assert.Equal(t, true, first.Metadata["first_delivery"])

	got, _ := r.GetByNumber(task.Number)
	assert.True(t, got.ResultSeen)

	second, err := tool.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, false, second.Metadata["first_delivery"])
	assert.Empty(t, r.TakeUndelivered())
}

func TestTaskOutputReportsProgressTally(t *testing.T) {
	r := newRegistry()
	release := make(chan struct{})
	reported := make(chan struct{})
	launch(t, r, "call-1", func(ctx context.Context) (string, error) {
		background.ReportOperation(ctx, "fetch")
		background.ReportOperation(ctx, "fetch")
		background.ReportOperation(ctx, "parse")
		close(reported)
		<-release
		return "ok", nil
	})
	<-reported

	res, err := NewTaskOutput(r).Execute(context.Background(), ports.ToolCall{ID: "c", Arguments: map[string]any{"task_number": 1}})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "Operations so far: 3 (fetch x2, parse x1)")
	assert.Contains(t, res.Content, "Current operation: parse")

	close(release)
	settle(t, r, 1)
}

func TestTaskOutputAllTasks(t *testing.T) {
	r := newRegistry()
	assert.Equal(t, "No background tasks.", mustExecute(t, NewTaskOutput(r), nil).Content)

	release := make(chan struct{})
	launch(t, r, "call-1", func(ctx context.Context) (string, error) { return "done", nil })
	launch(t, r, "call-2", func(ctx context.Context) (string, error) {
		<-release
		return "later", nil
	})
	settle(t, r, 1)

	res := mustExecute(t, NewTaskOutput(r), nil)
	assert.Contains(t, res.Content, "Background tasks: 2 total, 1 running, 1 finished.")
	assert.Contains(t, res.Content, "Task-1 completed:\ndone")
	assert.Contains(t, res.Content, "Task-2 is still running")

	task1, _ := r.GetByNumber(1)
	task2, _ := r.GetByNumber(2)
	assert.True(t, task1.ResultSeen)
	assert.False(t, task2.ResultSeen)

	close(release)
	settle(t, r, 2)
}

func TestTaskOutputNotFound(t *testing.T) {
	res := mustExecute(t, NewTaskOutput(newRegistry()), map[string]any{"task_number": 9})
	assert.Contains(t, res.Content, "Task-9 not found")
	assert.NoError(t, res.Error)
	assert.Equal(t, "not_found", res.Metadata["status"])
}

func TestWaitSingleTimeoutDoesNotMarkSeen(t *testing.T) {
	r := newRegistry()
	release := make(chan struct{})
	launch(t, r, "call-1", func(ctx context.Context) (string, error) {
		<-release
		return "slow result", nil
	})
	tool := NewWait(r, time.Second)

	res := mustExecute(t, tool, map[string]any{"task_number": 1, "timeout_seconds": 0.02})
	assert.Contains(t, res.Content, "still running")
	assert.NoError(t, res.Error)
	task, _ := r.GetByNumber(1)
	assert.False(t, task.ResultSeen)

	close(release)
	res = mustExecute(t, tool, map[string]any{"task_number": 1})
	assert.Contains(t, res.Content, "Task-1 completed:\nslow result")
	assert.Equal(t, true, res.Metadata["first_delivery"])
	task, _ = r.GetByNumber(1)
	assert.True(t, task.ResultSeen)
}

func TestWaitAllSummarizesMixedOutcomes(t *testing.T) {
	r := newRegistry()
	release := make(chan struct{})
	launch(t, r, "ok", func(ctx context.Context) (string, error) { return "fine", nil })
	launch(t, r, "bad", func(ctx context.Context) (string, error) { return "", errors.New("disk full") })
	launch(t, r, "slow", func(ctx context.Context) (string, error) {
		<-release
		return "eventually", nil
	})

	res := mustExecute(t, NewWait(r, time.Second), map[string]any{"timeout_seconds": 0.05})
	assert.Contains(t, res.Content, "2 finished, 1 still running.")
	assert.Contains(t, res.Content, "Task-1 completed:\nfine")
	assert.Contains(t, res.Content, FailureMarker+" Task-2 disk full")
	assert.Contains(t, res.Content, "Task-3 is still running")
	assert.Equal(t, 2, res.Metadata["resolved"])

	for _, n := range []int{1, 2} {
		task, _ := r.GetByNumber(n)
		assert.True(t, task.ResultSeen, "task %d should be delivered", n)
	}

	close(release)
	res = mustExecute(t, NewWait(r, time.Second), nil)
	assert.Contains(t, res.Content, "1 finished, 0 still running.")
	assert.Contains(t, res.Content, "Task-3 completed:\neventually")

	res = mustExecute(t, NewWait(r, time.Second), nil)
	assert.Equal(t, "No outstanding background tasks.", res.Content)
}

func TestWaitCapsOversizedTimeout(t *testing.T) {
	r := newRegistry()
	launch(t, r, "call-1", func(ctx context.Context) (string, error) {
		time.Sleep(100 * time.Millisecond)
		return "after a pause", nil
	})

	started := time.Now()
	res := mustExecute(t, NewWait(r, time.Second), map[string]any{"task_number": 1, "timeout_seconds": 1e12})
	assert.Contains(t, res.Content, "Task-1 completed:\nafter a pause")
	assert.GreaterOrEqual(t, time.Since(started), 50*time.Millisecond)
}

func TestWaitRejectsBadArguments(t *testing.T) {
	tool := NewWait(newRegistry(), time.Second)
	res := mustExecute(t, tool, map[string]any{"timeout_seconds": -1})
	assert.Error(t, res.Error)
	res = mustExecute(t, tool, map[string]any{"task_number": "three"})
	assert.Error(t, res.Error)
}

func TestCancelledOutcomeRendering(t *testing.T) {
	r := newRegistry()
	exited := make(chan struct{})
	launch(t, r, "call-1", func(ctx context.Context) (string, error) {
		defer close(exited)
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.True(t, r.Cancel("call-1", true))

	res := mustExecute(t, NewTaskOutput(r), map[string]any{"task_number": 1})
	assert.Equal(t, "Task-1 was cancelled.", res.Content)
	assert.Equal(t, "cancelled", res.Metadata["status"])
	<-exited
}

func TestDelegateRunsKindInline(t *testing.T) {
	var got ports.ToolCall
	caller := callerFunc(func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		got = call
		return &ports.ToolResult{CallID: call.ID, Content: "  simulated  "}, nil
	})
	tool := NewDelegate(caller)

	res, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:   "call-7",
		Name: DelegateToolName,
		Arguments: map[string]any{
			"description": "simulate things",
			"kind":        "simulate",
			"args":        map[string]any{"steps": 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "call-7", res.CallID)
	assert.Equal(t, "simulated", res.Content)
	assert.Equal(t, "simulate", got.Name)
	assert.Equal(t, "call-7/simulate", got.ID)
	assert.Equal(t, 2, got.Arguments["steps"])
}

func TestDelegateRejectsInvalidRequests(t *testing.T) {
	tool := NewDelegate(callerFunc(func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		t.Fatalf("caller must not run for %s", call.Name)
		return nil, nil
	}))
	for _, args := range []map[string]any{
		{"description": "x"},
		{"description": "x", "kind": WaitToolName},
		{"description": "x", "kind": "simulate", "args": "nope"},
		{"description": "x", "kind": "simulate", "priority": 1},
	} {
		res, err := tool.Execute(context.Background(), ports.ToolCall{ID: "c", Arguments: args})
		require.NoError(t, err)
		assert.Error(t, res.Error, "args %v", args)
	}
}

type callerFunc func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)

func (f callerFunc) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	return f(ctx, call)
}

type executor interface {
	Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)
}

func mustExecute(t *testing.T, tool executor, args map[string]any) *ports.ToolResult {
	t.Helper()
	res, err := tool.Execute(context.Background(), ports.ToolCall{ID: "call-x", Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}
