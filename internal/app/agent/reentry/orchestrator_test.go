package reentry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"offload/internal/domain/agent/background"
	"offload/internal/domain/agent/ports"
	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/infra/tools/builtin/orchestration"
	sharederrors "offload/internal/shared/errors"
	"offload/internal/shared/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAgent records the states it was invoked with and appends one
// assistant turn per invocation.
type fakeAgent struct {
	mu          sync.Mutex
	onTurn      func(ctx context.Context, turn int)
	seen        []*ports.ConversationState
	last        *ports.ConversationState
	returnNil   bool
	invokeErr   error
	snapshotErr error
}

func (a *fakeAgent) turn(ctx context.Context, state *ports.ConversationState) *ports.ConversationState {
	a.mu.Lock()
	a.seen = append(a.seen, state.Clone())
	n := len(a.seen)
	a.mu.Unlock()
	if a.onTurn != nil {
		a.onTurn(ctx, n)
	}
	state.Messages = append(state.Messages, ports.Message{Role: ports.RoleAssistant, Content: fmt.Sprintf("turn %d", n)})
	a.mu.Lock()
	a.last = state
	a.mu.Unlock()
	return state
}

func (a *fakeAgent) Invoke(ctx context.Context, state *ports.ConversationState) (*ports.ConversationState, error) {
	if a.invokeErr != nil {
		return nil, a.invokeErr
	}
	next := a.turn(ctx, state)
	if a.returnNil {
		return nil, nil
	}
	return next, nil
}

func (a *fakeAgent) Stream(ctx context.Context, state *ports.ConversationState, listener agent.EventListener) error {
	next := a.turn(ctx, state)
	last := next.Messages[len(next.Messages)-1]
	listener.OnEvent(&agent.MessageEvent{
		BaseEvent: agent.NewBaseEvent(state.SessionID, time.Now()),
		Role:      last.Role,
		Content:   last.Content,
	})
	return nil
}

func (a *fakeAgent) Snapshot(ctx context.Context) (*ports.ConversationState, error) {
	if a.snapshotErr != nil {
		return nil, a.snapshotErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last.Clone(), nil
}

func (a *fakeAgent) invocations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

type countingMetrics struct {
	mu            sync.Mutex
	invocations   map[string]int
	notifications int
	limits        int
}

func (m *countingMetrics) Invocation(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invocations == nil {
		m.invocations = map[string]int{}
	}
	m.invocations[mode]++
}

func (m *countingMetrics) NotificationInjected(tasks int) {
	m.mu.Lock()
	m.notifications += tasks
	m.mu.Unlock()
}

func (m *countingMetrics) IterationLimitReached() {
	m.mu.Lock()
	m.limits++
	m.mu.Unlock()
}

func newTasks() *background.Registry {
	return background.NewRegistry(background.Config{Logger: logging.Nop()})
}

func delegate(t *testing.T, tasks *background.Registry, id string, work background.Work) {
	t.Helper()
	_, err := tasks.Register(id, "work for "+id, "simulate")
	require.NoError(t, err)
	require.NoError(t, tasks.Start(context.Background(), id, work))
}

func finishesAfter(d time.Duration, result string) background.Work {
	return func(ctx context.Context) (string, error) {
		select {
		case <-time.After(d):
			return result, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func notifications(state *ports.ConversationState) []ports.Message {
	var out []ports.Message
	for _, msg := range state.Messages {
		if msg.Source == ports.MessageSourceBackgroundNotification {
			out = append(out, msg)
		}
	}
	return out
}

func initialState() *ports.ConversationState {
	return &ports.ConversationState{
		SessionID: "session-1",
		Messages:  []ports.Message{{Role: ports.RoleUser, Content: "crawl the docs"}},
	}
}

func TestWithoutAutoWaitControlReturnsAndResultIsRetrievedLater(t *testing.T) {
	tasks := newTasks()
	fake := &fakeAgent{onTurn: func(ctx context.Context, turn int) {
		if turn == 1 {
			delegate(t, tasks, "call-1", finishesAfter(50*time.Millisecond, "docs crawled"))
		}
	}}
	orch := New(fake, tasks, Config{AutoWait: false, Logger: logging.Nop()})

	res, err := orch.Run(context.Background(), initialState())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Invocations)
	assert.Zero(t, res.Notifications)
	assert.Empty(t, notifications(res.State))
	assert.False(t, res.Exhausted)
	assert.NoError(t, res.Degraded)

	wait := orchestration.NewWait(tasks, time.Second)
	out, err := wait.Execute(context.Background(), ports.ToolCall{ID: "c", Arguments: map[string]any{"task_number": 1}})
	require.NoError(t, err)
	assert.Contains(t, out.Content, "Task-1 completed:\ndocs crawled")
	assert.Empty(t, tasks.TakeUndelivered())
}

func TestAutoWaitReinvokesWithSingleNotification(t *testing.T) {
	tasks := newTasks()
	fake := &fakeAgent{onTurn: func(ctx context.Context, turn int) {
		if turn == 1 {
			delegate(t, tasks, "call-1", finishesAfter(50*time.Millisecond, "docs crawled"))
		}
	}}
	metrics := &countingMetrics{}
	orch := New(fake, tasks, Config{AutoWait: true, WaitTimeout: 2 * time.Second, Logger: logging.Nop(), Metrics: metrics})

	res, err := orch.Run(context.Background(), initialState())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Invocations)
	assert.Equal(t, 1, res.Notifications)

	notes := notifications(res.State)
	require.Len(t, notes, 1)
	assert.Equal(t, ports.RoleUser, notes[0].Role)
	assert.Contains(t, notes[0].Content, "Task-1 (work for call-1) completed. Call task_output(task_number=1)")

	// The second turn saw the notification.
	require.Len(t, fake.seen, 2)
	assert.Len(t, notifications(fake.seen[1]), 1)

	task, _ := tasks.GetByNumber(1)
	assert.True(t, task.ResultSeen)
	assert.Equal(t, 2, metrics.invocations[ModeInvoke])
	assert.Equal(t, 1, metrics.notifications)
}

func TestIterationBoundStopsPerpetualDelegator(t *testing.T) {
	tasks := newTasks()
	fake := &fakeAgent{onTurn: func(ctx context.Context, turn int) {
		delegate(t, tasks, fmt.Sprintf("call-%d", turn), finishesAfter(time.Millisecond, "ok"))
	}}
	metrics := &countingMetrics{}
	orch := New(fake, tasks, Config{MaxIterations: 3, AutoWait: true, WaitTimeout: time.Second, Logger: logging.Nop(), Metrics: metrics})

	res, err := orch.Run(context.Background(), initialState())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Invocations)
	assert.Equal(t, 3, fake.invocations())
	assert.Equal(t, 2, res.Notifications)
	assert.True(t, res.Exhausted)
	require.Error(t, res.Degraded)
	assert.True(t, sharederrors.IsDegraded(res.Degraded))
	assert.Equal(t, "turn 3", res.State.LastAssistant())
	assert.Equal(t, 1, metrics.limits)

	tasks.WaitForAll(context.Background(), time.Second)
}

func TestAutoWaitReturnsControlWhenNothingFinishes(t *testing.T) {
	tasks := newTasks()
	release := make(chan struct{})
	fake := &fakeAgent{onTurn: func(ctx context.Context, turn int) {
		delegate(t, tasks, "call-1", func(ctx context.Context) (string, error) {
			<-release
			return "late", nil
		})
	}}
	orch := New(fake, tasks, Config{AutoWait: true, WaitTimeout: 20 * time.Millisecond, Logger: logging.Nop()})

	res, err := orch.Run(context.Background(), initialState())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Invocations)
	assert.Zero(t, res.Notifications)
	assert.True(t, tasks.HasPending())

	close(release)
	tasks.WaitForAll(context.Background(), time.Second)
}

func TestTaskFinishedBeforeCheckIsNotified(t *testing.T) {
	tasks := newTasks()
	fake := &fakeAgent{onTurn: func(ctx context.Context, turn int) {
		if turn == 1 {
			delegate(t, tasks, "call-1", func(ctx context.Context) (string, error) { return "quick", nil })
			tasks.WaitForOne(ctx, 1, time.Second)
		}
	}}
	orch := New(fake, tasks, Config{Logger: logging.Nop()})

	res, err := orch.Run(context.Background(), initialState())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Invocations)
	assert.Len(t, notifications(res.State), 1)
}

func TestNilStateDegradesToLastGoodState(t *testing.T) {
	fake := &fakeAgent{returnNil: true}
	state := initialState()
	res, err := New(fake, newTasks(), Config{Logger: logging.Nop()}).Run(context.Background(), state)
	require.NoError(t, err)
	assert.Same(t, state, res.State)
	assert.True(t, sharederrors.IsDegraded(res.Degraded))
}

func TestInvokeErrorPropagates(t *testing.T) {
	boom := errors.New("model unavailable")
	res, err := New(&fakeAgent{invokeErr: boom}, newTasks(), Config{Logger: logging.Nop()}).Run(context.Background(), initialState())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res.Invocations)
}

func TestStreamForwardsEventsAndUsesSnapshot(t *testing.T) {
	tasks := newTasks()
	fake := &fakeAgent{onTurn: func(ctx context.Context, turn int) {
		if turn == 1 {
			delegate(t, tasks, "call-1", finishesAfter(10*time.Millisecond, "streamed"))
		}
	}}
	var mu sync.Mutex
	var events []agent.AgentEvent
	listener := agent.EventListenerFunc(func(e agent.AgentEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	orch := New(fake, tasks, Config{AutoWait: true, WaitTimeout: time.Second, Logger: logging.Nop()})

	res, err := orch.Stream(context.Background(), initialState(), listener)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Invocations)

	var types []string
	for _, e := range events {
		types = append(types, e.EventType())
	}
	assert.Equal(t, []string{"message", "background_notification", "message"}, types)
	note, ok := events[1].(*NotificationEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"Task-1"}, note.Tasks)

	// The second stream started from the snapshot plus the notification.
	require.Len(t, fake.seen, 2)
	assert.Equal(t, "turn 1", fake.seen[1].LastAssistant())
	assert.Len(t, notifications(fake.seen[1]), 1)
	assert.Equal(t, "turn 2", res.State.LastAssistant())
}

func TestStreamSnapshotFailureDegrades(t *testing.T) {
	fake := &fakeAgent{snapshotErr: errors.New("store offline")}
	state := initialState()
	res, err := New(fake, newTasks(), Config{Logger: logging.Nop()}).Stream(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Same(t, state, res.State)
	require.Error(t, res.Degraded)
	assert.Contains(t, res.Degraded.Error(), "store offline")
}

func TestStreamIterationLimitEvent(t *testing.T) {
	tasks := newTasks()
	fake := &fakeAgent{onTurn: func(ctx context.Context, turn int) {
		delegate(t, tasks, fmt.Sprintf("call-%d", turn), func(ctx context.Context) (string, error) { return "ok", nil })
	}}
	var limit *IterationLimitEvent
	listener := agent.EventListenerFunc(func(e agent.AgentEvent) {
		if ev, ok := e.(*IterationLimitEvent); ok {
			limit = ev
		}
	})
	res, err := New(fake, tasks, Config{MaxIterations: 1, AutoWait: true, Logger: logging.Nop()}).Stream(context.Background(), initialState(), listener)
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	require.NotNil(t, limit)
	assert.Equal(t, 1, limit.Invocations)
	assert.Equal(t, 1, limit.Limit)

	tasks.WaitForAll(context.Background(), time.Second)
}
