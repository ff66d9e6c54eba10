package reentry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"offload/internal/domain/agent/background"
	"offload/internal/domain/agent/ports"
	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/observability"
	"offload/internal/shared/async"
	sharederrors "offload/internal/shared/errors"
	"offload/internal/shared/logging"
)

const (
	ModeInvoke = "invoke"
	ModeStream = "stream"

	defaultMaxIterations = 10
	defaultWaitTimeout   = 30 * time.Second
	tracerName           = "offload/reentry"
)

// TaskSource is the slice of the background registry the orchestrator reads.
type TaskSource interface {
	TakeUndelivered() []background.Task
	HasUndelivered() bool
	HasPending() bool
	PendingCount() int
	WaitForAll(ctx context.Context, timeout time.Duration) map[string]background.Outcome
}

// Metrics receives orchestrator counters. observability.MetricsCollector
// satisfies it.
type Metrics interface {
	Invocation(mode string)
	NotificationInjected(tasks int)
	IterationLimitReached()
}

// Config controls the re-invocation cycle.
type Config struct {
	MaxIterations int
	AutoWait      bool
	WaitTimeout   time.Duration
	Logger        logging.Logger
	Metrics       Metrics
	Clock         agent.Clock
}

// RunResult is what one outer cycle produced.
type RunResult struct {
	State         *ports.ConversationState
	Invocations   int
	Notifications int
	// Exhausted is set when the cycle stopped at MaxIterations with work
	// still to deliver.
	Exhausted bool
	// Degraded carries the soft condition that ended the cycle, if any.
	Degraded error
}

// Orchestrator wraps the primary loop and re-invokes it while background
// results are waiting to be delivered.
type Orchestrator struct {
	agent         agent.Invoker
	tasks         TaskSource
	maxIterations int
	autoWait      bool
	waitTimeout   time.Duration
	logger        logging.Logger
	metrics       Metrics
	clock         agent.Clock
	tracer        trace.Tracer
}

func New(invoker agent.Invoker, tasks TaskSource, config Config) *Orchestrator {
	logger := config.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("ReentryOrchestrator")
	}
	maxIterations := config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	waitTimeout := config.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	clock := config.Clock
	if clock == nil {
		clock = agent.SystemClock{}
	}
	return &Orchestrator{
		agent:         invoker,
		tasks:         tasks,
		maxIterations: maxIterations,
		autoWait:      config.AutoWait,
		waitTimeout:   waitTimeout,
		logger:        logger,
		metrics:       metrics,
		clock:         clock,
		tracer:        otel.Tracer(tracerName),
	}
}

// Run drives single-shot invocations until nothing is left to deliver, the
// caller must take over, or the iteration bound is reached.
func (o *Orchestrator) Run(ctx context.Context, state *ports.ConversationState) (RunResult, error) {
	return o.cycle(ctx, state, ModeInvoke, nil)
}

// Stream is Run for the streaming surface. Agent events are forwarded to
// listener as they arrive; the delivery check runs at stream boundaries and
// each re-invocation starts from a fresh Snapshot.
func (o *Orchestrator) Stream(ctx context.Context, state *ports.ConversationState, listener agent.EventListener) (RunResult, error) {
	if listener == nil {
		listener = agent.NoopEventListener{}
	}
	return o.cycle(ctx, state, ModeStream, listener)
}

func (o *Orchestrator) cycle(ctx context.Context, state *ports.ConversationState, mode string, listener agent.EventListener) (RunResult, error) {
	if o.agent == nil {
		return RunResult{State: state}, fmt.Errorf("agent invoker is required")
	}
	if state == nil {
		state = &ports.ConversationState{}
	}
	result := RunResult{State: state}

	for {
		next, err := o.invoke(ctx, result.State, mode, result.Invocations+1, listener)
		result.Invocations++
		if err != nil {
			if sharederrors.IsDegraded(err) {
				o.logger.Warn("Returning last good state: %v", err)
				result.Degraded = err
				return result, nil
			}
			return result, err
		}
		result.State = next

		if o.tasks == nil {
			return result, nil
		}
		if result.Invocations >= o.maxIterations {
			if o.hasMoreWork() {
				result.Exhausted = true
				result.Degraded = o.iterationLimit(result, listener)
			}
			return result, nil
		}

		notified, delivered, err := o.deliver(ctx, result.State, listener)
		if err != nil {
			o.logger.Warn("Background bookkeeping failed, returning control: %v", err)
			result.Degraded = sharederrors.NewDegradedError(err, "bookkeeping", "background bookkeeping failed")
			return result, nil
		}
		if delivered == 0 {
			return result, nil
		}
		result.State = notified
		result.Notifications++
	}
}

func (o *Orchestrator) invoke(ctx context.Context, state *ports.ConversationState, mode string, iteration int, listener agent.EventListener) (*ports.ConversationState, error) {
	attrs := append(observability.SessionAttrs(state.SessionID),
		attribute.Int(observability.AttrIteration, iteration),
		attribute.String("offload.mode", mode),
	)
	ctx, span := o.tracer.Start(ctx, observability.SpanReentryInvoke, trace.WithAttributes(attrs...))
	defer span.End()
	o.metrics.Invocation(mode)

	var next *ports.ConversationState
	var err error
	if mode == ModeStream {
		next, err = o.stream(ctx, state, listener)
	} else {
		next, err = o.agent.Invoke(ctx, state.Clone())
		if err == nil && next == nil {
			err = sharederrors.NewDegradedError(errors.New("agent returned no state"), "nil_state", "agent returned no state")
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return next, err
}

func (o *Orchestrator) stream(ctx context.Context, state *ports.ConversationState, listener agent.EventListener) (*ports.ConversationState, error) {
	if err := o.agent.Stream(ctx, state.Clone(), listener); err != nil {
		return nil, err
	}
	snapshot, err := o.agent.Snapshot(ctx)
	if err != nil {
		return nil, sharederrors.NewDegradedError(err, "snapshot", "could not fetch conversation state after stream")
	}
	if snapshot == nil {
		return nil, sharederrors.NewDegradedError(errors.New("snapshot returned no state"), "nil_state", "agent returned no state")
	}
	return snapshot, nil
}

// deliver collects undelivered completions, waiting for pending work in
// auto-wait mode, and appends one notification turn for them. It returns the
// number of tasks announced.
func (o *Orchestrator) deliver(ctx context.Context, state *ports.ConversationState, listener agent.EventListener) (next *ports.ConversationState, delivered int, err error) {
	defer async.RecoverInto(o.logger, "reentry bookkeeping", &err)

	ready := o.collect(ctx)
	if len(ready) == 0 {
		return state, 0, nil
	}

	content := Notification(ready)
	next = state.Clone()
	next.Messages = append(next.Messages, ports.Message{
		Role:    ports.RoleUser,
		Content: content,
		Source:  ports.MessageSourceBackgroundNotification,
	})

	ids := make([]string, 0, len(ready))
	for _, task := range ready {
		ids = append(ids, task.DisplayID())
	}
	o.metrics.NotificationInjected(len(ready))
	o.logger.Info("Injected background notification for %s", strings.Join(ids, ", "))
	if listener != nil {
		listener.OnEvent(&NotificationEvent{
			BaseEvent: agent.NewBaseEvent(state.SessionID, o.clock.Now()),
			Tasks:     ids,
			Content:   content,
		})
	}
	return next, len(ready), nil
}

func (o *Orchestrator) collect(ctx context.Context) []background.Task {
	for {
		// Count before taking so a task finishing in between is still taken.
		pending := o.tasks.PendingCount()
		if ready := o.tasks.TakeUndelivered(); len(ready) > 0 {
			return ready
		}
		if pending == 0 {
			return nil
		}
		if !o.autoWait {
			o.logger.Debug("%d background task(s) still running; returning control", pending)
			return nil
		}
		o.logger.Info("Waiting up to %s for %d background task(s)", o.waitTimeout, pending)
		if resolvedCount(o.tasks.WaitForAll(ctx, o.waitTimeout)) == 0 {
			o.logger.Warn("No background task finished within %s; returning control", o.waitTimeout)
			return nil
		}
	}
}

func (o *Orchestrator) hasMoreWork() bool {
	return o.tasks.HasUndelivered() || (o.autoWait && o.tasks.HasPending())
}

func (o *Orchestrator) iterationLimit(result RunResult, listener agent.EventListener) error {
	err := sharederrors.NewDegradedError(
		fmt.Errorf("reached %d invocations", o.maxIterations),
		"iteration_limit",
		"background results are still waiting; retrieve them with task_output",
	)
	o.logger.Warn("Iteration limit reached, returning last state: %v", err)
	o.metrics.IterationLimitReached()
	if listener != nil {
		listener.OnEvent(&IterationLimitEvent{
			BaseEvent:   agent.NewBaseEvent(result.State.SessionID, o.clock.Now()),
			Invocations: result.Invocations,
			Limit:       o.maxIterations,
		})
	}
	return err
}

func resolvedCount(outcomes map[string]background.Outcome) int {
	count := 0
	for _, out := range outcomes {
		if out.Resolved() {
			count++
		}
	}
	return count
}

type nopMetrics struct{}

func (nopMetrics) Invocation(string)        {}
func (nopMetrics) NotificationInjected(int) {}
func (nopMetrics) IterationLimitReached()   {}
