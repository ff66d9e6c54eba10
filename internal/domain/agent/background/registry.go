package background

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	agent "offload/internal/domain/agent/ports/agent"
	sharederrors "offload/internal/shared/errors"
	"offload/internal/shared/logging"
)

const tracerName = "offload/background"

// Config wires optional collaborators into a Registry.
type Config struct {
	Logger  logging.Logger
	Clock   agent.Clock
	Metrics Metrics
}

// Registry owns the background tasks of one session. Every mutation happens
// under mu; status queries take the read lock against a best-effort view.
type Registry struct {
	mu         sync.RWMutex
	tasks      map[string]*task
	byNumber   map[int]string
	nextNumber int

	logger  logging.Logger
	clock   agent.Clock
	metrics Metrics
	tracer  trace.Tracer
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("BackgroundRegistry")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = agent.SystemClock{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Registry{
		tasks:      make(map[string]*task),
		byNumber:   make(map[int]string),
		nextNumber: 1,
		logger:     logger,
		clock:      clock,
		metrics:    metrics,
		tracer:     otel.Tracer(tracerName),
	}
}

// Register assigns the next sequence number to a new task.
func (r *Registry) Register(correlationID, description, kind string) (Task, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return Task{}, fmt.Errorf("correlation id is required")
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "general"
	}

	r.mu.Lock()
	if _, exists := r.tasks[correlationID]; exists {
		r.mu.Unlock()
		return Task{}, fmt.Errorf("%w: %s", sharederrors.ErrDuplicateTask, correlationID)
	}
	now := r.clock.Now()
	t := &task{
		correlationID: correlationID,
		number:        r.nextNumber,
		description:   strings.TrimSpace(description),
		kind:          kind,
		createdAt:     now,
		lastUpdate:    now,
		settled:       make(chan struct{}),
	}
	r.nextNumber++
	r.tasks[correlationID] = t
	r.byNumber[t.number] = correlationID
	snap := t.snapshot()
	r.mu.Unlock()

	r.metrics.TaskRegistered(kind)
	r.logger.Info("Registered %s (%s) for call %s", snap.DisplayID(), kind, correlationID)
	return snap, nil
}

// Start launches work for a registered task as a shielded background unit.
// Work receives a context carrying the task's operation reporter.
func (r *Registry) Start(ctx context.Context, correlationID string, work Work) error {
	if work == nil {
		return fmt.Errorf("work is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[correlationID]
	if !ok {
		return fmt.Errorf("%w: %s", sharederrors.ErrTaskNotFound, correlationID)
	}
	if t.handle != nil {
		return fmt.Errorf("background task %s already started", correlationID)
	}
	if t.completed {
		// Cancelled between registration and launch.
		return nil
	}

	workCtx := WithOperationReporter(ctx, func(op string) {
		r.recordOperation(correlationID, op)
	})
	t.handle, t.inner = Launch(workCtx, r.logger, "bg:"+DisplayID(t.number), func(ctx context.Context) (string, error) {
		result, err := work(ctx)
		if err != nil && !sharederrors.IsPermanent(err) {
			err = sharederrors.NewPermanentError(err, err.Error())
		}
		return result, err
	})
	return nil
}

// GetByID looks a task up by correlation id, reconciling its state first.
func (r *Registry) GetByID(correlationID string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[correlationID]
	if !ok {
		return Task{}, false
	}
	r.reconcileLocked(t)
	return t.snapshot(), true
}

// GetByNumber looks a task up by sequence number, reconciling its state first.
func (r *Registry) GetByNumber(number int) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.taskByNumberLocked(number)
	if !ok {
		return Task{}, false
	}
	r.reconcileLocked(t)
	return t.snapshot(), true
}

// Tasks returns every task ordered by sequence number, reconciled.
func (r *Registry) Tasks() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		r.reconcileLocked(t)
		out = append(out, t.snapshot())
	}
	sortTasks(out)
	return out
}

// WaitForOne blocks until the task terminates, ctx ends, or timeout elapses.
// It never cancels the work; on timeout the outcome is StatusRunning.
func (r *Registry) WaitForOne(ctx context.Context, number int, timeout time.Duration) Outcome {
	started := r.clock.Now()
	ctx, span := r.tracer.Start(ctx, "offload.background.wait",
		trace.WithAttributes(attribute.String("scope", "one"), attribute.Int("task.number", number)))
	defer span.End()

	r.mu.Lock()
	t, ok := r.taskByNumberLocked(number)
	if !ok {
		r.mu.Unlock()
		return notFound(number)
	}
	r.reconcileLocked(t)
	if t.completed || t.handle == nil {
		out := t.snapshot().Outcome()
		r.mu.Unlock()
		return out
	}
	handle, settled := t.handle, t.settled
	r.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	awaitUnit(waitCtx, handle, settled)

	out := r.outcomeFor(t)
	span.SetAttributes(attribute.String("task.status", string(out.Status)))
	resolved := 0
	if out.Resolved() {
		resolved = 1
	}
	r.metrics.WaitObserved("one", resolved, r.clock.Now().Sub(started))
	return out
}

// WaitForAll snapshots every non-completed task with a live handle and waits
// for all of them up to timeout. The result holds exactly one outcome per
// snapshotted task; those still unresolved at the deadline are StatusRunning.
func (r *Registry) WaitForAll(ctx context.Context, timeout time.Duration) map[string]Outcome {
	started := r.clock.Now()
	ctx, span := r.tracer.Start(ctx, "offload.background.wait",
		trace.WithAttributes(attribute.String("scope", "all")))
	defer span.End()

	r.mu.Lock()
	targets := make([]*task, 0, len(r.tasks))
	for _, t := range r.tasks {
		r.reconcileLocked(t)
		if !t.completed && t.handle != nil {
			targets = append(targets, t)
		}
	}
	type waitTarget struct {
		handle  *Handle
		settled chan struct{}
	}
	waits := make([]waitTarget, len(targets))
	for i, t := range targets {
		waits[i] = waitTarget{handle: t.handle, settled: t.settled}
	}
	r.mu.Unlock()

	outcomes := make(map[string]Outcome, len(targets))
	if len(targets) == 0 {
		return outcomes
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(waitCtx)
	for _, w := range waits {
		g.Go(func() error {
			awaitUnit(gctx, w.handle, w.settled)
			return nil
		})
	}
	_ = g.Wait()

	resolved := 0
	for _, t := range targets {
		out := r.outcomeFor(t)
		if out.Resolved() {
			resolved++
		}
		outcomes[out.CorrelationID] = out
	}
	span.SetAttributes(attribute.Int("tasks.waited", len(targets)), attribute.Int("tasks.resolved", resolved))
	r.metrics.WaitObserved("all", resolved, r.clock.Now().Sub(started))
	r.logger.Debug("WaitForAll: %d/%d resolved", resolved, len(targets))
	return outcomes
}

// Cancel cancels a task's wrapper. With force the underlying work is
// cancelled too and the task completes at once with ErrTaskCancelled.
// Without force the work runs on and the task completes with whatever the
// work eventually returns. It returns false for unknown or already completed
// tasks and for a repeated soft cancel.
func (r *Registry) Cancel(correlationID string, force bool) bool {
	r.mu.Lock()
	t, ok := r.tasks[correlationID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	cancelled := r.cancelLocked(t, force)
	r.mu.Unlock()
	return cancelled
}

// CancelByNumber is Cancel addressed by sequence number.
func (r *Registry) CancelByNumber(number int, force bool) bool {
	r.mu.Lock()
	t, ok := r.taskByNumberLocked(number)
	if !ok {
		r.mu.Unlock()
		return false
	}
	cancelled := r.cancelLocked(t, force)
	r.mu.Unlock()
	return cancelled
}

// CancelAll cancels every non-completed task and returns how many it cancelled.
func (r *Registry) CancelAll(force bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, t := range r.tasks {
		if r.cancelLocked(t, force) {
			count++
		}
	}
	return count
}

// Shutdown force-cancels all outstanding work, including units that were
// already cancelled without force.
func (r *Registry) Shutdown() {
	if n := r.CancelAll(true); n > 0 {
		r.logger.Info("Shutdown cancelled %d background task(s)", n)
	}
}

// MarkSeen flips result_seen for a completed task. It returns true only for
// the call that performed the flip.
func (r *Registry) MarkSeen(number int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.taskByNumberLocked(number)
	if !ok {
		return false
	}
	r.reconcileLocked(t)
	if !t.completed || t.resultSeen {
		return false
	}
	t.resultSeen = true
	return true
}

// TakeUndelivered returns completed tasks whose result has not been seen and
// marks them seen in the same critical section.
func (r *Registry) TakeUndelivered() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Task
	for _, t := range r.tasks {
		r.reconcileLocked(t)
		if t.completed && !t.resultSeen {
			t.resultSeen = true
			out = append(out, t.snapshot())
		}
	}
	sortTasks(out)
	return out
}

// HasUndelivered reports whether a completed task is waiting to be seen,
// without marking anything.
func (r *Registry) HasUndelivered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		r.reconcileLocked(t)
		if t.completed && !t.resultSeen {
			return true
		}
	}
	return false
}

// HasPending reports whether any task is not yet completed.
func (r *Registry) HasPending() bool {
	return r.PendingCount() > 0
}

// PendingCount returns the number of non-completed tasks.
func (r *Registry) PendingCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, t := range r.tasks {
		if !t.completed && !(t.handle != nil && t.handle.Finished()) {
			count++
		}
	}
	return count
}

// TaskCount returns the number of tracked tasks.
func (r *Registry) TaskCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Clear drops all bookkeeping without cancelling running work. Sequence
// numbers keep increasing across clears.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = make(map[string]*task)
	r.byNumber = make(map[int]string)
}

// Now exposes the registry clock to status renderers.
func (r *Registry) Now() time.Time {
	return r.clock.Now()
}

func (r *Registry) outcomeFor(t *task) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconcileLocked(t)
	return t.snapshot().Outcome()
}

func (r *Registry) taskByNumberLocked(number int) (*task, bool) {
	id, ok := r.byNumber[number]
	if !ok {
		return nil, false
	}
	t, ok := r.tasks[id]
	return t, ok
}

// reconcileLocked folds a finished handle into the task.
func (r *Registry) reconcileLocked(t *task) {
	if t.completed || t.handle == nil || !t.handle.Finished() {
		return
	}
	result, err := t.handle.Result()
	r.completeLocked(t, result, err)
}

func (r *Registry) cancelLocked(t *task, force bool) bool {
	r.reconcileLocked(t)
	if t.completed {
		return false
	}
	if t.handle != nil && !force {
		// The wrapper keeps awaiting the inner unit, so reconciliation
		// records the real result once the work ends.
		if t.detached {
			return false
		}
		t.detached = true
		t.handle.Cancel()
		r.logger.Info("Cancelled %s wrapper, work keeps running", DisplayID(t.number))
		return true
	}
	r.completeLocked(t, "", sharederrors.ErrTaskCancelled)
	if t.handle != nil {
		t.handle.Cancel()
	}
	if t.inner != nil {
		t.inner.Cancel()
	}
	r.logger.Info("Cancelled %s (force=%t)", DisplayID(t.number), force)
	return true
}

func (r *Registry) completeLocked(t *task, result string, err error) {
	t.result = result
	t.err = err
	t.completed = true
	t.lastUpdate = r.clock.Now()
	close(t.settled)

	status := statusFor(true, err)
	r.metrics.TaskResolved(t.kind, status, t.lastUpdate.Sub(t.createdAt))
	if status == StatusFailed {
		r.logger.Warn("%s failed: %v", DisplayID(t.number), err)
	} else {
		r.logger.Debug("%s %s", DisplayID(t.number), status)
	}
}

func (r *Registry) recordOperation(correlationID, operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[correlationID]
	if !ok || t.completed {
		return
	}
	if t.tally == nil {
		t.tally = make(map[string]int)
	}
	t.tally[operation]++
	t.totalCalls++
	t.currentOp = operation
	t.lastUpdate = r.clock.Now()
}

func awaitUnit(ctx context.Context, handle *Handle, settled <-chan struct{}) {
	select {
	case <-handle.Done():
	case <-settled:
	case <-ctx.Done():
	}
}

func sortTasks(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Number < tasks[j].Number
	})
}
