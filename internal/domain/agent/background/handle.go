package background

import (
	"context"

	"offload/internal/shared/async"
	"offload/internal/shared/logging"
)

// Work is an opaque unit of delegated work.
type Work func(ctx context.Context) (string, error)

// Handle owns one running unit. Result fields are written once before done
// is closed.
type Handle struct {
	done   chan struct{}
	cancel context.CancelFunc
	result string
	err    error
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{done: make(chan struct{}), cancel: cancel}
}

func (h *Handle) finish(result string, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

// Done is closed when the unit terminates.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Finished reports whether the unit has terminated without blocking.
func (h *Handle) Finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Cancel requests cancellation of this unit's context.
func (h *Handle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

// Result blocks until the unit terminates and returns its outcome.
func (h *Handle) Result() (string, error) {
	<-h.done
	return h.result, h.err
}

// Launch starts work as an inner unit supervised by a wrapper unit.
//
// The inner unit runs on a context that keeps ctx values but not its
// cancellation. When the wrapper is cancelled, directly or through ctx, it
// keeps awaiting the inner unit and then reports the inner result. Only
// cancelling the inner handle stops the work itself.
func Launch(ctx context.Context, logger logging.Logger, name string, work Work) (wrapper, inner *Handle) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger = logging.OrNop(logger)

	innerCtx, innerCancel := context.WithCancel(context.WithoutCancel(ctx))
	inner = newHandle(innerCancel)
	go func() {
		var (
			result string
			err    error
		)
		defer func() {
			innerCancel()
			inner.finish(result, err)
		}()
		defer async.RecoverInto(logger, "background unit", &err)
		result, err = work(innerCtx)
	}()

	wrapperCtx, wrapperCancel := context.WithCancel(ctx)
	wrapper = newHandle(wrapperCancel)
	async.Go(logger, name, func() {
		defer wrapperCancel()
		select {
		case <-inner.Done():
		case <-wrapperCtx.Done():
			logger.Debug("%s: wrapper cancelled, awaiting inner unit", name)
			<-inner.Done()
		}
		wrapper.finish(inner.result, inner.err)
	})
	return wrapper, inner
}
