package async

import (
	"fmt"
	"runtime/debug"
)

// PanicLogger captures panic reports from background goroutines.
type PanicLogger interface {
	Error(format string, args ...any)
}

// Go runs fn in a goroutine guarded by panic recovery.
func Go(logger PanicLogger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover logs panic details without crashing the process.
func Recover(logger PanicLogger, name string) {
	if r := recover(); r != nil {
		report(logger, name, r)
	}
}

// RecoverInto converts a panic into an error stored at errp, logging the stack.
// It must be deferred directly by the function whose panic it handles.
func RecoverInto(logger PanicLogger, name string, errp *error) {
	if r := recover(); r != nil {
		report(logger, name, r)
		if errp != nil {
			*errp = fmt.Errorf("%s panicked: %v", labelOr(name, "goroutine"), r)
		}
	}
}

func report(logger PanicLogger, name string, r any) {
	if logger == nil {
		return
	}
	if name == "" {
		logger.Error("goroutine panic: %v, stack: %s", r, debug.Stack())
		return
	}
	logger.Error("goroutine panic [%s]: %v, stack: %s", name, r, debug.Stack())
}

func labelOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
