package background

import "context"

// OperationReporter records a sub-operation performed by delegated work.
type OperationReporter func(operation string)

type reporterKey struct{}

// WithOperationReporter attaches a reporter to ctx.
func WithOperationReporter(ctx context.Context, reporter OperationReporter) context.Context {
	if ctx == nil || reporter == nil {
		return ctx
	}
	return context.WithValue(ctx, reporterKey{}, reporter)
}

// ReportOperation records operation against the task running on ctx, if any.
func ReportOperation(ctx context.Context, operation string) {
	if ctx == nil || operation == "" {
		return
	}
	if reporter, ok := ctx.Value(reporterKey{}).(OperationReporter); ok && reporter != nil {
		reporter(operation)
	}
}

// InBackground reports whether ctx belongs to delegated work.
func InBackground(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	_, ok := ctx.Value(reporterKey{}).(OperationReporter)
	return ok
}
