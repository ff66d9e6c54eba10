package toolregistry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"offload/internal/domain/agent/background"
	"offload/internal/domain/agent/ports"
	"offload/internal/infra/tools/builtin/orchestration"
	"offload/internal/infra/tools/builtin/shared"
	"offload/internal/shared/logging"
)

// DelegateToolName is the call name the delegation interceptor reroutes.
const DelegateToolName = orchestration.DelegateToolName

// NewDelegationInterceptor reroutes delegate calls into the background
// registry. The call is registered under its own ID, the continuation runs
// as a shielded background unit, and an acknowledgment carrying the same ID
// returns immediately. Other calls, and delegate calls made from inside
// delegated work, pass through unchanged.
func NewDelegationInterceptor(tasks *background.Registry, logger logging.Logger) Interceptor {
	logger = logging.OrNop(logger)
	return func(ctx context.Context, call ports.ToolCall, next Continuation) (*ports.ToolResult, error) {
		if call.Name != DelegateToolName || tasks == nil || background.InBackground(ctx) {
			return next(ctx, call)
		}

		description, errResult := shared.RequireStringArg(call.Arguments, call.ID, "description")
		if errResult != nil {
			return errResult, nil
		}
		kind, errResult := shared.RequireStringArg(call.Arguments, call.ID, "kind")
		if errResult != nil {
			return errResult, nil
		}

		task, err := tasks.Register(call.ID, description, kind)
		if err != nil {
			return shared.ToolError(call.ID, "failed to register background task: %v", err)
		}

		work := func(ctx context.Context) (string, error) {
			result, err := next(ctx, call)
			if err != nil {
				return "", err
			}
			if result == nil {
				return "", errors.New("delegated work returned no result")
			}
			if result.Error != nil {
				return result.Content, result.Error
			}
			return result.Content, nil
		}
		if err := tasks.Start(ctx, call.ID, work); err != nil {
			tasks.Cancel(call.ID, true)
			return shared.ToolError(call.ID, "failed to start background task: %v", err)
		}

		logger.Info("Delegated %s (%s): %s", task.DisplayID(), task.Kind, shared.ContentSnippet(description, 80))
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: acknowledgment(task),
			Metadata: map[string]any{
				"background":  true,
				"task_number": task.Number,
				"display_id":  task.DisplayID(),
				"kind":        task.Kind,
			},
		}, nil
	}
}

func acknowledgment(task background.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) is running in the background: %s\n", task.DisplayID(), task.Kind, task.Description)
	b.WriteString("Continue with other work. You will be notified when it completes.\n")
	fmt.Fprintf(&b, "To check progress call task_output(task_number=%d); to block until it finishes call wait(task_number=%d).", task.Number, task.Number)
	return b.String()
}
