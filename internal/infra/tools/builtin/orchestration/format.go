package orchestration

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"offload/internal/domain/agent/background"
	agent "offload/internal/domain/agent/ports/agent"
	sharederrors "offload/internal/shared/errors"
)

// FailureMarker prefixes failed outcomes so they stand apart from successes.
const FailureMarker = "[FAILED]"

// formatOutcome renders a resolved or unresolved outcome for the model.
// progress is used for still-running tasks and may be nil.
func formatOutcome(out background.Outcome, progress *agent.TaskProgress) string {
	id := out.DisplayID()
	switch out.Status {
	case background.StatusCompleted:
		result := strings.TrimSpace(out.Result)
		if result == "" {
			result = "(no output)"
		}
		return fmt.Sprintf("%s completed:\n%s", id, result)
	case background.StatusFailed:
		return fmt.Sprintf("%s %s %s", FailureMarker, id, sharederrors.FormatForLLM(out.Err))
	case background.StatusCancelled:
		return fmt.Sprintf("%s was cancelled.", id)
	case background.StatusNotFound:
		return fmt.Sprintf("%s not found. Check the task number.", id)
	default:
		if progress != nil {
			return formatProgress(*progress)
		}
		return fmt.Sprintf("%s is still running. This is not a failure; check again later with task_output(task_number=%d).", id, out.Number)
	}
}

// formatProgress renders a running task's tally. Totals are cumulative.
func formatProgress(p agent.TaskProgress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is still running (%s elapsed). This is not a failure.", p.DisplayID, p.Elapsed.Round(time.Millisecond))
	if p.TotalCalls > 0 {
		names := make([]string, 0, len(p.ToolCalls))
		for name := range p.ToolCalls {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s x%d", name, p.ToolCalls[name]))
		}
		fmt.Fprintf(&b, "\nOperations so far: %d (%s)", p.TotalCalls, strings.Join(parts, ", "))
	}
	if p.CurrentOperation != "" {
		fmt.Fprintf(&b, "\nCurrent operation: %s", p.CurrentOperation)
	}
	fmt.Fprintf(&b, "\nCheck again later with task_output(task_number=%d) or block with wait(task_number=%d).", p.Number, p.Number)
	return b.String()
}

func outcomeMetadata(out background.Outcome, seen bool) map[string]any {
	meta := map[string]any{
		"task_number": out.Number,
		"display_id":  out.DisplayID(),
		"status":      string(out.Status),
	}
	if out.Resolved() {
		meta["first_delivery"] = seen
	}
	return meta
}
