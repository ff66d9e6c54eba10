package reentry

import (
	"fmt"
	"strings"

	"offload/internal/domain/agent/background"
)

// Notification renders the turn announcing finished background tasks. It
// names each task and tells the loop how to fetch results; the results
// themselves only flow through task_output and wait.
func Notification(tasks []background.Task) string {
	switch len(tasks) {
	case 0:
		return ""
	case 1:
		task := tasks[0]
		return fmt.Sprintf("Background task %s (%s) %s. Call task_output(task_number=%d) to retrieve the result.",
			task.DisplayID(), background.Truncate(task.Description, background.DescriptionLimit), verb(task), task.Number)
	}

	parts := make([]string, 0, len(tasks))
	for _, task := range tasks {
		parts = append(parts, fmt.Sprintf("%s (%s)", task.DisplayID(), verb(task)))
	}
	return fmt.Sprintf("%d background tasks finished: %s. Call task_output(task_number=N) for each to retrieve the results.",
		len(tasks), strings.Join(parts, ", "))
}

func verb(task background.Task) string {
	switch task.Outcome().Status {
	case background.StatusFailed:
		return "failed"
	case background.StatusCancelled:
		return "was cancelled"
	default:
		return "completed"
	}
}
