package reentry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"offload/internal/domain/agent/background"
	sharederrors "offload/internal/shared/errors"
)

func TestNotificationPhrasing(t *testing.T) {
	done := background.Task{Number: 1, Description: "crawl the docs", Completed: true, Result: "ok"}
	failed := background.Task{Number: 2, Description: "simulate", Completed: true, Err: errors.New("boom")}
	cancelled := background.Task{Number: 3, Description: "simulate", Completed: true, Err: sharederrors.ErrTaskCancelled}

	assert.Empty(t, Notification(nil))
	assert.Equal(t,
		"Background task Task-1 (crawl the docs) completed. Call task_output(task_number=1) to retrieve the result.",
		Notification([]background.Task{done}))
	assert.Contains(t, Notification([]background.Task{failed}), "Task-2 (simulate) failed.")

	plural := Notification([]background.Task{done, failed, cancelled})
	assert.Equal(t,
		"3 background tasks finished: Task-1 (completed), Task-2 (failed), Task-3 (was cancelled). Call task_output(task_number=N) for each to retrieve the results.",
		plural)
}
