package background

import (
	"sort"

	agent "offload/internal/domain/agent/ports/agent"
)

// DescriptionLimit caps descriptions in status reports, in runes.
const DescriptionLimit = 60

// Report builds the status structure used by external UIs. It reads a
// best-effort view and never includes raw results.
func (r *Registry) Report() agent.StatusReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := agent.StatusReport{Tasks: make([]agent.TaskStatus, 0, len(r.tasks))}
	for _, t := range r.tasks {
		snap := t.snapshot()
		if !snap.Completed && t.handle != nil && t.handle.Finished() {
			// Finished but not yet reconciled; show the pending result state.
			snap.Completed = true
			snap.Result, snap.Err = t.handle.Result()
		}
		state := snap.State()
		if state == agent.TaskStateRunning {
			report.Pending++
		} else {
			report.Completed++
		}
		report.Tasks = append(report.Tasks, agent.TaskStatus{
			DisplayID:   snap.DisplayID(),
			Number:      snap.Number,
			Kind:        snap.Kind,
			Description: Truncate(snap.Description, DescriptionLimit),
			State:       state,
		})
	}
	report.Total = len(report.Tasks)
	sort.Slice(report.Tasks, func(i, j int) bool {
		return report.Tasks[i].Number < report.Tasks[j].Number
	})
	return report
}

// Progress returns a progress snapshot for one task.
func (r *Registry) Progress(number int) (agent.TaskProgress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.taskByNumberLocked(number)
	if !ok {
		return agent.TaskProgress{}, false
	}
	return t.snapshot().Progress(r.clock.Now()), true
}

// Truncate shortens s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
