package background

import "time"

// Metrics receives registry lifecycle signals.
type Metrics interface {
	TaskRegistered(kind string)
	TaskResolved(kind string, status Status, elapsed time.Duration)
	WaitObserved(scope string, resolved int, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) TaskRegistered(string)                      {}
func (nopMetrics) TaskResolved(string, Status, time.Duration) {}
func (nopMetrics) WaitObserved(string, int, time.Duration)    {}
