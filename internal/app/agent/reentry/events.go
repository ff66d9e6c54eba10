package reentry

import agent "offload/internal/domain/agent/ports/agent"

// NotificationEvent is emitted when a notification turn is injected.
type NotificationEvent struct {
	agent.BaseEvent
	Tasks   []string `json:"tasks"`
	Content string   `json:"content"`
}

func (e *NotificationEvent) EventType() string { return "background_notification" }

// IterationLimitEvent is emitted when the cycle stops at its bound.
type IterationLimitEvent struct {
	agent.BaseEvent
	Invocations int `json:"invocations"`
	Limit       int `json:"limit"`
}

func (e *IterationLimitEvent) EventType() string { return "iteration_limit" }
