package agent

import "time"

// AgentEvent represents an event emitted while the primary loop runs.
type AgentEvent interface {
	EventType() string
	Timestamp() time.Time
	GetSessionID() string
}

// EventListener consumes agent events (used by CLI/streaming layers)
type EventListener interface {
	OnEvent(event AgentEvent)
}

// EventListenerFunc adapts a function to EventListener.
type EventListenerFunc func(AgentEvent)

// OnEvent calls f(event).
func (f EventListenerFunc) OnEvent(event AgentEvent) {
	if f != nil {
		f(event)
	}
}

// NoopEventListener is an EventListener implementation that discards all events.
type NoopEventListener struct{}

// OnEvent discards the event without processing.
func (NoopEventListener) OnEvent(event AgentEvent) {}

// BaseEvent carries the fields shared by every event.
type BaseEvent struct {
	At      time.Time `json:"timestamp"`
	Session string    `json:"session_id"`
}

// NewBaseEvent stamps a base event.
func NewBaseEvent(sessionID string, at time.Time) BaseEvent {
	return BaseEvent{At: at, Session: sessionID}
}

func (e BaseEvent) Timestamp() time.Time { return e.At }
func (e BaseEvent) GetSessionID() string { return e.Session }

// MessageEvent reports a turn appended by the primary loop.
type MessageEvent struct {
	BaseEvent
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (e *MessageEvent) EventType() string { return "message" }

// ToolCallEvent reports a tool call executed by the primary loop.
type ToolCallEvent struct {
	BaseEvent
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Failed  bool   `json:"failed"`
}

func (e *ToolCallEvent) EventType() string { return "tool_call" }
