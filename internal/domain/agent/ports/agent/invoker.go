package agent

import (
	"context"

	"offload/internal/domain/agent/ports"
)

// Invoker is the primary reasoning loop as seen by the re-entry orchestrator.
type Invoker interface {
	// Invoke runs one turn and returns the updated state.
	Invoke(ctx context.Context, state *ports.ConversationState) (*ports.ConversationState, error)
	// Stream runs one turn and forwards events to listener as they happen.
	Stream(ctx context.Context, state *ports.ConversationState, listener EventListener) error
	// Snapshot returns the authoritative state after a stream ends.
	Snapshot(ctx context.Context) (*ports.ConversationState, error)
}
