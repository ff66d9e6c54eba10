package ports

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// MessageSourceBackgroundNotification tags turns injected when background
// work has results ready.
const MessageSourceBackgroundNotification = "background_notification"

// Message is one turn of a conversation.
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Source      string       `json:"source,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ConversationState is the state the primary loop reads and extends.
type ConversationState struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

// Clone returns a copy whose message slice can be appended to independently.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := &ConversationState{SessionID: s.SessionID}
	if len(s.Messages) > 0 {
		out.Messages = append([]Message(nil), s.Messages...)
	}
	return out
}

// LastAssistant returns the content of the latest assistant turn.
func (s *ConversationState) LastAssistant() string {
	if s == nil {
		return ""
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}
