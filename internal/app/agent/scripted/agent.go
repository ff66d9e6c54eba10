package scripted

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"offload/internal/domain/agent/ports"
	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/infra/tools/builtin/orchestration"
	"offload/internal/parser"
	"offload/internal/shared/logging"
	"offload/internal/shared/utils/id"
)

var taskRefPattern = regexp.MustCompile(`Task-(\d+)`)

// ToolCaller runs tool calls through the session pipeline.
type ToolCaller interface {
	Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)
}

// Config wires the agent.
type Config struct {
	Tools  ToolCaller
	Script Script
	Logger logging.Logger
	Clock  agent.Clock
}

// Agent is a deterministic primary loop. Each invocation either plays the
// next scripted turn or, when the conversation ends with a background
// notification, reads every announced task through task_output.
type Agent struct {
	tools  ToolCaller
	script Script
	parser *parser.Parser
	logger logging.Logger
	clock  agent.Clock

	mu     sync.Mutex
	cursor int
	last   *ports.ConversationState
}

func New(config Config) *Agent {
	logger := config.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("ScriptedAgent")
	}
	clock := config.Clock
	if clock == nil {
		clock = agent.SystemClock{}
	}
	return &Agent{
		tools:  config.Tools,
		script: config.Script,
		parser: parser.New(),
		logger: logger,
		clock:  clock,
	}
}

func (a *Agent) Invoke(ctx context.Context, state *ports.ConversationState) (*ports.ConversationState, error) {
	return a.run(ctx, state, agent.NoopEventListener{})
}

func (a *Agent) Stream(ctx context.Context, state *ports.ConversationState, listener agent.EventListener) error {
	if listener == nil {
		listener = agent.NoopEventListener{}
	}
	_, err := a.run(ctx, state, listener)
	return err
}

func (a *Agent) Snapshot(ctx context.Context) (*ports.ConversationState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return nil, fmt.Errorf("no conversation state yet")
	}
	return a.last.Clone(), nil
}

func (a *Agent) run(ctx context.Context, state *ports.ConversationState, listener agent.EventListener) (*ports.ConversationState, error) {
	if a.tools == nil {
		return nil, fmt.Errorf("tool caller is required")
	}
	if state == nil {
		state = &ports.ConversationState{}
	}
	next := state.Clone()

	if numbers := announcedTasks(next); len(numbers) > 0 {
		if err := a.play(ctx, next, followUp(numbers), listener); err != nil {
			return nil, err
		}
		if err := a.play(ctx, next, a.script.closing(), listener); err != nil {
			return nil, err
		}
	} else if err := a.play(ctx, next, a.nextTurn(), listener); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.last = next.Clone()
	a.mu.Unlock()
	return next, nil
}

func (a *Agent) nextTurn() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cursor >= len(a.script.Turns) {
		return a.script.closing()
	}
	turn := a.script.Turns[a.cursor]
	a.cursor++
	return turn
}

// play appends the assistant turn for content, executes its tool calls and
// appends their results as one tool turn.
func (a *Agent) play(ctx context.Context, state *ports.ConversationState, content string, listener agent.EventListener) error {
	calls := a.parser.ParseToolCalls(content)
	for i := range calls {
		calls[i].ID = id.NewCallID()
		calls[i].SessionID = state.SessionID
	}
	prose := parser.StripToolCalls(content)
	state.Messages = append(state.Messages, ports.Message{Role: ports.RoleAssistant, Content: prose, ToolCalls: calls})
	if prose != "" {
		listener.OnEvent(&agent.MessageEvent{
			BaseEvent: agent.NewBaseEvent(state.SessionID, a.clock.Now()),
			Role:      ports.RoleAssistant,
			Content:   prose,
		})
	}
	if len(calls) == 0 {
		return nil
	}

	results := make([]ports.ToolResult, 0, len(calls))
	outputs := make([]string, 0, len(calls))
	for _, call := range calls {
		res, err := a.tools.Execute(ctx, call)
		if err != nil {
			return fmt.Errorf("tool %s: %w", call.Name, err)
		}
		if res == nil {
			res = &ports.ToolResult{CallID: call.ID, Content: "no result"}
		}
		a.logger.Debug("Tool %s (%s) returned %d bytes", call.Name, call.ID, len(res.Content))
		results = append(results, *res)
		outputs = append(outputs, res.Content)
		listener.OnEvent(&agent.ToolCallEvent{
			BaseEvent: agent.NewBaseEvent(state.SessionID, a.clock.Now()),
			CallID:    call.ID,
			Name:      call.Name,
			Content:   res.Content,
			Failed:    res.Error != nil,
		})
	}
	state.Messages = append(state.Messages, ports.Message{
		Role:        ports.RoleTool,
		Content:     strings.Join(outputs, "\n\n"),
		ToolResults: results,
	})
	return nil
}

// announcedTasks returns the task numbers named by a trailing background
// notification.
func announcedTasks(state *ports.ConversationState) []int {
	if len(state.Messages) == 0 {
		return nil
	}
	last := state.Messages[len(state.Messages)-1]
	if last.Source != ports.MessageSourceBackgroundNotification {
		return nil
	}
	var numbers []int
	seen := map[int]bool{}
	for _, match := range taskRefPattern.FindAllStringSubmatch(last.Content, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	return numbers
}

func followUp(numbers []int) string {
	var b strings.Builder
	b.WriteString("Reading the finished background results.")
	for _, n := range numbers {
		fmt.Fprintf(&b, "\n<tool_call>{\"name\": %q, \"args\": {\"task_number\": %d}}</tool_call>", orchestration.TaskOutputToolName, n)
	}
	return b.String()
}
