package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"offload/internal/domain/agent/ports"
	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/infra/tools/builtin/orchestration"
)

// MarkdownRenderer turns markdown into terminal text.
type MarkdownRenderer interface {
	Render(string) (string, error)
}

// CLIRenderer renders status reports, progress snapshots and conversations
// for terminal display.
type CLIRenderer struct {
	mdRenderer MarkdownRenderer
	width      int
	// verbose shows full tool results instead of their first line.
	verbose bool
}

const toolPreviewLimit = 120

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	kindStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cancelledStyle = lipgloss.NewStyle().Faint(true)
	roleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	noticeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	toolStyle      = lipgloss.NewStyle().Faint(true)

	failureColor = color.New(color.FgRed, color.Bold)
)

// NewCLIRenderer builds a renderer for w. The color profile is configured
// from w and markdown rendering uses glamour.
func NewCLIRenderer(w io.Writer, verbose bool) *CLIRenderer {
	ConfigureCLIColorProfile(w)
	return &CLIRenderer{
		mdRenderer: buildDefaultMarkdownRenderer(w),
		width:      detectOutputWidth(w),
		verbose:    verbose,
	}
}

// NewCLIRendererWithMarkdown allows tests to supply a lightweight markdown
// renderer and a fixed width. A zero width disables truncation.
func NewCLIRendererWithMarkdown(md MarkdownRenderer, width int, verbose bool) *CLIRenderer {
	return &CLIRenderer{mdRenderer: md, width: width, verbose: verbose}
}

func buildDefaultMarkdownRenderer(w io.Writer) MarkdownRenderer {
	options := []glamour.TermRendererOption{
		glamour.WithWordWrap(100),
		glamour.WithPreservedNewLines(),
	}

	if value, ok := os.LookupEnv("GLAMOUR_STYLE"); ok && value != "" {
		options = append(options, glamour.WithEnvironmentConfig())
	} else if isTerminal(w) {
		options = append(options, glamour.WithAutoStyle())
	} else {
		// Plain text keeps piped output free of escape sequences.
		return nil
	}

	mdRenderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return nil
	}
	return mdRenderer
}

// RenderReport renders a status report as a table. Failed tasks carry an
// emphasized failure marker so they stand apart from successful ones.
func (r *CLIRenderer) RenderReport(report agent.StatusReport) string {
	if report.Total == 0 {
		return "No background tasks.\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Background tasks: %d total, %d pending, %d completed",
		report.Total, report.Pending, report.Completed)))
	b.WriteString("\n")
	idWidth, kindWidth := len("Task-0"), len("kind")
	for _, task := range report.Tasks {
		idWidth = max(idWidth, lipgloss.Width(task.DisplayID))
		kindWidth = max(kindWidth, lipgloss.Width(task.Kind))
	}
	for _, task := range report.Tasks {
		fmt.Fprintf(&b, "  %s  %s  %s  %s\n",
			pad(task.DisplayID, idWidth),
			pad(kindStyle.Render(task.Kind), kindWidth),
			pad(r.stateLabel(task.State), len(agent.TaskStateCompleted)),
			task.Description)
	}
	return ConstrainWidth(b.String(), r.width)
}

// pad right-fills s to width visible cells.
func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func (r *CLIRenderer) stateLabel(state agent.TaskState) string {
	switch state {
	case agent.TaskStateFailed:
		return failureColor.Sprint(orchestration.FailureMarker)
	case agent.TaskStateCompleted:
		return completedStyle.Render(string(state))
	case agent.TaskStateCancelled:
		return cancelledStyle.Render(string(state))
	default:
		return runningStyle.Render(string(state))
	}
}

// RenderProgress renders a single task's progress snapshot.
func (r *CLIRenderer) RenderProgress(p agent.TaskProgress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n", headerStyle.Render(p.DisplayID), r.stateLabel(p.State), p.Kind)
	if p.Description != "" {
		fmt.Fprintf(&b, "  %s\n", p.Description)
	}
	fmt.Fprintf(&b, "  Elapsed: %s\n", p.Elapsed.Round(time.Millisecond))
	if p.TotalCalls > 0 {
		fmt.Fprintf(&b, "  Operations: %d (%s)\n", p.TotalCalls, tally(p.ToolCalls))
	}
	if p.CurrentOperation != "" {
		fmt.Fprintf(&b, "  Current operation: %s\n", p.CurrentOperation)
	}
	return ConstrainWidth(b.String(), r.width)
}

func tally(calls map[string]int) string {
	names := make([]string, 0, len(calls))
	for name := range calls {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s x%d", name, calls[name]))
	}
	return strings.Join(parts, ", ")
}

// RenderConversation renders every turn after the system prompt. Injected
// background notifications are labelled separately from user turns.
func (r *CLIRenderer) RenderConversation(state *ports.ConversationState) string {
	if state == nil || len(state.Messages) == 0 {
		return ""
	}

	var b strings.Builder
	for _, msg := range state.Messages {
		switch {
		case msg.Role == ports.RoleSystem:
			continue
		case msg.Source == ports.MessageSourceBackgroundNotification:
			fmt.Fprintf(&b, "%s %s\n", noticeStyle.Render("notification:"), strings.TrimSpace(msg.Content))
		case msg.Role == ports.RoleTool:
			for _, result := range msg.ToolResults {
				b.WriteString(r.renderToolResult(result))
			}
		default:
			if content := strings.TrimSpace(msg.Content); content != "" {
				fmt.Fprintf(&b, "%s %s\n", roleStyle.Render(msg.Role+":"), content)
			}
			for _, call := range msg.ToolCalls {
				fmt.Fprintf(&b, "  %s\n", toolStyle.Render(fmt.Sprintf("→ %s(%s)", call.Name, formatArgs(call.Arguments))))
			}
		}
	}
	return ConstrainWidth(b.String(), r.width)
}

func (r *CLIRenderer) renderToolResult(result ports.ToolResult) string {
	content := strings.TrimSpace(result.Content)
	if !r.verbose {
		content = firstLine(content)
		if len([]rune(content)) > toolPreviewLimit {
			content = string([]rune(content)[:toolPreviewLimit]) + ellipsis
		}
	}
	if result.Error != nil {
		return fmt.Sprintf("  ← %s %s\n", failureColor.Sprint(orchestration.FailureMarker), content)
	}
	return fmt.Sprintf("  %s\n", toolStyle.Render("← "+content))
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := args[key]
		if s, ok := value.(string); ok {
			value = fmt.Sprintf("%q", s)
		}
		parts = append(parts, fmt.Sprintf("%s=%v", key, value))
	}
	return strings.Join(parts, ", ")
}

// RenderFinal renders the closing answer, as markdown when a renderer is
// available and as plain text otherwise.
func (r *CLIRenderer) RenderFinal(answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ""
	}
	if r.mdRenderer != nil {
		if rendered, err := r.mdRenderer.Render(answer); err == nil {
			return strings.TrimRight(rendered, "\n") + "\n"
		}
	}
	return answer + "\n"
}
