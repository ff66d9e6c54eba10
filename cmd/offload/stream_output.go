package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"offload/internal/app/agent/reentry"
	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/infra/tools/builtin/orchestration"
	"offload/internal/output"
)

var (
	gray   = color.New(color.FgHiBlack).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
)

// streamPrinter writes one line per event as the session runs. Events can
// arrive from the orchestrator and the agent, so writes are serialized.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

func newStreamPrinter(out io.Writer, verbose bool) *streamPrinter {
	return &streamPrinter{out: out, verbose: verbose}
}

func (p *streamPrinter) OnEvent(event agent.AgentEvent) {
	line := p.format(event)
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p *streamPrinter) format(event agent.AgentEvent) string {
	switch e := event.(type) {
	case *agent.MessageEvent:
		content := strings.TrimSpace(e.Content)
		if content == "" {
			return ""
		}
		return fmt.Sprintf("%s %s", cyan(e.Role+":"), p.preview(content))
	case *agent.ToolCallEvent:
		if e.Failed {
			return fmt.Sprintf("  %s %s %s", e.Name, red(orchestration.FailureMarker), p.preview(e.Content))
		}
		return gray(fmt.Sprintf("  %s → %s", e.Name, p.preview(e.Content)))
	case *reentry.NotificationEvent:
		return yellow("notification: " + e.Content)
	case *reentry.IterationLimitEvent:
		return yellow(fmt.Sprintf("stopped after %d of %d invocations with background work outstanding", e.Invocations, e.Limit))
	default:
		return ""
	}
}

func (p *streamPrinter) preview(content string) string {
	if p.verbose {
		return content
	}
	return output.ConstrainWidth(firstLine(content), 120)
}

func firstLine(s string) string {
	if head, _, found := strings.Cut(s, "\n"); found {
		return head + " …"
	}
	return s
}
