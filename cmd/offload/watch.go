package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/output"
)

const defaultWatchInterval = time.Second

type reportFetcher interface {
	Report(ctx context.Context) (agent.StatusReport, error)
}

func newWatchCommand(opts *cliOptions) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of background tasks of a running session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(addr)
			if err != nil {
				return err
			}
			target := addr
			if target == "" {
				target = opts.cfg.Server.Addr
			}
			model := newWatchModel(cmd.Context(), client, output.NewCLIRenderer(cmd.OutOrStdout(), false), target, interval)
			program := tea.NewProgram(model,
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			_, err = program.Run()
			if err != nil && cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	addrFlag(cmd, &addr)
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "Polling interval")
	return cmd
}

type reportMsg struct {
	report agent.StatusReport
	err    error
}

type pollMsg struct{}

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true)
	watchHintStyle  = lipgloss.NewStyle().Faint(true)
	watchErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type watchModel struct {
	ctx      context.Context
	client   reportFetcher
	renderer *output.CLIRenderer
	target   string
	interval time.Duration
	spinner  spinner.Model

	report agent.StatusReport
	loaded bool
	err    error
}

func newWatchModel(ctx context.Context, client reportFetcher, renderer *output.CLIRenderer, target string, interval time.Duration) watchModel {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return watchModel{
		ctx:      ctx,
		client:   client,
		renderer: renderer,
		target:   target,
		interval: interval,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m watchModel) fetch() tea.Cmd {
	return func() tea.Msg {
		report, err := m.client.Report(m.ctx)
		return reportMsg{report: report, err: err}
	}
}

func (m watchModel) poll() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case reportMsg:
		m.err = msg.err
		if msg.err == nil {
			m.report = msg.report
			m.loaded = true
		}
		return m, m.poll()
	case pollMsg:
		return m, m.fetch()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	status := "idle"
	if m.report.Pending > 0 {
		status = fmt.Sprintf("%d running", m.report.Pending)
	}
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), watchTitleStyle.Render(fmt.Sprintf("offload %s (%s)", m.target, status)))
	if m.loaded {
		b.WriteString(m.renderer.RenderReport(m.report))
	} else if m.err == nil {
		b.WriteString("Connecting...\n")
	}
	if m.err != nil {
		b.WriteString(watchErrStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	b.WriteString("\n" + watchHintStyle.Render("q to quit") + "\n")
	return b.String()
}
