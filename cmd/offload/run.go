package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"

	"offload/internal/app/agent/reentry"
	"offload/internal/app/agent/scripted"
	"offload/internal/app/di"
	serverhttp "offload/internal/delivery/server/http"
	"offload/internal/domain/agent/ports"
	"offload/internal/output"
	"offload/internal/shared/logging"
)

const sessionShutdownTimeout = 5 * time.Second

type runOptions struct {
	autoWait      bool
	maxIterations int
	stream        bool
	serve         bool
	hold          bool
	addr          string
	script        string
	url           string
	allowLocal    bool
}

func newRunCommand(opts *cliOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scripted session through the re-entry orchestrator",
		Long: `Run plays a script whose turns delegate work to the background. Without
--auto-wait control returns as soon as the primary loop ends its turn; work
still running can be checked later with "offload status" when --serve is set.
With --auto-wait the orchestrator blocks until work finishes and re-invokes the
loop with a notification.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, opts, ro)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&ro.autoWait, "auto-wait", false, "Block on pending background work and re-invoke automatically")
	flags.IntVar(&ro.maxIterations, "max-iterations", 0, "Bound on primary loop invocations (default orchestrator.max_iterations)")
	flags.BoolVar(&ro.stream, "stream", false, "Print events as they happen")
	flags.BoolVar(&ro.serve, "serve", false, "Serve the status API while the session runs")
	flags.BoolVar(&ro.hold, "hold", false, "With --serve, keep serving after the session until interrupted")
	flags.StringVar(&ro.addr, "addr", "", "Status API listen address (default server.addr)")
	flags.StringVar(&ro.script, "script", "", "YAML script to play instead of the built-in demo")
	flags.StringVar(&ro.url, "url", "", "Page for the demo script to crawl")
	flags.BoolVar(&ro.allowLocal, "allow-local-fetch", false, "Let crawl reach loopback and private addresses")
	return cmd
}

func runSession(cmd *cobra.Command, opts *cliOptions, ro *runOptions) error {
	cfg := opts.cfg
	if cmd.Flags().Changed("auto-wait") {
		cfg.Orchestrator.AutoWait = ro.autoWait
	}
	if ro.maxIterations != 0 {
		cfg.Orchestrator.MaxIterations = ro.maxIterations
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	container, err := di.BuildContainer(di.Config{
		Runtime:         cfg,
		Script:          scriptSource(ro),
		AllowLocalFetch: ro.allowLocal,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), sessionShutdownTimeout)
		defer cancel()
		_ = container.Shutdown(ctx)
	}()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	renderer := output.NewCLIRenderer(out, opts.verbose)

	stopServing := func() {}
	if ro.serve {
		addr := ro.addr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		stopServing, err = serveStatus(ctx, out, addr, container)
		if err != nil {
			return err
		}
	}
	defer stopServing()

	state := &ports.ConversationState{SessionID: container.SessionID}
	var result reentry.RunResult
	if ro.stream {
		result, err = container.Orchestrator.Stream(ctx, state, newStreamPrinter(out, opts.verbose))
	} else {
		result, err = container.Orchestrator.Run(ctx, state)
		if err == nil {
			fmt.Fprint(out, renderer.RenderConversation(result.State))
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, renderer.RenderReport(container.Tasks.Report()))
	fmt.Fprintln(out, summary(result))
	fmt.Fprint(out, renderer.RenderFinal(result.State.LastAssistant()))

	if ro.serve && ro.hold {
		fmt.Fprintln(out, gray("Serving the status API until interrupted."))
		<-ctx.Done()
	}
	return nil
}

func scriptSource(ro *runOptions) di.ScriptSource {
	if ro.script != "" {
		path := ro.script
		return func() (scripted.Script, error) { return scripted.LoadScript(path) }
	}
	url := ro.url
	return func() (scripted.Script, error) { return scripted.DemoScript(url), nil }
}

// serveStatus starts the status API for the session. The returned function
// stops it and waits for the listener to close.
func serveStatus(ctx context.Context, out io.Writer, addr string, container *di.Container) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	logger := logging.NewComponentLogger("StatusServer")
	router := serverhttp.NewRouter(serverhttp.RouterConfig{
		Tasks:          container.Tasks,
		Metrics:        container.MetricsHandler(),
		AllowedOrigins: container.Config.Server.AllowedOrigins,
		Logger:         logger,
	})
	server := serverhttp.NewServer(addr, router, logger)

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(serveCtx, ln); err != nil {
			logger.Error("Status server: %v", err)
		}
	}()
	fmt.Fprintln(out, gray(fmt.Sprintf("Status API on http://%s", ln.Addr())))
	return func() {
		cancel()
		<-done
	}, nil
}

func summary(result reentry.RunResult) string {
	line := fmt.Sprintf("%d invocation(s), %d notification(s)", result.Invocations, result.Notifications)
	switch {
	case result.Exhausted:
		return yellow(line + "; iteration limit reached with background work outstanding")
	case result.Degraded != nil:
		return yellow(line + "; finished in a degraded state, see logs")
	default:
		return gray(line)
	}
}
