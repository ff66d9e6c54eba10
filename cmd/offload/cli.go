package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"offload/internal/shared/config"
	"offload/internal/shared/logging"
)

// cliOptions carries the persistent flags and the configuration resolved
// from them before any subcommand runs.
type cliOptions struct {
	configPath string
	logLevel   string
	verbose    bool

	cfg   config.Config
	flush func()
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &cliOptions{}
	defer opts.close()

	root := newRootCommand(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCommand(opts *cliOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "offload",
		Short: "Delegate slow work to the background and resume when it finishes",
		Long: `offload runs a primary loop whose delegated tool calls execute in the
background. Finished work is announced back to the loop automatically, and a
status API lets other processes check on work that is still running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to an offload.yaml file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Show full tool output")

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newStatusCommand(opts))
	root.AddCommand(newCancelCommand(opts))
	root.AddCommand(newWatchCommand(opts))
	root.AddCommand(newConfigCommand(opts))
	return root
}

func (o *cliOptions) load() error {
	var loadOpts []config.Option
	if o.configPath != "" {
		loadOpts = append(loadOpts, config.WithConfigPath(o.configPath))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	flush, err := logging.Configure(cfg.Logging)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	o.cfg = cfg
	o.flush = flush
	return nil
}

func (o *cliOptions) close() {
	if o.flush != nil {
		o.flush()
		o.flush = nil
	}
}
