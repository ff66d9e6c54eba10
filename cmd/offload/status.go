package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	serverhttp "offload/internal/delivery/server/http"
	"offload/internal/output"
)

func addrFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "addr", "", "Status API address (default server.addr)")
}

func (o *cliOptions) client(addr string) (*serverhttp.Client, error) {
	if addr == "" {
		addr = o.cfg.Server.Addr
	}
	return serverhttp.NewClient(addr, nil)
}

func newStatusCommand(opts *cliOptions) *cobra.Command {
	var (
		addr   string
		number int
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show background tasks of a running session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(addr)
			if err != nil {
				return err
			}
			renderer := output.NewCLIRenderer(cmd.OutOrStdout(), opts.verbose)
			if number > 0 {
				task, err := client.Task(cmd.Context(), number)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderer.RenderProgress(task.TaskProgress))
				return nil
			}
			report, err := client.Report(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderer.RenderReport(report))
			return nil
		},
	}
	addrFlag(cmd, &addr)
	cmd.Flags().IntVarP(&number, "task", "t", 0, "Show progress for one task number")
	return cmd
}

func newCancelCommand(opts *cliOptions) *cobra.Command {
	var (
		addr  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "cancel <task-number>",
		Short: "Cancel a background task of a running session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil || number < 1 {
				return fmt.Errorf("invalid task number %q", args[0])
			}
			client, err := opts.client(addr)
			if err != nil {
				return err
			}
			resp, err := client.Cancel(cmd.Context(), number, force)
			if err != nil {
				return err
			}
			mode := "soft"
			if resp.Force {
				mode = "forced"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s cancelled (%s).\n", resp.DisplayID, mode)
			return nil
		},
	}
	addrFlag(cmd, &addr)
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Also interrupt the running work")
	return cmd
}
