package main

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRunCommand(opts *options) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every stale input once",
		Long: `Run one cycle: find the dated inputs whose filed document is missing or
older than the input, and generate, compile and file each of them.

A cycle in which no input succeeded is reported with a warning. The exit
status is non-zero only when the run could not start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			run := a.proc.RunCycle
			if all {
				run = a.proc.RunAll
			}
			tally, err := run(cmd.Context())
			if err != nil {
				return err
			}
			printTally(cmd, tally)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Process every eligible input, including up-to-date ones")
	return cmd
}

func printTally(cmd *cobra.Command, t pipeline.Tally) {
	fmt.Fprintf(cmd.OutOrStdout(), "processed %d/%d (eligible %d, up to date %d)\n",
		t.Succeeded, t.Attempted, t.Eligible, t.Fresh)
	if t.Failed() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: none of the %d attempted inputs succeeded, see the log\n", t.Attempted)
	}
}
