package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/journal"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/postgres"
	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the history database",
		Long: `List the most recent pipeline runs recorded in the PostgreSQL history
table. Requires history.enabled. The history is informational only: it is
never consulted when deciding what to process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if !cfg.History.Enabled {
				return fmt.Errorf("%w: history.enabled is false", apperrors.ErrConfig)
			}
			db, err := postgres.Open(cmd.Context(), cfg.History)
			if err != nil {
				return fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
			}
			defer db.Close()

			outcomes, err := journal.NewHistoryStore(db).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printOutcomes(cmd, outcomes)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func printOutcomes(cmd *cobra.Command, outcomes []journal.Outcome) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tDATE\tSTATUS\tSTAGE\tDURATION\tERROR")
	for _, o := range outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.FinishedAt.Local().Format(time.DateTime),
			o.Date,
			o.Status,
			dash(o.Stage),
			o.Duration.Round(time.Millisecond),
			dash(o.Error),
		)
	}
	tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
