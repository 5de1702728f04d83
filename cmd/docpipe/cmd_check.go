package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/health"
	"github.com/spf13/cobra"
)

const checkTimeout = 10 * time.Second

func newCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that everything a run needs is in place",
		Long: `Check the credential, the compiler binary, the input directory, the style
and example documents, and any enabled cache, event stream or history
database. Prints a JSON report and exits 2 when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			report := newChecker(opts.cfg).Run(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if report.Status == health.StatusDown {
				return fmt.Errorf("checks failed: %s", strings.Join(report.Failing(), ", "))
			}
			return nil
		},
	}
}
