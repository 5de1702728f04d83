package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/discovery"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/spf13/cobra"
)

func newSingleCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "single YYYYMMDD",
		Short: "Process the input for one date, even if it is up to date",
		Long: `Generate, compile and file the input for one date regardless of
staleness. A date without an input is reported and is not an error.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := discovery.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
			}
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			tally, err := a.proc.RunSingle(cmd.Context(), date)
			if errors.Is(err, apperrors.ErrInputRead) {
				slog.Warn("no input for date", "date", args[0], "error", err)
				fmt.Fprintf(cmd.OutOrStdout(), "no input for %s\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			printTally(cmd, tally)
			return nil
		},
	}
}
