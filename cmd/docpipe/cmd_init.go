package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/spf13/cobra"
)

func newInitCommand(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration and create the working directories",
		Long: `Write the built-in configuration to the --config path and create the
resource, input and output directories it names. The style and example
documents must then be placed in the resource directory.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%w: %s already exists (use --force to overwrite)", apperrors.ErrConfig, opts.configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
			}

			cfg := config.Default()
			if err := config.Save(cfg, opts.configPath); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s\n", opts.configPath)

			for _, dir := range []string{cfg.Paths.Resource, cfg.Paths.InputDir, cfg.Paths.OutputDir} {
				if err := os.MkdirAll(config.ExpandHome(dir), 0o755); err != nil {
					return fmt.Errorf("creating %s: %w", dir, err)
				}
				fmt.Fprintf(out, "created %s\n", dir)
			}
			fmt.Fprintf(out, "\nnext: put %s and %s in %s, then set $%s\n",
				cfg.Document.StyleFile, cfg.Document.ExampleFile, cfg.Paths.Resource, cfg.API.KeyEnv)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")
	return cmd
}
