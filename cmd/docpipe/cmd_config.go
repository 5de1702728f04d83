package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "********"

func newConfigCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the configuration after defaults, the config file, DOCPIPE_*
environment overrides and ~ expansion have been applied. Passwords are
redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			shown := *opts.cfg
			if shown.Cache.Password != "" {
				shown.Cache.Password = redacted
			}
			if shown.History.Password != "" {
				shown.History.Password = redacted
			}
			data, err := yaml.Marshal(&shown)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# credential read from $%s\n", shown.API.KeyEnv)
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
