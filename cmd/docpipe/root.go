package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
	"github.com/spf13/cobra"
)

var version = "dev"

// skipConfig marks commands that run without loading a configuration.
const skipConfig = "skip-config"

type options struct {
	configPath string
	debug      bool
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "docpipe",
		Short: "Turn dated notes into compiled documents",
		Long: `docpipe watches a directory of dated text notes (YYYYMMDD.txt), asks a
chat-completions model to turn each one into a LaTeX document in the style of
a reference example, compiles it, and files the results by date.

Inputs whose filed document is newer than the note are skipped, so repeated
runs only touch what changed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to the YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return opts.load(cmd)
	}

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newSingleCommand(opts))
	cmd.AddCommand(newMonitorCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}

// load resolves the configuration and sets up logging on stderr, keeping
// stdout for command output.
func (o *options) load(cmd *cobra.Command) error {
	level, format := "info", "text"
	if cmd.Annotations[skipConfig] == "" {
		cfg, err := config.Load(o.configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		o.cfg = cfg
		level, format = cfg.Logging.Level, cfg.Logging.Format
	}
	if o.debug {
		level = "debug"
	}
	logger.SetupWriter(cmd.ErrOrStderr(), level, format)
	return nil
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}
