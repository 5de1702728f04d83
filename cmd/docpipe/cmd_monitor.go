package main

import (
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/scheduler"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newMonitorCommand(opts *options) *cobra.Command {
	var interval int
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run cycles continuously",
		Long: `Run a cycle now and then again every interval until interrupted.
A running cycle is always allowed to finish before the monitor exits.

With monitor.watch enabled, new or changed inputs start a cycle early. With
metrics.enabled, /metrics, /healthz and /readyz are served on metrics.port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("interval") {
				cfg.Monitor.IntervalMinutes = interval
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sched := scheduler.New(a.proc, cfg.Monitor.Interval(), scheduler.WithPoll(cfg.Monitor.PollInterval))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return sched.Run(ctx)
			})

			if cfg.Metrics.Enabled {
				checker := newChecker(cfg)
				srv := metrics.NewServer(cfg.Metrics.Port, a.metrics, map[string]http.Handler{
					"/healthz": checker.LiveHandler(),
					"/readyz":  checker.ReadyHandler(),
				})
				g.Go(func() error {
					return srv.Run(ctx)
				})
			}

			if cfg.Monitor.Watch {
				resolver := a.proc.Layout()
				w := scheduler.NewWatcher(resolver.InputDir(), resolver.InputExt(), cfg.Monitor.WatchDebounce, sched.Nudge)
				g.Go(func() error {
					if err := w.Run(ctx); err != nil && ctx.Err() == nil {
						slog.Warn("input watcher stopped, relying on the interval", "error", err)
					}
					return nil
				})
			}

			slog.Info("monitor started", "interval_minutes", cfg.Monitor.IntervalMinutes, "watch", cfg.Monitor.Watch)
			if err := g.Wait(); err != nil {
				return err
			}
			slog.Info("monitor stopped")
			return nil
		},
	}
	cmd.Flags().IntVarP(&interval, "interval", "i", 0, "Minutes between cycles (overrides monitor.intervalMinutes)")
	return cmd
}

