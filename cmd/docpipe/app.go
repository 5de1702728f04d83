package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/compiler"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/generator"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/redis"
)

// app is the wired pipeline for one command invocation.
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	proc    *pipeline.Processor
	closers []func() error
}

// newApp validates cfg, reads the credential and wires the pipeline. The
// optional cache, event stream and history table are skipped with a warning
// when they cannot be reached.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	apiKey := os.Getenv(cfg.API.KeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set %s", apperrors.ErrMissingCredential, cfg.API.KeyEnv)
	}

	a := &app{cfg: cfg, metrics: metrics.New(nil)}

	var gen generator.Generator = generator.NewClient(cfg.API, apiKey)
	if cfg.Cache.Enabled {
		rc, err := redis.NewClient(cfg.Cache)
		if err != nil {
			slog.Warn("generation cache unavailable, continuing without it", "addr", cfg.Cache.Addr, "error", err)
		} else {
			a.closers = append(a.closers, rc.Close)
			gen = generator.NewCached(gen, rc, cfg.Cache.TTL, a.metrics)
			slog.Info("generation cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	var recorders journal.Multi
	if cfg.Events.Enabled {
		producer := kafka.NewProducer(cfg.Events)
		a.closers = append(a.closers, producer.Close)
		recorders = append(recorders, journal.NewEventRecorder(producer))
		slog.Info("run events enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}
	if cfg.History.Enabled {
		if store, closeDB, err := openHistory(ctx, cfg.History); err != nil {
			slog.Warn("run history unavailable, continuing without it", "host", cfg.History.Host, "error", err)
		} else {
			a.closers = append(a.closers, closeDB)
			recorders = append(recorders, store)
			slog.Info("run history enabled", "host", cfg.History.Host, "database", cfg.History.Database)
		}
	}

	a.proc = pipeline.New(cfg, pipeline.Deps{
		Generator: gen,
		Compiler:  compiler.New(cfg.Compile, a.metrics),
		Recorder:  recorders,
		Metrics:   a.metrics,
	})
	return a, nil
}

func openHistory(ctx context.Context, cfg config.HistoryConfig) (*journal.HistoryStore, func() error, error) {
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store := journal.NewHistoryStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newChecker registers the readiness checks for cfg. Optional integrations
// are only checked when enabled, and report degraded rather than down.
func newChecker(cfg *config.Config) *health.Checker {
	c := health.NewChecker()
	c.Register("credential", health.EnvSet(cfg.API.KeyEnv))
	c.Register("compiler", health.Executable(cfg.Compile.Binary))
	c.Register("input_dir", health.Dir(cfg.Paths.InputDir))
	c.Register("style_file", health.NonEmptyFile(filepath.Join(cfg.Paths.Resource, cfg.Document.StyleFile)))
	c.Register("example_file", health.NonEmptyFile(filepath.Join(cfg.Paths.Resource, cfg.Document.ExampleFile)))

	if cfg.Cache.Enabled {
		c.Register("redis", health.Ping(func(ctx context.Context) error {
			rc, err := redis.NewClient(cfg.Cache)
			if err != nil {
				return err
			}
			defer rc.Close()
			return rc.Ping(ctx)
		}, true))
	}
	if cfg.Events.Enabled {
		c.Register("kafka", health.Ping(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Events.Brokers)
		}, true))
	}
	if cfg.History.Enabled {
		c.Register("postgres", health.Ping(func(ctx context.Context) error {
			db, err := postgres.Open(ctx, cfg.History)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Ping(ctx)
		}, true))
	}
	return c
}
