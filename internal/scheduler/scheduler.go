// Package scheduler repeats pipeline cycles. One cycle runs at start, then
// another whenever the interval has elapsed since the previous cycle began.
// A cycle is never interrupted: shutdown takes effect between cycles.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
)

const defaultPoll = time.Second

// Cycler runs one pipeline cycle. *pipeline.Processor implements it.
type Cycler interface {
	RunCycle(ctx context.Context) (pipeline.Tally, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPoll sets how often the scheduler checks whether a cycle is due.
func WithPoll(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// Scheduler drives a Cycler on a fixed interval.
type Scheduler struct {
	cycler   Cycler
	interval time.Duration
	poll     time.Duration
	now      func() time.Time
	nudge    chan struct{}
	logger   *slog.Logger
}

// New creates a Scheduler running c every interval.
func New(c Cycler, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		cycler:   c,
		interval: interval,
		poll:     defaultPoll,
		now:      time.Now,
		nudge:    make(chan struct{}, 1),
		logger:   logger.WithComponent("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nudge asks for a cycle at the next poll tick instead of waiting for the
// interval. Nudges arriving while one is pending are coalesced.
func (s *Scheduler) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled. It returns nil on cancellation and an
// error only when a cycle reports a missing credential, which no later cycle
// could recover from.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "poll", s.poll)

	last := s.now()
	if err := s.cycle(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}

		due := s.now().Sub(last) >= s.interval
		select {
		case <-s.nudge:
			if !due {
				s.logger.Info("early cycle requested")
			}
			due = true
		default:
		}
		if !due {
			continue
		}
		last = s.now()
		if err := s.cycle(ctx); err != nil {
			return err
		}
		if ctx.Err() == nil {
			s.logger.Info("next cycle scheduled", "at", last.Add(s.interval).Format(time.DateTime))
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) error {
	tally, err := s.cycler.RunCycle(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, apperrors.ErrMissingCredential):
		return err
	case err != nil:
		s.logger.Error("cycle failed, will retry next interval", "error", err)
	case tally.Failed():
		s.logger.Warn("no file succeeded this cycle", "attempted", tally.Attempted)
	}
	return nil
}
