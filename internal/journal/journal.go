// Package journal records the outcome of every pipeline run to optional
// external sinks. Records are data only: nothing in the pipeline reads them
// back, and a sink failure never changes a run's outcome.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/relocate"
)

// Status is the overall result of one run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome is the record emitted for one processed input.
type Outcome struct {
	RunID      string          `json:"run_id"`
	Date       string          `json:"date"`
	Input      string          `json:"input"`
	Status     Status          `json:"status"`
	Stage      string          `json:"stage,omitempty"`
	Error      string          `json:"error,omitempty"`
	Strategy   string          `json:"extraction,omitempty"`
	Moves      []relocate.Move `json:"moves,omitempty"`
	Duration   time.Duration   `json:"duration_ns"`
	FinishedAt time.Time       `json:"finished_at"`
}

type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Nop discards every outcome.
type Nop struct{}

func (Nop) Record(context.Context, Outcome) error { return nil }

// Multi fans an outcome out to several recorders. Every recorder is called
// even when an earlier one fails; the failures are joined.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, o Outcome) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
