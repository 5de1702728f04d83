package journal

import (
	"context"
	"fmt"
)

// Publisher is the subset of kafka.Producer used by EventRecorder.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// EventRecorder publishes, through a *kafka.Producer, each outcome as a JSON event keyed by the input
// date, so every run for one date lands on the same partition.
type EventRecorder struct {
	pub Publisher
}

func NewEventRecorder(pub Publisher) *EventRecorder {
	return &EventRecorder{pub: pub}
}

func (r *EventRecorder) Record(ctx context.Context, o Outcome) error {
	if err := r.pub.Publish(ctx, o.Date, o); err != nil {
		return fmt.Errorf("publishing outcome for %s: %w", o.Date, err)
	}
	return nil
}
