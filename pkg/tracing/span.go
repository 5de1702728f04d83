// Package tracing times a pipeline run and its stages. A run is a root Span
// carried in the context; each stage is a child. When the run ends the whole
// tree is summarised in a single debug log line.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed operation within a run.
type Span struct {
	Name     string
	RunID    string
	Start    time.Time
	Duration time.Duration
	Children []*Span
	Attrs    map[string]any

	mu sync.Mutex
}

func newSpan(name, runID string) *Span {
	return &Span{
		Name:  name,
		RunID: runID,
		Start: time.Now(),
		Attrs: make(map[string]any),
	}
}

// StartSpan starts the root span of run runID.
func StartSpan(ctx context.Context, name string, runID string) (context.Context, *Span) {
	span := newSpan(name, runID)
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan starts a span under the one in ctx. Without a parent the
// child is a detached root with no run id.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		span := newSpan(name, "")
		return context.WithValue(ctx, contextKey{}, span), span
	}
	child := newSpan(name, parent.RunID)
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

// SpanFromContext returns the current span, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// End fixes the span's duration and returns it.
func (s *Span) End() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duration = time.Since(s.Start)
	return s.Duration
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// Stages returns each direct child's duration in start order.
func (s *Span) Stages() []slog.Attr {
	s.mu.Lock()
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	stages := make([]slog.Attr, 0, len(children))
	for _, child := range children {
		child.mu.Lock()
		stages = append(stages, slog.Int64(child.Name, child.Duration.Milliseconds()))
		child.mu.Unlock()
	}
	return stages
}

// Log writes one debug line for the span with its attributes and a
// stages_ms group holding every child's duration.
func (s *Span) Log() {
	s.mu.Lock()
	attrs := []any{
		"run_id", s.RunID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	s.mu.Unlock()

	stages := s.Stages()
	groupArgs := make([]any, len(stages))
	for i, a := range stages {
		groupArgs[i] = a
	}
	attrs = append(attrs, slog.Group("stages_ms", groupArgs...))
	slog.Debug("run trace", attrs...)
}
