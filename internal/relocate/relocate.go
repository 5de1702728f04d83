// Package relocate files the artifacts of a successful pipeline run into
// their destination subtrees. Each artifact is moved independently: a
// missing or unmovable artifact is reported and logged without affecting
// the others, and nothing is rolled back.
package relocate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/layout"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/metrics"
)

// Status is the outcome of one artifact move.
type Status string

const (
	StatusMoved   Status = "moved"
	StatusMissing Status = "missing"
	StatusFailed  Status = "failed"
)

// Move describes one artifact move.
type Move struct {
	Artifact string `json:"artifact"`
	From     string `json:"from"`
	To       string `json:"to"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Report lists the moves attempted for one input.
type Report struct {
	Moves []Move `json:"moves"`
}

// Complete reports whether every artifact was moved.
func (r Report) Complete() bool {
	for _, m := range r.Moves {
		if m.Status != StatusMoved {
			return false
		}
	}
	return len(r.Moves) > 0
}

// Err summarises the moves that did not succeed, wrapped in
// ErrRelocation, or nil.
func (r Report) Err() error {
	var errs []error
	for _, m := range r.Moves {
		switch m.Status {
		case StatusMissing:
			errs = append(errs, fmt.Errorf("%s: %s not found", m.Artifact, m.From))
		case StatusFailed:
			errs = append(errs, fmt.Errorf("%s: %s", m.Artifact, m.Error))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", apperrors.ErrRelocation, errors.Join(errs...))
}

// Relocator moves artifacts to the paths resolved by a layout.Resolver.
type Relocator struct {
	layout  *layout.Resolver
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Relocator. m may be nil.
func New(resolver *layout.Resolver, m *metrics.Metrics) *Relocator {
	return &Relocator{
		layout:  resolver,
		metrics: m,
		logger:  logger.WithComponent("relocator"),
	}
}

// Relocate moves the generated source, the compiled output and the input
// for date to their destinations. inputPath is the input actually
// processed.
func (r *Relocator) Relocate(date time.Time, inputPath string) Report {
	plan := []Move{
		{Artifact: "source", From: r.layout.Path(layout.Source, date), To: r.layout.Path(layout.DestSource, date)},
		{Artifact: "compiled", From: r.layout.Path(layout.Compiled, date), To: r.layout.Path(layout.DestCompiled, date)},
		{Artifact: "input", From: inputPath, To: r.layout.Path(layout.DestInput, date)},
	}
	report := Report{Moves: make([]Move, 0, len(plan))}
	for _, m := range plan {
		m = r.move(m)
		r.metrics.Relocation(m.Artifact, string(m.Status))
		report.Moves = append(report.Moves, m)
	}
	return report
}

func (r *Relocator) move(m Move) Move {
	if _, err := os.Stat(m.From); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.Status = StatusMissing
			r.logger.Warn("artifact missing, not moved", "artifact", m.Artifact, "path", m.From)
			return m
		}
		return r.fail(m, err)
	}
	if err := os.MkdirAll(filepath.Dir(m.To), 0o755); err != nil {
		return r.fail(m, fmt.Errorf("creating destination: %w", err))
	}
	if err := moveFile(m.From, m.To); err != nil {
		return r.fail(m, err)
	}
	m.Status = StatusMoved
	r.logger.Info("artifact moved", "artifact", m.Artifact, "to", m.To)
	return m
}

func (r *Relocator) fail(m Move, err error) Move {
	m.Status = StatusFailed
	m.Error = err.Error()
	r.logger.Error("artifact move failed", "artifact", m.Artifact, "from", m.From, "to", m.To, "error", err)
	return m
}

// moveFile renames from to to, falling back to copy and remove when the two
// paths are on different filesystems. The modification time is preserved
// either way, since staleness is decided by it.
func moveFile(from, to string) error {
	err := os.Rename(from, to)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	info, err := os.Stat(from)
	if err != nil {
		return err
	}
	if err := copyFile(from, to, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chtimes(to, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Remove(from)
}

func copyFile(from, to string, perm os.FileMode) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
