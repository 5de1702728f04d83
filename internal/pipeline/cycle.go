package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/discovery"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/layout"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
)

// cacheStats is implemented by generators that serve repeats from a cache.
type cacheStats interface {
	Stats() (hits, misses int64)
}

// Tally counts what one cycle saw and did.
type Tally struct {
	Eligible  int
	Fresh     int
	Attempted int
	Succeeded int
}

// Failed reports whether files were attempted and none succeeded. Such a
// cycle is logged and reported but is not an error.
func (t Tally) Failed() bool {
	return t.Attempted > 0 && t.Succeeded == 0
}

// RunCycle processes every stale eligible input once. Staleness is derived
// from the filesystem at call time. Only discovery errors and a missing
// credential abort the cycle; any other failure is confined to its input.
func (p *Processor) RunCycle(ctx context.Context) (Tally, error) {
	return p.cycle(ctx, true)
}

// RunAll processes every eligible input regardless of staleness.
func (p *Processor) RunAll(ctx context.Context) (Tally, error) {
	return p.cycle(ctx, false)
}

// RunSingle processes the input for date regardless of staleness.
func (p *Processor) RunSingle(ctx context.Context, date time.Time) (Tally, error) {
	path := p.layout.Path(layout.Input, date)
	info, err := os.Stat(path)
	if err != nil {
		return Tally{}, fmt.Errorf("%w: %s: %v", apperrors.ErrInputRead, path, err)
	}
	in := discovery.Input{Path: path, Date: date, ModTime: info.ModTime()}
	tally := Tally{Eligible: 1}
	err = p.processAll(ctx, []discovery.Input{in}, &tally)
	return tally, err
}

func (p *Processor) cycle(ctx context.Context, staleOnly bool) (Tally, error) {
	start := time.Now()
	var tally Tally

	inputs, err := discovery.Eligible(p.layout.InputDir(), p.cfg.FilePatterns.Input, p.layout.InputExt())
	if err != nil {
		p.metrics.Cycle("error", 0)
		return tally, err
	}
	tally.Eligible = len(inputs)

	todo := inputs
	if staleOnly {
		todo, err = discovery.Stale(inputs, p.layout.Artifact)
		if err != nil {
			p.metrics.Cycle("error", 0)
			return tally, err
		}
	}
	tally.Fresh = len(inputs) - len(todo)

	p.logger.Info("cycle started",
		"eligible", tally.Eligible,
		"fresh", tally.Fresh,
		"to_process", len(todo),
	)

	err = p.processAll(ctx, todo, &tally)

	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case tally.Failed():
		result = "failed"
	case tally.Succeeded < tally.Attempted:
		result = "partial"
	}
	p.metrics.Cycle(result, len(todo))

	attrs := []any{
		"succeeded", tally.Succeeded,
		"attempted", tally.Attempted,
		"duration", time.Since(start).Round(time.Millisecond),
	}
	if c, ok := p.gen.(cacheStats); ok {
		hits, misses := c.Stats()
		attrs = append(attrs, "cache_hits", hits, "cache_misses", misses)
	}
	switch {
	case err != nil:
		p.logger.Error("cycle aborted", append(attrs, "error", err)...)
	case tally.Failed():
		p.logger.Warn("cycle finished without a single success", attrs...)
	default:
		p.logger.Info("cycle finished", attrs...)
	}
	return tally, err
}

// processAll runs inputs in order. Each run is shielded from cancellation
// so that it always finishes; ctx is checked between runs.
func (p *Processor) processAll(ctx context.Context, inputs []discovery.Input, tally *Tally) error {
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		tally.Attempted++
		_, err := p.Process(context.WithoutCancel(ctx), in)
		if err == nil {
			tally.Succeeded++
			continue
		}
		if apperrors.IsFatal(err) {
			return err
		}
	}
	return nil
}
