// Package pipeline runs the per-input chain read → prompt → generate →
// extract → write → compile → relocate, and the cycle that applies it to
// every stale input. Inputs are processed strictly one after another; a
// failure at any stage abandons that input only.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/compiler"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/discovery"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/generator"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/layout"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/prompt"
	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/relocate"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/tracing"
)

// recordTimeout bounds how long a journal sink may take per outcome.
const recordTimeout = 5 * time.Second

// Compiler turns a written source into the compiled artifact.
type Compiler interface {
	Compile(ctx context.Context, source string) (compiler.Result, error)
}

// Context is the state of one pipeline run. It is owned by that run and
// filled in stage by stage.
type Context struct {
	RunID    string
	Input    discovery.Input
	Text     string
	Date     string
	Prompt   string
	Request  generator.Request
	Raw      string
	Body     string
	Strategy extract.Strategy
	Source   string
	Compile  compiler.Result
	Report   relocate.Report
}

// Deps are the collaborators of a Processor. Recorder and Metrics may be
// nil.
type Deps struct {
	Generator generator.Generator
	Compiler  Compiler
	Recorder  journal.Recorder
	Metrics   *metrics.Metrics
}

// Processor runs the pipeline for individual inputs and whole cycles.
type Processor struct {
	cfg       *config.Config
	layout    *layout.Resolver
	gen       generator.Generator
	compiler  Compiler
	relocator *relocate.Relocator
	recorder  journal.Recorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Processor for the config snapshot cfg.
func New(cfg *config.Config, deps Deps) *Processor {
	resolver := layout.New(cfg)
	recorder := deps.Recorder
	if recorder == nil {
		recorder = journal.Nop{}
	}
	return &Processor{
		cfg:       cfg,
		layout:    resolver,
		gen:       deps.Generator,
		compiler:  deps.Compiler,
		relocator: relocate.New(resolver, deps.Metrics),
		recorder:  recorder,
		metrics:   deps.Metrics,
		logger:    logger.WithComponent("pipeline"),
	}
}

// Layout returns the resolver the processor files artifacts with.
func (p *Processor) Layout() *layout.Resolver {
	return p.layout
}

// Process runs every stage for in. The returned error is a
// *apperrors.StageError naming the failed stage, or nil when the input was
// compiled and filed. An incomplete relocation is logged and recorded but
// does not fail the run.
func (p *Processor) Process(ctx context.Context, in discovery.Input) (*Context, error) {
	rc := &Context{RunID: newRunID(), Input: in}
	ctx = logger.WithRunID(ctx, rc.RunID)
	ctx, span := tracing.StartSpan(ctx, "pipeline", rc.RunID)
	span.SetAttr("input", in.Name())
	log := logger.FromContext(ctx).With("component", "pipeline", "input", in.Name())
	log.Info("processing input")

	err := p.run(ctx, rc, log)

	duration := span.End()
	span.Log()
	p.record(ctx, rc, err, duration)

	if err != nil {
		stage := apperrors.StageOf(err)
		p.metrics.File("failed", string(stage))
		log.Error("pipeline run failed", "stage", stage, "error", err, "duration", duration.Round(time.Millisecond))
		return rc, err
	}
	p.metrics.File("succeeded", "")
	log.Info("pipeline run succeeded", "extraction", rc.Strategy, "duration", duration.Round(time.Millisecond))
	return rc, nil
}

func (p *Processor) run(ctx context.Context, rc *Context, log *slog.Logger) error {
	var style, example string
	steps := []struct {
		stage apperrors.Stage
		fn    func(ctx context.Context) error
	}{
		{apperrors.StageRead, func(ctx context.Context) error {
			data, err := os.ReadFile(rc.Input.Path)
			if err != nil {
				return apperrors.AtStagef(apperrors.StageRead, apperrors.ErrInputRead, "%s: %v", rc.Input.Path, err)
			}
			rc.Text = string(data)
			return nil
		}},
		{apperrors.StagePrompt, func(ctx context.Context) error {
			var err error
			if style, err = p.readReference(p.cfg.Document.StyleFile); err != nil {
				return err
			}
			if example, err = p.readReference(p.cfg.Document.ExampleFile); err != nil {
				return err
			}
			rc.Date = prompt.FormatDate(rc.Input.Date, p.cfg.Document.DateFormat)
			rc.Prompt = prompt.Build(prompt.Params{
				InputText:         rc.Text,
				StyleText:         style,
				ExampleText:       example,
				Date:              rc.Date,
				StyleName:         p.cfg.Document.StyleFile,
				ExampleName:       p.cfg.Document.ExampleFile,
				DocumentClass:     p.cfg.Document.DocumentClass,
				FontSize:          p.cfg.Document.FontSize,
				ExtraInstructions: p.cfg.Document.ExtraInstructions,
			})
			rc.Request = generator.RequestFor(p.cfg.API, prompt.SystemInstruction, rc.Prompt)
			return nil
		}},
		{apperrors.StageGenerate, func(ctx context.Context) error {
			raw, err := p.gen.Generate(ctx, rc.Request)
			if err != nil {
				p.metrics.Generation("no_result")
				if errors.Is(err, apperrors.ErrMissingCredential) {
					return err
				}
				return &apperrors.StageError{Stage: apperrors.StageGenerate, Err: err}
			}
			p.metrics.Generation("ok")
			rc.Raw = raw
			return nil
		}},
		{apperrors.StageExtract, func(ctx context.Context) error {
			rc.Body, rc.Strategy = extract.Extract(rc.Raw)
			log.Debug("document extracted", "strategy", rc.Strategy, "length", len(rc.Body))
			return nil
		}},
		{apperrors.StageWrite, func(ctx context.Context) error {
			return p.write(rc, style, log)
		}},
		{apperrors.StageCompile, func(ctx context.Context) error {
			return p.compile(ctx, rc)
		}},
		{apperrors.StageRelocate, func(ctx context.Context) error {
			rc.Report = p.relocator.Relocate(rc.Input.Date, rc.Input.Path)
			if !rc.Report.Complete() {
				log.Warn("relocation incomplete", "error", rc.Report.Err())
			}
			return nil
		}},
	}

	for _, step := range steps {
		if err := p.stage(ctx, step.stage, step.fn); err != nil {
			return err
		}
	}
	return nil
}

// stage runs fn inside a child span and records its duration.
func (p *Processor) stage(ctx context.Context, stage apperrors.Stage, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartChildSpan(ctx, string(stage))
	err := fn(ctx)
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	p.metrics.Stage(string(stage), span.End())
	return err
}

func (p *Processor) readReference(name string) (string, error) {
	path := filepath.Join(p.cfg.Paths.Resource, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.AtStagef(apperrors.StagePrompt, apperrors.ErrMissingReference, "%s: %v", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", apperrors.AtStagef(apperrors.StagePrompt, apperrors.ErrMissingReference, "%s is empty", path)
	}
	return string(data), nil
}

// write stores the extracted document as the working source and places the
// style file next to it, unless one is already there.
func (p *Processor) write(rc *Context, style string, log *slog.Logger) error {
	dir := p.layout.OutputDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.AtStagef(apperrors.StageWrite, apperrors.ErrWrite, "creating %s: %v", dir, err)
	}

	stylePath := filepath.Join(dir, p.cfg.Document.StyleFile)
	if _, err := os.Stat(stylePath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(stylePath, []byte(style), 0o644); err != nil {
			return apperrors.AtStagef(apperrors.StageWrite, apperrors.ErrWrite, "copying style file: %v", err)
		}
		log.Debug("style file copied", "path", stylePath)
	}

	rc.Source = p.layout.Path(layout.Source, rc.Input.Date)
	if err := os.WriteFile(rc.Source, []byte(rc.Body), 0o644); err != nil {
		return apperrors.AtStagef(apperrors.StageWrite, apperrors.ErrWrite, "%s: %v", rc.Source, err)
	}
	log.Info("source written", "path", rc.Source, "bytes", len(rc.Body))
	return nil
}

func (p *Processor) compile(ctx context.Context, rc *Context) error {
	res, err := p.compiler.Compile(ctx, rc.Source)
	rc.Compile = res
	if err != nil {
		return &apperrors.StageError{Stage: apperrors.StageCompile, Err: err}
	}
	if res.Success {
		return nil
	}

	// A response that does not compile should not be served again.
	if f, ok := p.gen.(generator.Forgetter); ok {
		if err := f.Forget(ctx, rc.Request); err != nil {
			p.logger.Warn("could not drop cached response", "input", rc.Input.Name(), "error", err)
		}
	}
	if res.TimedOut {
		return apperrors.AtStagef(apperrors.StageCompile, apperrors.ErrCompileFailed, "timed out after %s, source kept at %s",
			res.Duration.Round(time.Second), rc.Source)
	}
	return apperrors.AtStagef(apperrors.StageCompile, apperrors.ErrCompileFailed, "exit code %d, source kept at %s",
		res.ExitCode, rc.Source)
}

func (p *Processor) record(ctx context.Context, rc *Context, err error, duration time.Duration) {
	o := journal.Outcome{
		RunID:      rc.RunID,
		Date:       layout.Stem(rc.Input.Date),
		Input:      rc.Input.Path,
		Status:     journal.StatusSucceeded,
		Strategy:   string(rc.Strategy),
		Moves:      rc.Report.Moves,
		Duration:   duration,
		FinishedAt: time.Now().UTC(),
	}
	switch {
	case err != nil:
		o.Status = journal.StatusFailed
		o.Stage = string(apperrors.StageOf(err))
		o.Error = err.Error()
	case !rc.Report.Complete():
		o.Stage = string(apperrors.StageRelocate)
		if relErr := rc.Report.Err(); relErr != nil {
			o.Error = relErr.Error()
		}
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if recErr := p.recorder.Record(recCtx, o); recErr != nil {
		p.logger.Warn("could not record outcome", "input", rc.Input.Name(), "error", recErr)
	}
}

// newRunID returns a random 8-byte hex identifier.
func newRunID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

