// Package layout maps an artifact kind and a calendar date to the canonical
// path of that artifact. The staleness check and the relocator both resolve
// paths through a Resolver, so the two can never disagree about where a
// date's files live.
package layout

import (
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/config"
)

// StemLayout is the date layout of every artifact's base name.
const StemLayout = "20060102"

// Kind identifies one artifact of a pipeline run.
type Kind int

const (
	// Input is the dated text file in the input directory.
	Input Kind = iota
	// Source is the generated document source in the output directory.
	Source
	// Compiled is the compiler's output next to Source.
	Compiled
	// DestSource is where Source is filed after a successful run.
	DestSource
	// DestCompiled is where Compiled is filed after a successful run.
	DestCompiled
	// DestInput is where Input is filed after a successful run.
	DestInput
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Source:
		return "source"
	case Compiled:
		return "compiled"
	case DestSource:
		return "dest-source"
	case DestCompiled:
		return "dest-compiled"
	case DestInput:
		return "dest-input"
	default:
		return "unknown"
	}
}

// Resolver resolves artifact paths from an immutable configuration.
type Resolver struct {
	inputDir    string
	outputDir   string
	destRoot    string
	compiledDir string
	sourceDir   string
	archiveDir  string
	buckets     []string
	inputExt    string
	sourceExt   string
	compiledExt string
}

// New builds a Resolver from the config snapshot.
func New(cfg *config.Config) *Resolver {
	buckets := make([]string, len(cfg.Paths.Buckets))
	copy(buckets, cfg.Paths.Buckets)
	compiledExt := cfg.Compile.CompiledExt
	if compiledExt == "" {
		compiledExt = "pdf"
	}
	return &Resolver{
		inputDir:    cfg.Paths.InputDir,
		outputDir:   cfg.Paths.OutputDir,
		destRoot:    cfg.Paths.DestinationRoot,
		compiledDir: cfg.Paths.CompiledDir,
		sourceDir:   cfg.Paths.SourceDir,
		archiveDir:  cfg.Paths.InputArchiveDir,
		buckets:     buckets,
		inputExt:    cfg.FilePatterns.InputExt(),
		sourceExt:   cfg.FilePatterns.OutputExt(),
		compiledExt: compiledExt,
	}
}

// Stem returns the canonical base name (without extension) for date.
func Stem(date time.Time) string {
	return date.Format(StemLayout)
}

// Path returns the canonical path of the kind artifact for date.
func (r *Resolver) Path(kind Kind, date time.Time) string {
	switch kind {
	case Input:
		return filepath.Join(r.inputDir, r.name(date, r.inputExt))
	case Source:
		return filepath.Join(r.outputDir, r.name(date, r.sourceExt))
	case Compiled:
		return filepath.Join(r.outputDir, r.name(date, r.compiledExt))
	case DestSource:
		return r.dest(r.sourceDir, date, r.sourceExt)
	case DestCompiled:
		return r.dest(r.compiledDir, date, r.compiledExt)
	case DestInput:
		return r.dest(r.archiveDir, date, r.inputExt)
	default:
		return ""
	}
}

// Artifact is the path whose existence and modification time decide
// whether the input for date is done. It is the filed document source,
// which only appears after a fully successful run.
func (r *Resolver) Artifact(date time.Time) string {
	return r.Path(DestSource, date)
}

// InputDir returns the directory scanned for inputs.
func (r *Resolver) InputDir() string {
	return r.inputDir
}

// OutputDir returns the working directory for generated sources.
func (r *Resolver) OutputDir() string {
	return r.outputDir
}

// InputExt returns the input file extension without the dot.
func (r *Resolver) InputExt() string {
	return r.inputExt
}

func (r *Resolver) name(date time.Time, ext string) string {
	return Stem(date) + "." + ext
}

func (r *Resolver) dest(subtree string, date time.Time, ext string) string {
	parts := make([]string, 0, len(r.buckets)+3)
	parts = append(parts, r.destRoot, subtree)
	for _, bucket := range r.buckets {
		parts = append(parts, date.Format(bucket))
	}
	parts = append(parts, r.name(date, ext))
	return filepath.Join(parts...)
}
