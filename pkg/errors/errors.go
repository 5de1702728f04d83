// Package errors defines the sentinel errors of the pipeline and the
// StageError that records which stage of a run failed.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential = errors.New("generation credential not set")
	ErrConfig            = errors.New("configuration error")
	ErrDiscovery         = errors.New("input discovery failed")
	ErrInputRead         = errors.New("input unreadable")
	ErrMissingReference  = errors.New("reference document missing")
	ErrNoResult          = errors.New("generator returned no result")
	ErrCompileFailed     = errors.New("compile failed")
	ErrCompilerMissing   = errors.New("compiler binary not found")
	ErrRelocation        = errors.New("relocation incomplete")
	ErrWrite             = errors.New("writing generated source failed")
)

// Exit codes returned by the CLI. A cycle in which no file succeeded is
// reported, not signalled through the exit code.
const (
	ExitOK      = 0
	ExitFailure = 1
)

type Stage string

const (
	StageRead     Stage = "read"
	StagePrompt   Stage = "prompt"
	StageGenerate Stage = "generate"
	StageExtract  Stage = "extract"
	StageWrite    Stage = "write"
	StageCompile  Stage = "compile"
	StageRelocate Stage = "relocate"
)

// StageError is a per-file failure tagged with the stage that produced it.
type StageError struct {
	Stage   Stage
	Err     error
	Message string
}

func (e *StageError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Err.Error(), e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStagef wraps sentinel with the failing stage and a formatted message.
func AtStagef(stage Stage, sentinel error, format string, args ...any) *StageError {
	return &StageError{
		Stage:   stage,
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// StageOf returns the stage recorded in err, or "" when err carries none.
func StageOf(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

// IsFatal reports whether err must stop the process rather than just the
// current file.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrDiscovery)
}

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return ExitFailure
}
