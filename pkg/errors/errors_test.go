package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageErrorWrapsSentinel(t *testing.T) {
	err := fmt.Errorf("processing 20250401.txt: %w", AtStagef(StageCompile, ErrCompileFailed, "exit status %d", 1))

	assert.True(t, errors.Is(err, ErrCompileFailed))
	assert.Equal(t, StageCompile, StageOf(err))
	assert.Contains(t, err.Error(), "compile: compile failed: exit status 1")
}

func TestStageOfPlainError(t *testing.T) {
	assert.Equal(t, Stage(""), StageOf(errors.New("boom")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(fmt.Errorf("startup: %w", ErrMissingCredential)))
	assert.True(t, IsFatal(ErrDiscovery))
	assert.False(t, IsFatal(AtStagef(StageGenerate, ErrNoResult, "timeout after %s", "2m")))
	assert.False(t, IsFatal(ErrCompilerMissing))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(ErrMissingCredential))
	assert.Equal(t, ExitFailure, ExitCode(fmt.Errorf("load: %w", ErrConfig)))
}
