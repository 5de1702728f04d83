package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testKeyEnv = "DOCPIPE_TEST_API_KEY"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// workspace writes a config file whose paths live under a temp dir, backed
// by a fake completion endpoint and a fake compiler exiting with exitCode.
func workspace(t *testing.T, exitCode int) (*config.Config, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a shell script")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{
				"role":    "assistant",
				"content": "\\documentclass{article}\n\\begin{document}\nok\n\\end{document}",
			}}},
		})
	}))
	t.Cleanup(srv.Close)

	root := t.TempDir()
	bin := filepath.Join(root, "fakelatex")
	script := "#!/bin/sh\nfor last; do :; done\necho pdf > \"${last%.*}.pdf\"\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	cfg := config.Default()
	cfg.API.URL = srv.URL
	cfg.API.Timeout = 2 * time.Second
	cfg.API.KeyEnv = testKeyEnv
	cfg.Paths.Resource = filepath.Join(root, "resource")
	cfg.Paths.InputDir = filepath.Join(root, "input")
	cfg.Paths.OutputDir = filepath.Join(root, "output")
	cfg.Paths.DestinationRoot = filepath.Join(root, "archive")
	cfg.Compile.Binary = bin
	cfg.Cache.Password = "hunter2"

	require.NoError(t, os.MkdirAll(cfg.Paths.Resource, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Paths.InputDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.Resource, cfg.Document.StyleFile), []byte("% style"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.Resource, cfg.Document.ExampleFile), []byte("% example"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.InputDir, "20250401.txt"), []byte("notes"), 0o644))

	path := filepath.Join(root, "config.yaml")
	require.NoError(t, config.Save(cfg, path))
	t.Setenv(testKeyEnv, "test-key")
	return cfg, path
}

func TestRunProcessesStaleInputs(t *testing.T) {
	cfg, path := workspace(t, 0)

	out, err := runCLI(t, "--config", path, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "processed 1/1")
	assert.FileExists(t, filepath.Join(cfg.Paths.DestinationRoot, "tex", "20250401.tex"))

	out, err = runCLI(t, "--config", path, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "processed 0/0")
}

func TestRunWithNoSuccessIsReportedNotFatal(t *testing.T) {
	cfg, path := workspace(t, 1)

	cmd := newRootCommand()
	var out, stderr bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", path, "run"})
	err := cmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, apperrors.ExitOK, apperrors.ExitCode(err))
	assert.Contains(t, out.String(), "processed 0/1")
	assert.Contains(t, stderr.String(), "none of the 1 attempted inputs succeeded")
	assert.FileExists(t, filepath.Join(cfg.Paths.OutputDir, "20250401.tex"))
}

func TestRunWithoutCredentialIsPrecondition(t *testing.T) {
	_, path := workspace(t, 0)
	t.Setenv(testKeyEnv, "")

	_, err := runCLI(t, "--config", path, "run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingCredential))
	assert.Equal(t, apperrors.ExitFailure, apperrors.ExitCode(err))
}

func TestExplicitMissingConfigIsPrecondition(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
	assert.Equal(t, apperrors.ExitFailure, apperrors.ExitCode(err))
}

func TestSingle(t *testing.T) {
	cfg, path := workspace(t, 0)

	_, err := runCLI(t, "--config", path, "single", "20250932")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitFailure, apperrors.ExitCode(err))

	out, err := runCLI(t, "--config", path, "single", "20250402")
	require.NoError(t, err)
	assert.Contains(t, out, "no input for 20250402")

	out, err = runCLI(t, "--config", path, "single", "20250401")
	require.NoError(t, err)
	assert.Contains(t, out, "processed 1/1")
	assert.FileExists(t, filepath.Join(cfg.Paths.DestinationRoot, "pdf", "20250401.pdf"))
}

func TestConfigRedactsSecrets(t *testing.T) {
	_, path := workspace(t, 0)

	out, err := runCLI(t, "--config", path, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "$"+testKeyEnv)

	var shown config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, redacted, shown.Cache.Password)
	assert.Equal(t, "deepseek-chat", shown.API.Model)
}

func TestCheck(t *testing.T) {
	_, path := workspace(t, 0)

	out, err := runCLI(t, "--config", path, "check")
	require.NoError(t, err)
	var report health.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, health.StatusUp, report.Status)
	assert.Contains(t, report.Components, "compiler")

	t.Setenv(testKeyEnv, "")
	_, err = runCLI(t, "--config", path, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential")
	assert.Equal(t, apperrors.ExitFailure, apperrors.ExitCode(err))
}

func TestInitWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out, err := runCLI(t, "--config", "docpipe.yaml", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote docpipe.yaml")
	assert.DirExists(t, filepath.Join(dir, "resource"))
	assert.DirExists(t, filepath.Join(dir, "input"))

	cfg, err := config.Load("docpipe.yaml", true)
	require.NoError(t, err)
	assert.Equal(t, config.Default().API.Model, cfg.API.Model)

	_, err = runCLI(t, "--config", "docpipe.yaml", "init")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfig))

	_, err = runCLI(t, "--config", "docpipe.yaml", "init", "--force")
	require.NoError(t, err)
}

func TestVersionFlag(t *testing.T) {
	out, err := runCLI(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestHistoryRequiresEnabledHistory(t *testing.T) {
	_, path := workspace(t, 0)

	_, err := runCLI(t, "--config", path, "history")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
}

func TestPrintOutcomes(t *testing.T) {
	cmd := newHistoryCommand(&options{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	printOutcomes(cmd, []journal.Outcome{
		{Date: "20250401", Status: journal.StatusSucceeded, Duration: 1500 * time.Millisecond, FinishedAt: time.Now()},
		{Date: "20250402", Status: journal.StatusFailed, Stage: "compile", Error: "exit code 1"},
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "succeeded")
	assert.Contains(t, lines[1], "1.5s")
	assert.Contains(t, lines[2], "compile")
	assert.Contains(t, lines[2], "exit code 1")
}
