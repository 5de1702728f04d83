// Package compiler drives the external document compiler. A non-zero exit
// is a normal, reported outcome; only an unusable compiler binary is
// returned as an error. Every invocation runs under a deadline so a hung
// compiler cannot stall the scheduler.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/metrics"
)

const (
	defaultTimeout = 5 * time.Minute
	// waitDelay bounds how long Wait blocks on output pipes after the
	// process is killed.
	waitDelay = 5 * time.Second
	// tailBytes is how much captured output a Result keeps.
	tailBytes = 4096
)

// Result is the outcome of one compiler invocation.
type Result struct {
	Success  bool
	ExitCode int
	Stderr   string
	Output   string
	TimedOut bool
	Duration time.Duration
}

// Driver invokes the configured compiler binary.
type Driver struct {
	binary  string
	timeout time.Duration
	clean   []string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Driver from cfg. m may be nil.
func New(cfg config.CompileConfig, m *metrics.Metrics) *Driver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clean := make([]string, len(cfg.CleanExtensions))
	copy(clean, cfg.CleanExtensions)
	return &Driver{
		binary:  cfg.Binary,
		timeout: timeout,
		clean:   clean,
		metrics: m,
		logger:  logger.WithComponent("compiler"),
	}
}

// LookPath resolves the compiler binary, wrapping failures in
// ErrCompilerMissing.
func (d *Driver) LookPath() (string, error) {
	path, err := exec.LookPath(d.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", apperrors.ErrCompilerMissing, d.binary, err)
	}
	return path, nil
}

// Compile runs the compiler in batch mode on source, writing output next to
// it. On success the transient byproducts sharing source's stem are removed.
func (d *Driver) Compile(ctx context.Context, source string) (Result, error) {
	bin, err := d.LookPath()
	if err != nil {
		return Result{}, err
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return Result{}, fmt.Errorf("resolving %s: %w", source, err)
	}
	dir := filepath.Dir(abs)

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, bin,
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-output-directory", dir,
		abs,
	)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	d.logger.Info("compiling", "source", filepath.Base(abs), "binary", bin)
	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Duration: time.Since(start),
		Stderr:   tail(stderr.String()),
		Output:   tail(stdout.String()),
	}
	d.metrics.Compile(res.Duration)

	switch {
	case runErr == nil:
		res.Success = true
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
		d.logger.Error("compiler timed out", "source", filepath.Base(abs), "timeout", d.timeout)
		return res, nil
	default:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return res, fmt.Errorf("%w: starting %s: %v", apperrors.ErrCompilerMissing, bin, runErr)
		}
		res.ExitCode = exitErr.ExitCode()
		d.logger.Error("compile failed",
			"source", filepath.Base(abs),
			"exit_code", res.ExitCode,
			"stderr", res.Stderr,
		)
		return res, nil
	}

	d.logger.Info("compile succeeded", "source", filepath.Base(abs), "duration", res.Duration.Round(time.Millisecond))
	d.cleanup(abs)
	return res, nil
}

// cleanup removes transient byproducts best-effort.
func (d *Driver) cleanup(source string) {
	stem := strings.TrimSuffix(source, filepath.Ext(source))
	for _, ext := range d.clean {
		path := stem + ext
		err := os.Remove(path)
		switch {
		case err == nil:
			d.logger.Debug("removed build byproduct", "file", filepath.Base(path))
		case errors.Is(err, os.ErrNotExist):
		default:
			d.logger.Warn("could not remove build byproduct", "file", path, "error", err)
		}
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= tailBytes {
		return s
	}
	return s[len(s)-tailBytes:]
}
