// Package health runs named readiness checks concurrently and folds them
// into one Report. The check command prints the report; the monitor serves
// it on /readyz next to the metrics endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check probes a single dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Failing returns the names of components that are not up, sorted.
func (r Report) Failing() []string {
	var names []string
	for name, c := range r.Components {
		if c.Status != StatusUp {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type Checker struct {
	checks map[string]Check
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		logger: logger.WithComponent("health"),
	}
}

// Register adds a named check, replacing any check of the same name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes all registered checks concurrently. The overall status is the
// worst component status.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()
	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, check := range checks {
		wg.Add(1)
		go func(n string, ch Check) {
			defer wg.Done()
			start := time.Now()
			result := ch(ctx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			report.Components[n] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	for name, comp := range report.Components {
		switch comp.Status {
		case StatusDown:
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
		if comp.Status != StatusUp {
			c.logger.Warn("check not passing", "check", name, "status", comp.Status, "message", comp.Message)
		}
	}
	return report
}

func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
		})
	}
}

// ReadyHandler runs every check and answers 503 unless all are up or
// degraded.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(report)
	}
}

// EnvSet fails when the environment variable name is empty or unset. The
// value is never reported.
func EnvSet(name string) Check {
	return func(context.Context) ComponentHealth {
		if os.Getenv(name) == "" {
			return ComponentHealth{Status: StatusDown, Message: name + " is not set"}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Executable fails when binary cannot be resolved on PATH.
func Executable(binary string) Check {
	return func(context.Context) ComponentHealth {
		path, err := exec.LookPath(binary)
		if err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp, Message: path}
	}
}

// Dir fails when path is not an existing directory.
func Dir(path string) Check {
	return func(context.Context) ComponentHealth {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		case !info.IsDir():
			return ComponentHealth{Status: StatusDown, Message: path + " is not a directory"}
		}
		return ComponentHealth{Status: StatusUp, Message: path}
	}
}

// NonEmptyFile fails when path cannot be read or has no content.
func NonEmptyFile(path string) Check {
	return func(context.Context) ComponentHealth {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		case info.IsDir():
			return ComponentHealth{Status: StatusDown, Message: path + " is a directory"}
		case info.Size() == 0:
			return ComponentHealth{Status: StatusDown, Message: path + " is empty"}
		}
		f, err := os.Open(path)
		if err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		f.Close()
		return ComponentHealth{Status: StatusUp, Message: fmt.Sprintf("%s (%d bytes)", path, info.Size())}
	}
}

// Ping wraps a connectivity probe. Optional dependencies report degraded
// instead of down, since the pipeline runs without them.
func Ping(ping func(ctx context.Context) error, optional bool) Check {
	return func(ctx context.Context) ComponentHealth {
		err := ping(ctx)
		if err == nil {
			return ComponentHealth{Status: StatusUp}
		}
		status := StatusDown
		if optional {
			status = StatusDegraded
		}
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "timed out"
		}
		return ComponentHealth{Status: status, Message: msg}
	}
}
