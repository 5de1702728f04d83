package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	SetupWriter(&buf, level, "json")
	return &buf
}

func TestFromContextAddsRunID(t *testing.T) {
	buf := captureJSON(t, "info")
	ctx := WithRunID(context.Background(), "abc123")
	FromContext(ctx).Info("hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abc123", rec["run_id"])
	assert.Equal(t, "abc123", RunID(ctx))
	assert.Empty(t, RunID(context.Background()))
}

func TestLevelFiltering(t *testing.T) {
	buf := captureJSON(t, "warn")
	WithComponent("test").Info("dropped")
	assert.Zero(t, buf.Len())

	WithComponent("test").Warn("kept")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "test", rec["component"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
