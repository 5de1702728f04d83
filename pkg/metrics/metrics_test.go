package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Cycle("ok", 3)
		m.File("failed", "compile")
		m.Stage("read", time.Millisecond)
		m.Generation("ok")
		m.Compile(time.Second)
		m.Relocation("source", "moved")
		m.CacheHit()
		m.CacheMiss()
	})
}

func TestCycleSetsStaleGauge(t *testing.T) {
	m := New(nil)
	m.Cycle("partial", 4)
	m.Cycle("ok", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("partial")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StaleFiles))
	assert.Greater(t, testutil.ToFloat64(m.LastCycleTimestamp), 0.0)
}

func TestServerServesMetricsAndExtras(t *testing.T) {
	m := New(nil)
	m.File("succeeded", "")
	srv := NewServer(0, m, map[string]http.Handler{
		"/healthz": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "alive")
		}),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `docpipe_files_total{outcome="succeeded",stage=""} 1`)

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "alive", string(body))

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
