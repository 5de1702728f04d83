// Package metrics defines the Prometheus collectors for pipeline cycles and
// runs, and exposes an HTTP handler for scraping. All recording methods are
// safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	CyclesTotal        *prometheus.CounterVec
	FilesTotal         *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	StaleFiles         prometheus.Gauge
	LastCycleTimestamp prometheus.Gauge
	GenerationsTotal   *prometheus.CounterVec
	CompileDuration    prometheus.Histogram
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	RelocationsTotal   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docpipe_cycles_total",
				Help: "Scan-and-process cycles by result (ok, partial, failed, error).",
			},
			[]string{"result"},
		),
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docpipe_files_total",
				Help: "Pipeline runs by outcome and failing stage.",
			},
			[]string{"outcome", "stage"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docpipe_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds.",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		StaleFiles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docpipe_stale_files",
				Help: "Stale inputs found by the most recent scan.",
			},
		),
		LastCycleTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docpipe_last_cycle_timestamp_seconds",
				Help: "Unix time the most recent cycle finished.",
			},
		),
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docpipe_generations_total",
				Help: "Remote generation calls by result (ok, no_result).",
			},
			[]string{"result"},
		),
		CompileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docpipe_compile_duration_seconds",
				Help:    "Document compiler wall time in seconds.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docpipe_cache_hits_total",
				Help: "Generation responses served from the cache.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docpipe_cache_misses_total",
				Help: "Generation requests not found in the cache.",
			},
		),
		RelocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docpipe_relocations_total",
				Help: "Artifact moves by artifact and status (moved, missing, failed).",
			},
			[]string{"artifact", "status"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.FilesTotal,
		m.StageDuration,
		m.StaleFiles,
		m.LastCycleTimestamp,
		m.GenerationsTotal,
		m.CompileDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RelocationsTotal,
	)

	return m
}

func (m *Metrics) Cycle(result string, stale int) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.StaleFiles.Set(float64(stale))
	m.LastCycleTimestamp.SetToCurrentTime()
}

// File records a finished pipeline run. stage is empty on success.
func (m *Metrics) File(outcome, stage string) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(outcome, stage).Inc()
}

func (m *Metrics) Stage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) Generation(result string) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Compile(d time.Duration) {
	if m == nil {
		return
	}
	m.CompileDuration.Observe(d.Seconds())
}

// Relocation records one artifact move.
func (m *Metrics) Relocation(artifact, status string) {
	if m == nil {
		return
	}
	m.RelocationsTotal.WithLabelValues(artifact, status).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

// Handler returns the Prometheus scrape HTTP handler for m's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
