// Package observability exposes analysis metrics to Prometheus.
package observability

import (
	"time"

	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records analysis runs. Each instance owns its registry, so
// several can coexist in one process. Metrics implements engine.Observer.
type Metrics struct {
	registry *prometheus.Registry

	phaseDuration *prometheus.HistogramVec
	diagnostics   *prometheus.CounterVec
	graphEdges    *prometheus.GaugeVec
	runs          *prometheus.CounterVec
	filesLoaded   *prometheus.CounterVec
	watchBatches  prometheus.Counter
}

// NewMetrics creates the metric set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		phaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cohere_phase_seconds",
			Help:    "Time spent in each analysis phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cohere_diagnostics_total",
			Help: "Diagnostics reported by analysis runs.",
		}, []string{"kind"}),
		graphEdges: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cohere_graph_edges",
			Help: "Edges in the communication graph of the latest run.",
		}, []string{"level"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cohere_runs_total",
			Help: "Analysis runs by outcome.",
		}, []string{"outcome"}),
		filesLoaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cohere_files_loaded_total",
			Help: "Source files loaded, by whether they were parsed or served from cache.",
		}, []string{"source"}),
		watchBatches: f.NewCounter(prometheus.CounterOpts{
			Name: "cohere_watch_batches_total",
			Help: "Change batches processed by watch mode.",
		}),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PhaseCompleted implements engine.Observer.
func (m *Metrics) PhaseCompleted(phase analyzer.Phase, elapsed time.Duration) {
	m.phaseDuration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())
}

// Diagnostics implements engine.Observer.
func (m *Metrics) Diagnostics(kind string, n int) {
	m.diagnostics.WithLabelValues(kind).Add(float64(n))
}

// GraphEdges implements engine.Observer.
func (m *Metrics) GraphEdges(level commgraph.Level, n int) {
	m.graphEdges.WithLabelValues(string(level)).Set(float64(n))
}

// RunFinished counts a run; err == nil is a success.
func (m *Metrics) RunFinished(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// Loaded counts parsed and cached files of one load.
func (m *Metrics) Loaded(parsed, cached int) {
	m.filesLoaded.WithLabelValues("parsed").Add(float64(parsed))
	m.filesLoaded.WithLabelValues("cache").Add(float64(cached))
}

// WatchBatch counts one processed watch batch.
func (m *Metrics) WatchBatch() {
	m.watchBatches.Inc()
}
