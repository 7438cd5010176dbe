package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// pipeline. Labels: source is the input dataset name, stage is the pipeline
// stage name.
type Metrics struct {
	RowsSeen         *prometheus.CounterVec // labels: source
	RowsRejected     *prometheus.CounterVec // labels: source
	RowsDeduplicated *prometheus.CounterVec // labels: source

	EventsUnlinked   prometheus.Counter
	SpatialAmbiguous prometheus.Counter
	SpatialUnmatched prometheus.Counter

	StageDuration   *prometheus.HistogramVec // labels: stage
	StagesCompleted prometheus.Gauge
	PipelineRunning prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "rows_seen_total",
			Help:      "Input rows read per source dataset.",
		}, []string{"source"}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "rows_rejected_total",
			Help:      "Rows rejected as malformed per source dataset.",
		}, []string{"source"}),
		RowsDeduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "rows_deduplicated_total",
			Help:      "Duplicate rows collapsed per source dataset.",
		}, []string{"source"}),
		EventsUnlinked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "events_unlinked_total",
			Help:      "Violation and 311 events that could not be joined to any property.",
		}),
		SpatialAmbiguous: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "spatial_ambiguous_total",
			Help:      "Properties whose coordinates matched more than one district polygon.",
		}),
		SpatialUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "spatial_unmatched_total",
			Help:      "Properties excluded from district aggregation: no polygon match and no district attribute.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "civic_risk",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		StagesCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "civic_risk",
			Name:      "stages_completed",
			Help:      "Number of stages completed in the current run.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "civic_risk",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is active, 0 otherwise.",
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsSeen,
		m.RowsRejected,
		m.RowsDeduplicated,
		m.EventsUnlinked,
		m.SpatialAmbiguous,
		m.SpatialUnmatched,
		m.StageDuration,
		m.StagesCompleted,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
