package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors the engine exports, the same
// role brain2-backend's metrics wiring plays for its Lambda handlers —
// here scraped from cmd/contextd's /metrics endpoint instead.
type Metrics struct {
	IngestDuration   prometheus.Histogram
	DecayDuration    prometheus.Histogram
	PrunedNodesTotal prometheus.Counter
	PipelineStepDur  *prometheus.HistogramVec
	VisitsAccepted   prometheus.Counter
	VisitsDebounced  prometheus.Counter
	VisitsRejected   prometheus.Counter
	GraphNodeGauge   prometheus.Gauge
	GraphEdgeGauge   prometheus.Gauge
}

// NewMetrics registers every collector against reg. Pass
// prometheus.NewRegistry() in tests to avoid global-registry collisions
// across parallel test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IngestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name: "contextengine_ingest_duration_seconds",
			Help: "Time to apply a single visit to the graph store.",
		}),
		DecayDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name: "contextengine_decay_sweep_duration_seconds",
			Help: "Time spent in a decay sweep.",
		}),
		PrunedNodesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "contextengine_pruned_nodes_total",
			Help: "Nodes removed by cap enforcement or orphan removal.",
		}),
		PipelineStepDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "contextengine_pipeline_step_duration_seconds",
			Help: "Duration of each visit-pipeline step.",
		}, []string{"step"}),
		VisitsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "contextengine_visits_accepted_total",
			Help: "Visits accepted into the pipeline queue.",
		}),
		VisitsDebounced: f.NewCounter(prometheus.CounterOpts{
			Name: "contextengine_visits_debounced_total",
			Help: "Visits rejected by the debounce window.",
		}),
		VisitsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "contextengine_visits_rejected_total",
			Help: "Visits rejected for validation or shutdown reasons.",
		}),
		GraphNodeGauge: f.NewGauge(prometheus.GaugeOpts{
			Name: "contextengine_graph_nodes",
			Help: "Current node count.",
		}),
		GraphEdgeGauge: f.NewGauge(prometheus.GaugeOpts{
			Name: "contextengine_graph_edges",
			Help: "Current edge count.",
		}),
	}
}
