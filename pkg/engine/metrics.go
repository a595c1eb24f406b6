package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// checksTotal counts completed evaluation runs by aggregate verdict
	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depwarden_checks_total",
			Help: "Total number of completed policy evaluation runs",
		},
		[]string{"verdict"},
	)

	// findingsTotal counts emitted findings by kind
	findingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depwarden_findings_total",
			Help: "Total number of findings emitted across all runs",
		},
		[]string{"kind"},
	)

	// checkDuration tracks how long a full evaluation takes
	checkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depwarden_check_duration_seconds",
			Help:    "Duration of policy evaluation runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// graphNodes tracks the size of the most recently checked graph
	graphNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "depwarden_graph_nodes",
			Help: "Node count of the most recently evaluated dependency graph",
		},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(checksTotal)
	prometheus.MustRegister(findingsTotal)
	prometheus.MustRegister(checkDuration)
	prometheus.MustRegister(graphNodes)
}
