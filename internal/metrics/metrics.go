// Package metrics wires a prometheus.Registry (spec §4.5), the same
// client_golang dependency seen across the retrieval pack's
// moderation-adjacent repos. The registry is not served over HTTP and
// the adaptive controller does not read it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the pipeline's gauges/histograms. A single instance is
// constructed at startup and passed to the dispatcher (C7), which is
// the only component that updates it; PoolUtilization and ErrorRate are
// registered but nothing updates them.
type Metrics struct {
	Registry *prometheus.Registry

	EvaluationLatencyMS prometheus.Histogram
	FilterMatches       *prometheus.CounterVec
	QueueOccupancy      *prometheus.GaugeVec
	PlatformSendErrors  *prometheus.CounterVec
	PoolUtilization     *prometheus.GaugeVec
	ErrorRate           *prometheus.CounterVec
}

// New builds and registers every collector on a fresh Registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		EvaluationLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notabot_evaluation_latency_ms",
			Help:    "Per-message filter evaluation latency in milliseconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50, 100},
		}),
		FilterMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notabot_filter_matches_total",
			Help: "Filter matches by filter id and action.",
		}, []string{"filter_id", "action"}),
		QueueOccupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notabot_inbound_queue_occupancy",
			Help: "Fraction of inbound queue capacity in use, by platform.",
		}, []string{"platform"}),
		PlatformSendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notabot_platform_send_errors_total",
			Help: "Platform send failures by platform.",
		}, []string{"platform"}),
		PoolUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notabot_pool_utilization",
			Help: "Healthy connection fraction by platform.",
		}, []string{"platform"}),
		ErrorRate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notabot_errors_total",
			Help: "Internal errors by taxonomy kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.EvaluationLatencyMS,
		m.FilterMatches,
		m.QueueOccupancy,
		m.PlatformSendErrors,
		m.PoolUtilization,
		m.ErrorRate,
	)
	return m
}
