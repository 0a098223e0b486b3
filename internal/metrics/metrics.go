// Package metrics holds the Prometheus instruments of one graph.
//
// Each Registry owns its own prometheus.Registry, so several graphs in one
// process never collide on metric names.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics of a graph.
type Registry struct {
	TicksTotal       prometheus.Counter
	TickDuration     prometheus.Histogram
	NodesExecuted    prometheus.Counter
	NodesCulled      prometheus.Gauge
	Islands          prometheus.Gauge
	NodeErrors       *prometheus.CounterVec
	SafetyViolations *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Registry{
		registry: reg,
		TicksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_ticks_total",
			Help: "Number of completed ticks",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickflow_tick_duration_seconds",
			Help:    "Wall time from tick start until its fence completed",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		NodesExecuted: f.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_nodes_executed_total",
			Help: "Number of node executions across all ticks",
		}),
		NodesCulled: f.NewGauge(prometheus.GaugeOpts{
			Name: "tickflow_nodes_culled",
			Help: "Nodes skipped by culling in the last tick",
		}),
		Islands: f.NewGauge(prometheus.GaugeOpts{
			Name: "tickflow_islands",
			Help: "Islands scheduled in the last tick",
		}),
		NodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tickflow_node_errors_total",
			Help: "Errors raised by node code, by lifecycle phase",
		}, []string{"phase"}),
		SafetyViolations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tickflow_safety_violations_total",
			Help: "Rejected token acquisitions and failed token checks, by cause",
		}, []string{"cause"}),
	}
}

// RecordTick records one completed tick.
func (r *Registry) RecordTick(duration time.Duration, executed, culled, islands int) {
	r.TicksTotal.Inc()
	r.TickDuration.Observe(duration.Seconds())
	r.NodesExecuted.Add(float64(executed))
	r.NodesCulled.Set(float64(culled))
	r.Islands.Set(float64(islands))
}

// RecordNodeError counts one failure of node code in the given phase.
func (r *Registry) RecordNodeError(phase string) {
	r.NodeErrors.WithLabelValues(phase).Inc()
}

// RecordViolation counts one safety violation.
func (r *Registry) RecordViolation(cause string) {
	r.SafetyViolations.WithLabelValues(cause).Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
