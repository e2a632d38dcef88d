// Package metrics exposes Prometheus counters for the reconciliation
// engine. Each Metrics value owns its registry so parallel test instances
// never collide.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	Passes         prometheus.Counter
	PassErrors     prometheus.Counter
	TicksSkipped   prometheus.Counter
	Finalizations  *prometheus.CounterVec // outcome: completed|partial|ignored
	RecordsWritten prometheus.Counter
	NotifyFailures prometheus.Counter
	NotifyDropped  prometheus.Counter
}

// New creates a Metrics with a fresh registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couchlog_tracker_passes_total",
			Help: "Reconciliation passes completed.",
		}),
		PassErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couchlog_tracker_pass_errors_total",
			Help: "Reconciliation passes aborted by an error.",
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couchlog_tracker_ticks_skipped_total",
			Help: "Ticks skipped because a previous pass was still running.",
		}),
		Finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "couchlog_tracker_finalizations_total",
			Help: "Session finalizations by classification outcome.",
		}, []string{"outcome"}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couchlog_watch_records_written_total",
			Help: "Watch records created or accumulated.",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couchlog_notifier_failures_total",
			Help: "Aggregate notifier tasks that returned an error.",
		}),
		NotifyDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couchlog_notifier_dropped_total",
			Help: "Aggregate notifier tasks dropped because the queue was full.",
		}),
	}
	reg.MustRegister(m.Passes, m.PassErrors, m.TicksSkipped, m.Finalizations,
		m.RecordsWritten, m.NotifyFailures, m.NotifyDropped)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
