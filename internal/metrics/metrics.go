// Package metrics registers the fnopart Prometheus collectors:
//
//	fnopart_fetch_requests_total{resource,outcome}
//	fnopart_fetch_duration_seconds{resource}
//	fnopart_rows_dropped_total{table,reason}
//	fnopart_signals_total{direction}
//	fnopart_cache_lookups_total{result}
//
// plus the go_* and process_* runtime collectors. All Recorder methods are
// safe on a nil receiver so callers can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fnopart"

// Fetch outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder owns one registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	fetchRequests *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	rowsDropped   *prometheus.CounterVec
	signals       *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
}

// New creates a Recorder on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "NSE archive requests by resource and outcome.",
		}, []string{"resource", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "NSE archive request latency.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"resource"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows removed while cleaning archive tables.",
		}, []string{"table", "reason"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals emitted by direction.",
		}, []string{"direction"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Snapshot cache lookups by result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(
		r.fetchRequests,
		r.fetchDuration,
		r.rowsDropped,
		r.signals,
		r.cacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one archive request.
func (r *Recorder) ObserveFetch(resource string, err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	r.fetchRequests.WithLabelValues(resource, outcome).Inc()
	r.fetchDuration.WithLabelValues(resource).Observe(elapsed.Seconds())
}

// RowsDropped adds n dropped rows for a table and reason.
func (r *Recorder) RowsDropped(table, reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rowsDropped.WithLabelValues(table, reason).Add(float64(n))
}

// Signal counts one emitted signal.
func (r *Recorder) Signal(direction string) {
	if r == nil {
		return
	}
	r.signals.WithLabelValues(direction).Inc()
}

// CacheLookup counts a snapshot cache hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}
