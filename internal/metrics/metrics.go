// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	auditPagesTotal           *prometheus.CounterVec
	auditIssuesTotal          *prometheus.CounterVec
	auditRunsTotal            *prometheus.CounterVec
	auditActiveWorkers        prometheus.Gauge
	auditFrontierSize         prometheus.Gauge
	auditFetchDurationSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_pages_total",
				Help: "Total number of pages crawled, labeled by site and status class.",
			},
			[]string{"site", "status"},
		)

		auditIssuesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_issues_total",
				Help: "Total number of issues detected, labeled by severity.",
			},
			[]string{"severity"},
		)

		auditRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_runs_total",
				Help: "Total number of audit runs, labeled by final status.",
			},
			[]string{"status"},
		)

		auditActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "audit_active_workers",
				Help: "Number of workers currently processing a page.",
			},
		)

		auditFrontierSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "audit_frontier_size",
				Help: "Number of URLs queued and awaiting a worker.",
			},
		)

		auditFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "audit_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter for the given site and status code.
func ObservePage(site string, statusCode int) {
	auditPagesTotal.WithLabelValues(site, statusClass(statusCode)).Inc()
}

// ObserveIssue increments the issue counter for the given severity.
func ObserveIssue(severity string) {
	auditIssuesTotal.WithLabelValues(severity).Inc()
}

// ObserveRun increments the run counter for the given final status.
func ObserveRun(status string) {
	auditRunsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	auditActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	auditActiveWorkers.Dec()
}

// SetFrontierSize records the current queued URL count.
func SetFrontierSize(n int) {
	auditFrontierSize.Set(float64(n))
}

// ObserveFetchDuration records the duration of a page fetch.
func ObserveFetchDuration(d time.Duration) {
	auditFetchDurationSeconds.Observe(d.Seconds())
}

func statusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}
