package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds the API collectors plus the Go runtime and process collectors.
var Registry = prometheus.NewRegistry()

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	sessionAdmissions   *prometheus.CounterVec
	gradeReconciliation *prometheus.CounterVec
	divergenceBands     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hms_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		sessionAdmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_session_admissions_total",
			Help: "Login session admission decisions by outcome.",
		}, []string{"outcome"})

		gradeReconciliation = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_grade_reconciliation_rows_total",
			Help: "Grade rows changed by reconciliation operations.",
		}, []string{"operation"})

		divergenceBands = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_grade_divergence_total",
			Help: "Divergence classifications served, by band.",
		}, []string{"band"})

		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			sessionAdmissions,
			gradeReconciliation,
			divergenceBands,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SessionAdmissions counts admission outcomes. Lock contention is counted as
// "contended" next to the reuse, create and reject outcomes.
func SessionAdmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return sessionAdmissions
}

// GradeReconciliation counts grade rows changed per operation.
func GradeReconciliation() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeReconciliation
}

// DivergenceBands counts divergence classifications.
func DivergenceBands() *prometheus.CounterVec {
	RegisterMetrics()
	return divergenceBands
}
