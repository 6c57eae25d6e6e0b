package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	registry *prometheus.Registry

	SolvesTotal     *prometheus.CounterVec
	SolveDuration   *prometheus.HistogramVec
	SolveIterations *prometheus.HistogramVec
	WarningsTotal   *prometheus.CounterVec

	HTTPRequestsTotal *prometheus.CounterVec
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	f := promauto.With(r.registry)

	r.SolvesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waternet_solves_total",
			Help: "Total number of network analyses by outcome",
		},
		[]string{"method", "status"},
	)
	r.SolveDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waternet_solve_duration_seconds",
			Help:    "Network analysis duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method"},
	)
	r.SolveIterations = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waternet_solve_iterations",
			Help:    "Outer solver iterations per analysis",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 1000},
		},
		[]string{"method"},
	)
	r.WarningsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waternet_warnings_total",
			Help: "Diagnostics emitted by kind",
		},
		[]string{"kind"},
	)
	r.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waternet_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"route", "status"},
	)
	return r
}

// RecordSolve records one analysis. iterations is ignored when the solve
// did not run.
func (r *Registry) RecordSolve(method, status string, duration time.Duration, iterations int, warningKinds []string) {
	r.SolvesTotal.WithLabelValues(method, status).Inc()
	r.SolveDuration.WithLabelValues(method).Observe(duration.Seconds())
	if iterations > 0 {
		r.SolveIterations.WithLabelValues(method).Observe(float64(iterations))
	}
	for _, k := range warningKinds {
		r.WarningsTotal.WithLabelValues(k).Inc()
	}
}

// RecordRequest counts an API request by route and HTTP status.
func (r *Registry) RecordRequest(route string, status int) {
	r.HTTPRequestsTotal.WithLabelValues(route, http.StatusText(status)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
