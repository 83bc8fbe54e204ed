// Package metrics exposes Prometheus instrumentation for the analysis engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ats_analyzer"

// Metrics groups every collector the engine records. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal          *prometheus.CounterVec
	AnalysisDuration       prometheus.Histogram
	BackendRequestDuration *prometheus.HistogramVec
	CacheHits              *prometheus.CounterVec
	CacheMisses            *prometheus.CounterVec
	ComparisonFallbacks    *prometheus.CounterVec
	PollAttempts           prometheus.Counter
	PhasesRevealed         *prometheus.CounterVec
	RateLimited            *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Total analyses by terminal outcome",
			},
			[]string{"outcome"},
		),
		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Time from analysis start to terminal state",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		BackendRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Backend request duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"endpoint", "status"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total analysis cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total analysis cache misses",
			},
			[]string{"cache_type"},
		),
		ComparisonFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "comparison_fallbacks_total",
				Help:      "Skill comparisons answered by the local matcher",
			},
			[]string{"reason"},
		),
		PollAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_attempts_total",
				Help:      "Total backend job status polls",
			},
		),
		PhasesRevealed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phases_total",
				Help:      "Reveal phases by outcome",
			},
			[]string{"phase", "status"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.BackendRequestDuration,
		m.CacheHits,
		m.CacheMisses,
		m.ComparisonFallbacks,
		m.PollAttempts,
		m.PhasesRevealed,
		m.RateLimited,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records a finished analysis.
func (m *Metrics) ObserveAnalysis(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.Observe(elapsed.Seconds())
}

// ObserveBackend records one backend request.
func (m *Metrics) ObserveBackend(endpoint, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequestDuration.WithLabelValues(endpoint, status).Observe(elapsed.Seconds())
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(cacheType string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(cacheType).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}

// ComparisonFallback records a local fallback comparison.
func (m *Metrics) ComparisonFallback(reason string) {
	if m == nil {
		return
	}
	m.ComparisonFallbacks.WithLabelValues(reason).Inc()
}

// PollAttempt records one job status poll.
func (m *Metrics) PollAttempt() {
	if m == nil {
		return
	}
	m.PollAttempts.Inc()
}

// Phase records a revealed or skipped phase.
func (m *Metrics) Phase(phase, status string) {
	if m == nil {
		return
	}
	m.PhasesRevealed.WithLabelValues(phase, status).Inc()
}

// Limited records a rate-limited request.
func (m *Metrics) Limited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}
