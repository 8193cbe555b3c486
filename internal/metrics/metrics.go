// Package metrics exposes Prometheus counters for suggestion generation,
// daily tip resolution and HTTP traffic. A nil *Metrics is a valid no-op.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mindio"

type Metrics struct {
	registry *prometheus.Registry

	aiGenerations      *prometheus.CounterVec
	aiAttempts         prometheus.Histogram
	aiDuration         prometheus.Histogram
	dailyResolutions   *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec
}

// New builds the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.aiGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "generations_total",
			Help:      "AI tip generations by outcome.",
		},
		[]string{"purpose", "status"},
	)
	m.aiAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "attempts",
			Help:      "Webhook attempts used per generation.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)
	m.aiDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a generation including retries.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
	m.dailyResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daily",
			Name:      "resolutions_total",
			Help:      "Daily tip resolutions by path (cached, generated, fallback).",
		},
		[]string{"path"},
	)
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		},
		[]string{"method", "code"},
	)
	m.httpRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.registry.MustRegister(
		m.aiGenerations,
		m.aiAttempts,
		m.aiDuration,
		m.dailyResolutions,
		m.httpRequests,
		m.httpRequestSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveGeneration(purpose, status string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.aiGenerations.WithLabelValues(purpose, status).Inc()
	if attempts > 0 {
		m.aiAttempts.Observe(float64(attempts))
	}
	m.aiDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDailyResolution(path string) {
	if m == nil {
		return
	}
	m.dailyResolutions.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpRequestSeconds.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Middleware records every request passing through next.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.ObserveRequest(r.Method, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
