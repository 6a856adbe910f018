// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Answer outcome label values for answerRequestsTotal.
const (
	// outcomeOK marks an answer generated from the full pipeline.
	outcomeOK = "ok"
	// outcomeFallback marks a request that degraded to the fixed fallback
	// answer after a pipeline failure.
	outcomeFallback = "fallback"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// answerRequestsTotal counts completed answer requests, partitioned by
	// outcome: "ok" or "fallback".
	answerRequestsTotal *prometheus.CounterVec

	// answerDurationSeconds records the wall-clock duration of each answer
	// request, retrieval and generation included.
	answerDurationSeconds *prometheus.HistogramVec

	// ingestTasksTotal counts background ingestion tasks by terminal state.
	ingestTasksTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests on instrumented routes,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of instrumented HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		answerRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aicore",
			Subsystem: "rag",
			Name:      "answer_requests_total",
			Help:      "Total number of answer requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		answerDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aicore",
			Subsystem: "rag",
			Name:      "answer_duration_seconds",
			Help:      "Wall-clock duration of answer requests, retrieval and generation included.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),

		ingestTasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aicore",
			Subsystem: "ingest",
			Name:      "tasks_total",
			Help:      "Total number of background ingestion tasks submitted, partitioned by initial disposition.",
		}, []string{"state"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aicore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aicore",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),
	}
}

// instrument wraps next with request counting and latency observation under
// the given handler name. The name partitions metrics by logical endpoint
// rather than raw URL path, keeping label cardinality bounded.
func (m *serverMetrics) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		m.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(elapsed.Seconds())
	})
}
