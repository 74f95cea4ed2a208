// Package metrics exposes Prometheus collectors for attempts and HTTP
// traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	attemptsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edutest_attempts_started_total",
			Help: "Total number of attempts started",
		},
	)

	// trigger: manual/last_question/timeout
	attemptsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edutest_attempts_submitted_total",
			Help: "Total number of attempts submitted",
		},
		[]string{"trigger"},
	)

	attemptsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edutest_attempts_cancelled_total",
			Help: "Total number of attempts discarded without a result",
		},
	)

	attemptsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edutest_attempts_active",
			Help: "Attempts currently in progress",
		},
	)

	scorePercent = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edutest_attempt_score_percent",
			Help:    "Percentage score of submitted attempts",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edutest_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func AttemptStarted() {
	attemptsStarted.Inc()
	attemptsActive.Inc()
}

func AttemptSubmitted(trigger string, percent int) {
	attemptsSubmitted.WithLabelValues(trigger).Inc()
	attemptsActive.Dec()
	scorePercent.Observe(float64(percent))
}

func AttemptCancelled() {
	attemptsCancelled.Inc()
	attemptsActive.Dec()
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Instrument records request latency labelled by chi route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
