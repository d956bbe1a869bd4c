// Package metrics holds the Prometheus collectors of the relay and the HTTP
// middleware that feeds them.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK    = "ok"
	ResultQuota = "quota"
	ResultError = "error"

	ExchangeReplied = "replied"
	ExchangeApology = "apology"
)

var (
	// generationAttemptsTotal counts calls to the generation backend per candidate model.
	generationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "line_tutor_generation_attempts_total",
			Help: "Generation attempts per candidate model and result",
		},
		[]string{"model", "result"},
	)

	generationAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "line_tutor_generation_attempt_duration_seconds",
			Help:    "Duration of single generation attempts",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		},
		[]string{"model"},
	)

	// exchangesTotal counts inbound events by how they were answered.
	exchangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "line_tutor_exchanges_total",
			Help: "Handled message events by channel and reply kind",
		},
		[]string{"channel", "result"},
	)

	conversationsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "line_tutor_conversations",
			Help: "Users with an in-memory conversation",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "line_tutor_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "line_tutor_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registerOnce sync.Once
)

// Register adds all collectors to reg. Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			generationAttemptsTotal,
			generationAttemptDuration,
			exchangesTotal,
			conversationsActive,
			httpRequestsTotal,
			httpRequestDurationSeconds,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveAttempt(model, result string, d time.Duration) {
	generationAttemptsTotal.WithLabelValues(model, result).Inc()
	generationAttemptDuration.WithLabelValues(model).Observe(d.Seconds())
}

func ObserveExchange(channel, result string) {
	exchangesTotal.WithLabelValues(channel, result).Inc()
}

func SetConversations(n int) {
	conversationsActive.Set(float64(n))
}

// Middleware records request counts and latency labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
