package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the HTTP collectors. Paths are labelled by the matched
// ServeMux pattern so ids in URLs do not blow up cardinality.
type Metrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	authRejections *prometheus.CounterVec
	rateLimited    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		authRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_rejections_total",
				Help: "Total number of unauthorized or forbidden requests",
			},
			[]string{"reason"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.authRejections, m.rateLimited)
	return m
}

type metricsWriter struct {
	http.ResponseWriter
	status int
}

func (w *metricsWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Monitor records request counts, latency and auth failures.
func (m *Metrics) Monitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &metricsWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.requests.WithLabelValues(path, r.Method, strconv.Itoa(ww.status)).Inc()
		m.duration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())

		switch ww.status {
		case http.StatusUnauthorized:
			m.authRejections.WithLabelValues("unauthorized").Inc()
		case http.StatusForbidden:
			m.authRejections.WithLabelValues("forbidden").Inc()
		case http.StatusTooManyRequests:
			m.rateLimited.Inc()
		}
	})
}
