package daemon

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"cellar/internal/logging"
	"cellar/internal/services"
)

const requestIDHeader = "X-Request-ID"

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(registry prometheus.Registerer) (*httpMetrics, error) {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cellar_http_requests_total",
				Help: "HTTP API requests by route and status code.",
			},
			[]string{"route", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cellar_http_request_duration_seconds",
				Help:    "HTTP API request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestMiddleware assigns a request id, threads it through the context,
// and records request metrics and a debug access log line.
func requestMiddleware(logger *slog.Logger, metrics *httpMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(services.WithRequestID(r.Context(), requestID))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if metrics != nil {
			metrics.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			metrics.duration.WithLabelValues(route).Observe(elapsed.Seconds())
		}
		logger.Debug("api request",
			logging.String(logging.FieldCorrelationID, requestID),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", elapsed),
		)
	})
}
