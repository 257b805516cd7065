// pkg/middleware/metrics.go
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parapet_requests_total",
		Help: "Requests handled by the gateway, by method and status code.",
	}, []string{"method", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parapet_request_duration_seconds",
		Help:    "End-to-end request handling latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// UpstreamFailures counts forwarding failures by kind (unreachable, timeout).
var UpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "parapet_upstream_failures_total",
	Help: "Upstream forwarding failures by kind.",
}, []string{"kind"})

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Metrics records request counts and latency.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			code := rec.code
			if code == 0 {
				code = http.StatusOK
			}
			requestsTotal.WithLabelValues(r.Method, strconv.Itoa(code)).Inc()
			requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
