package middleware

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector counts requests and error responses, both as plain
// counters for /metrics and per method and status code for Prometheus.
type MetricsCollector struct {
	requestCount *atomic.Int64
	errorCount   *atomic.Int64
	requests     *prometheus.CounterVec
}

func NewMetricsCollector(requestCount, errorCount *atomic.Int64, reg prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestCount: requestCount,
		errorCount:   errorCount,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cogquery",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
	reg.MustRegister(mc.requests)
	return mc
}

func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requestCount.Add(1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		if rw.statusCode >= 400 {
			mc.errorCount.Add(1)
		}
		mc.requests.WithLabelValues(r.Method, strconv.Itoa(rw.statusCode)).Inc()
	})
}
