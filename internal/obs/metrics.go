package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Provisioning workflow metrics.
var (
	// ProvisionAttempts counts terminal provisioning outcomes by status
	// (SUCCESS or FAILED).
	ProvisionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provision_attempts_total",
			Help: "Terminal provisioning outcomes by status.",
		},
		[]string{"status"},
	)

	// IAMRetries counts retried permission-service calls by operation.
	IAMRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iam_retry_attempts_total",
			Help: "Retried permission-service calls by operation.",
		},
		[]string{"operation"},
	)

	// RollbackFailures counts rollback attempts that could not fully
	// undo a created role. Orphaned roles need out-of-band cleanup.
	RollbackFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provision_rollback_failures_total",
		Help: "Rollback attempts that failed to fully undo a created role.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		ProvisionAttempts, IAMRetries, RollbackFailures,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses request paths to a bounded label set so the
// metrics cardinality stays fixed.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	switch p {
	case "", "/":
		return "/"
	case "/healthz", "/readyz", "/metrics", "/v1/info", "/v1/provision":
		return p
	}
	return "/other"
}

// statusWriter records the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
