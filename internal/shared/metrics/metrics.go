package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"method", "route"},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exports_total",
			Help: "Total exports rendered by format and destination",
		},
		[]string{"format", "destination"},
	)
	cascadesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cascade_operations_total",
			Help: "Total multi-step cascade operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
)

func init() {
	registry.MustRegister(httpRequestsTotal, httpRequestDuration, exportsTotal, cascadesTotal)
}

// Registry exposes the registry all collectors are registered with.
func Registry() *prometheus.Registry {
	return registry
}

// ObserveRequest records one completed HTTP request.
func ObserveRequest(method, route string, status int, latency time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(float64(latency.Microseconds()) / 1000.0)
}

// IncExport counts an export of the given format. destination is "download" or "snapshot".
func IncExport(format, destination string) {
	exportsTotal.WithLabelValues(format, destination).Inc()
}

// IncCascade counts a cascade operation; a nil err is recorded as success.
func IncCascade(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	cascadesTotal.WithLabelValues(operation, outcome).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
