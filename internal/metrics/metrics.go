package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registry backs every metric in this package; /metrics serves only it
var registry = prometheus.NewRegistry()

// Registry returns the registry served by Handler
func Registry() *prometheus.Registry {
	return registry
}

// Handler exposes the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// HTTP and webhook metrics are registered on first use
var (
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections prometheus.Gauge
	WebhookResponsesTotal *prometheus.CounterVec

	httpOnce sync.Once
)

// initializeHTTPMetrics registers HTTP metrics once
func initializeHTTPMetrics() {
	httpOnce.Do(func() {
		HTTPRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		)

		HTTPRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		)

		HTTPActiveConnections = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_connections",
				Help: "Number of active HTTP connections",
			},
		)

		// the wire status is always 200, so the outcome the caller was told about
		// is tracked separately
		WebhookResponsesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_responses_total",
				Help: "Webhook envelopes written, by outcome and intended status",
			},
			[]string{"endpoint", "outcome", "intended_status"},
		)

		registry.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			HTTPActiveConnections,
			WebhookResponsesTotal,
		)
	})
}

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	initializeHTTPMetrics()

	status := strconv.Itoa(statusCode)
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordWebhookResponse counts a normalized envelope
func RecordWebhookResponse(endpoint string, success bool, intendedStatus int) {
	initializeHTTPMetrics()

	outcome := "failure"
	if success {
		outcome = "success"
	}
	WebhookResponsesTotal.WithLabelValues(endpoint, outcome, strconv.Itoa(intendedStatus)).Inc()
}

// IncActiveConnections increments active connections
func IncActiveConnections() {
	initializeHTTPMetrics()
	HTTPActiveConnections.Inc()
}

// DecActiveConnections decrements active connections
func DecActiveConnections() {
	initializeHTTPMetrics()
	HTTPActiveConnections.Dec()
}
