package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// TokenRefreshes counts token refresh exchanges by result
	TokenRefreshes *prometheus.CounterVec
	// APICallsTotal counts outbound Ring API calls by path and status
	APICallsTotal *prometheus.CounterVec
	// WebhookDeliveries counts inbound webhook deliveries by outcome
	WebhookDeliveries *prometheus.CounterVec
	// MotionWindows counts motion windows opened and closed
	MotionWindows *prometheus.CounterVec
	// PollTicks counts poll ticks by kind and result
	PollTicks *prometheus.CounterVec
	// NodesKnown tracks the number of registered nodes by kind
	NodesKnown *prometheus.GaugeVec
	// ErrorCounter counts errors by type and endpoint
	ErrorCounter *prometheus.CounterVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Total number of OAuth token refresh exchanges",
			},
			[]string{"result"},
		),
		APICallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_calls_total",
				Help:      "Total number of outbound Ring API calls",
			},
			[]string{"path", "status"},
		),
		WebhookDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Total number of inbound webhook deliveries",
			},
			[]string{"outcome"},
		),
		MotionWindows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "motion_windows_total",
				Help:      "Total number of motion window transitions",
			},
			[]string{"transition"},
		),
		PollTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_ticks_total",
				Help:      "Total number of poll ticks",
			},
			[]string{"kind", "result"},
		),
		NodesKnown: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nodes_known",
				Help:      "Number of registered nodes",
			},
			[]string{"kind"},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "endpoint", "method"},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.TokenRefreshes,
		m.APICallsTotal,
		m.WebhookDeliveries,
		m.MotionWindows,
		m.PollTicks,
		m.NodesKnown,
		m.ErrorCounter,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordTokenRefresh records one refresh exchange with its result
func (m *Metrics) RecordTokenRefresh(result string) {
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

// RecordAPICall records one outbound Ring API call
func (m *Metrics) RecordAPICall(path, status string) {
	m.APICallsTotal.WithLabelValues(path, status).Inc()
}

// RecordWebhookDelivery records one inbound delivery with its outcome
func (m *Metrics) RecordWebhookDelivery(outcome string) {
	m.WebhookDeliveries.WithLabelValues(outcome).Inc()
}

// RecordMotionWindow records a motion window transition (started or ended)
func (m *Metrics) RecordMotionWindow(transition string) {
	m.MotionWindows.WithLabelValues(transition).Inc()
}

// RecordPollTick records one poll tick with its result
func (m *Metrics) RecordPollTick(kind, result string) {
	m.PollTicks.WithLabelValues(kind, result).Inc()
}

// SetNodesKnown sets the registered node count for a kind
func (m *Metrics) SetNodesKnown(kind string, count int) {
	m.NodesKnown.WithLabelValues(kind).Set(float64(count))
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, endpoint, method string) {
	m.ErrorCounter.WithLabelValues(errorType, endpoint, method).Inc()
}
