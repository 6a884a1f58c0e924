package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names for consistent metrics
const (
	LabelProtocol = "protocol"
	LabelOutcome  = "outcome"
	LabelStatus   = "status"
	LabelMethod   = "method"
	LabelPath     = "path"
)

// Protocol label values
const (
	ProtocolPgwire = "pgwire"
	ProtocolHTTP   = "http"
)

var (
	// RequestsTotal counts all HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	// RequestDuration tracks the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	// AuthenticationTotal counts authentication attempts by protocol and outcome.
	// The outcome label is "ok" for success or the failure kind on rejection.
	AuthenticationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_authentication_total",
			Help: "Total number of connection authentication attempts",
		},
		[]string{LabelProtocol, LabelOutcome},
	)

	// ConnectionsTotal counts inbound connections by protocol
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_connections_total",
			Help: "Total number of inbound connections",
		},
		[]string{LabelProtocol},
	)

	// ProviderExchangeTotal counts token exchanges with the identity provider
	ProviderExchangeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_provider_exchange_total",
			Help: "Total number of identity provider token exchanges",
		},
		[]string{LabelStatus},
	)

	// ProviderExchangeDuration tracks the duration of provider token exchanges
	ProviderExchangeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authgate_provider_exchange_duration_seconds",
			Help:    "Duration of identity provider token exchanges in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Collector provides methods for recording metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordRequest records metrics for an HTTP request
func (c *Collector) RecordRequest(method, path string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, path, http.StatusText(status)).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordConnection records an inbound connection
func (c *Collector) RecordConnection(protocol string) {
	ConnectionsTotal.WithLabelValues(protocol).Inc()
}

// RecordAuthentication records the terminal outcome of one authentication
// attempt. Pass "ok" on success, the failure kind otherwise.
func (c *Collector) RecordAuthentication(protocol, outcome string) {
	AuthenticationTotal.WithLabelValues(protocol, outcome).Inc()
}

// RecordProviderExchange records a token exchange against the identity provider
func (c *Collector) RecordProviderExchange(status string, duration time.Duration) {
	ProviderExchangeTotal.WithLabelValues(status).Inc()
	ProviderExchangeDuration.Observe(duration.Seconds())
}

// Handler returns an HTTP handler for exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
