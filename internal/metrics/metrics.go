// Package metrics exposes Prometheus metrics for the gateway: inbound HTTP
// requests, outbound provider calls, media transfers and webhook publishing.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/example/comms-gateway/internal/providers/conversation"
)

const namespace = "gateway"

// Metrics owns a private registry and every collector registered on it.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	providerCallsTotal   *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec

	mediaTransfersTotal *prometheus.CounterVec
	mediaBytesTotal     prometheus.Counter
	mediaActive         prometheus.Gauge

	webhooksTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to serve inbound HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	m.providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of outbound provider calls",
		},
		[]string{"provider", "operation", "status_code", "error_kind"},
	)
	m.providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Time taken by outbound provider calls",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"provider", "operation"},
	)
	m.mediaTransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_transfers_total",
			Help:      "Media uploads by terminal state",
		},
		[]string{"state"},
	)
	m.mediaBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_bytes_streamed_total",
			Help:      "Source bytes streamed by completed or failed uploads",
		},
	)
	m.mediaActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "media_transfers_active",
			Help:      "Uploads currently between opened and a terminal state",
		},
	)
	m.webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Inbound provider webhooks by source and publish outcome",
		},
		[]string{"source", "outcome"},
	)

	for _, c := range []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.providerCallsTotal,
		m.providerCallDuration,
		m.mediaTransfersTotal,
		m.mediaBytesTotal,
		m.mediaActive,
		m.webhooksTotal,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return m, nil
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one served inbound request. route is the matched
// route pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveCall records one outbound provider call. status is 0 when no
// response arrived.
func (m *Metrics) ObserveCall(provider, operation string, status int, kind string, elapsed time.Duration) {
	if kind == "" {
		kind = "none"
	}
	m.providerCallsTotal.WithLabelValues(provider, operation, strconv.Itoa(status), kind).Inc()
	m.providerCallDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// ObserveTransfer tracks media upload states.
func (m *Metrics) ObserveTransfer(state conversation.TransferState, bytes int64) {
	switch state {
	case conversation.StateOpened:
		m.mediaActive.Inc()
	case conversation.StateCompleted, conversation.StateFailed:
		m.mediaActive.Dec()
		m.mediaTransfersTotal.WithLabelValues(string(state)).Inc()
		m.mediaBytesTotal.Add(float64(bytes))
	}
}

// ObserveWebhook records an inbound webhook and whether it was published.
func (m *Metrics) ObserveWebhook(source, outcome string) {
	m.webhooksTotal.WithLabelValues(source, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler(logger zerolog.Logger) http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      errorLogger{logger: logger},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

type errorLogger struct{ logger zerolog.Logger }

func (l errorLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
