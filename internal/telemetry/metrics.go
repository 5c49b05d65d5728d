package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ask gateway.
type Metrics struct {
	RequestTotal       *prometheus.CounterVec
	RequestDurationMs  *prometheus.HistogramVec
	TokensTotal        *prometheus.CounterVec
	RateLimitedTotal   prometheus.Counter
	StreamFragments    prometheus.Counter
	UpstreamErrorTotal *prometheus.CounterVec
}

// NewMetrics creates the gateway metrics and registers them with reg. A nil
// reg registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ask_request_total",
			Help: "Total number of ask requests by response status and delivery mode.",
		}, []string{"status", "mode"}),

		RequestDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ask_request_duration_ms",
			Help:    "Total request duration in milliseconds (including upstream latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"mode"}),

		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ask_tokens_total",
			Help: "Total tokens reported by the upstream model.",
		}, []string{"model", "direction"}),

		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ask_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		}),

		StreamFragments: factory.NewCounter(prometheus.CounterOpts{
			Name: "ask_stream_fragments_total",
			Help: "Answer fragments relayed to streaming clients.",
		}),

		UpstreamErrorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ask_upstream_error_total",
			Help: "Failed upstream calls by kind.",
		}, []string{"kind"}),
	}
}

// RequestLabels holds the label values for recording a request.
type RequestLabels struct {
	Status           string
	Mode             string
	Model            string
	DurationMs       float64
	PromptTokens     int
	CompletionTokens int
}

// RecordRequest records metrics for a completed request.
func (m *Metrics) RecordRequest(labels RequestLabels) {
	m.RequestTotal.WithLabelValues(labels.Status, labels.Mode).Inc()
	m.RequestDurationMs.WithLabelValues(labels.Mode).Observe(labels.DurationMs)

	if labels.PromptTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "prompt").Add(float64(labels.PromptTokens))
	}
	if labels.CompletionTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "completion").Add(float64(labels.CompletionTokens))
	}
}

func (m *Metrics) RecordRateLimitHit() {
	m.RateLimitedTotal.Inc()
}

func (m *Metrics) RecordStreamFragment() {
	m.StreamFragments.Inc()
}

// RecordUpstreamError counts a failed upstream call. kind is one of
// "status", "transport", "stream" or "empty".
func (m *Metrics) RecordUpstreamError(kind string) {
	m.UpstreamErrorTotal.WithLabelValues(kind).Inc()
}
