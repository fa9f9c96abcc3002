// Package observability holds the process-wide logger setup and the
// Prometheus metrics of the interview service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// WebhookCounter counts telephony webhook deliveries.
	// Labels: endpoint (entry|answer|status), outcome (ok|fallback)
	WebhookCounter *prometheus.CounterVec

	// WebhookDuration measures webhook handling latency in seconds.
	// Labels: endpoint
	WebhookDuration *prometheus.HistogramVec

	// FallbackCounter counts fallback scripts by failure kind.
	// Labels: kind (not_found|already_complete|invalid_index|upstream|validation|internal)
	FallbackCounter *prometheus.CounterVec

	// AnswerCounter counts answer callbacks by what they did.
	// Labels: kind (answer|timeout|duplicate|repeat|resync)
	AnswerCounter *prometheus.CounterVec

	// TransitionCounter counts interview status transitions.
	// Labels: status
	TransitionCounter *prometheus.CounterVec

	// LLMRequestDuration measures language model calls in seconds.
	// Labels: operation (questions|report), status (success|error)
	LLMRequestDuration *prometheus.HistogramVec

	// CallCounter counts outbound call attempts.
	// Labels: status (success|error)
	CallCounter *prometheus.CounterVec

	// HTTPRequestDuration measures management API latency.
	// Labels: method, route, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WebhookCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recruitx_webhooks_total",
				Help: "Total number of telephony webhook deliveries by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		WebhookDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recruitx_webhook_duration_seconds",
				Help:    "Duration of telephony webhook handling in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		FallbackCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recruitx_fallback_scripts_total",
				Help: "Total number of fallback voice scripts returned by failure kind",
			},
			[]string{"kind"},
		),
		AnswerCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recruitx_answers_total",
				Help: "Total number of answer callbacks by effect",
			},
			[]string{"kind"},
		),
		TransitionCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recruitx_interview_transitions_total",
				Help: "Total number of interview status transitions by target status",
			},
			[]string{"status"},
		),
		LLMRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recruitx_llm_request_duration_seconds",
				Help:    "Duration of language model requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation", "status"},
		),
		CallCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recruitx_outbound_calls_total",
				Help: "Total number of outbound call attempts by status",
			},
			[]string{"status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recruitx_http_request_duration_seconds",
				Help:    "Duration of HTTP API requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "route", "status_code"},
		),
	}
}

func (m *Metrics) Webhook(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.WebhookCounter.WithLabelValues(endpoint, outcome).Inc()
	m.WebhookDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) Fallback(kind string) {
	if m == nil {
		return
	}
	m.FallbackCounter.WithLabelValues(kind).Inc()
}

func (m *Metrics) Answer(kind string) {
	if m == nil {
		return
	}
	m.AnswerCounter.WithLabelValues(kind).Inc()
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.TransitionCounter.WithLabelValues(status).Inc()
}

func (m *Metrics) LLMRequest(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMRequestDuration.WithLabelValues(operation, status(err)).Observe(d.Seconds())
}

func (m *Metrics) Call(err error) {
	if m == nil {
		return
	}
	m.CallCounter.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) HTTPRequest(method, route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
