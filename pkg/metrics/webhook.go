package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook event outcomes recorded by the idempotency guard.
const (
	OutcomeProcessed      = "processed"
	OutcomeDuplicateCache = "duplicate_cache"
	OutcomeDuplicateStore = "duplicate_store"
	OutcomeInFlight       = "in_flight"
	OutcomeFailed         = "failed"
)

// WebhookMetrics tracks webhook processing and provider write-backs.
type WebhookMetrics struct {
	events          *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	providerCalls   *prometheus.CounterVec
	seatCorrections prometheus.Counter
	cacheEntries    prometheus.Gauge
}

// NewWebhookMetrics registers the webhook metrics on reg. A nil registerer yields a no-op recorder.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	m := &WebhookMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Webhook events by type and idempotency outcome.",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billing_webhook_handler_duration_seconds",
			Help:    "Time spent running webhook handlers.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_provider_calls_total",
			Help: "Outbound Stripe API calls by operation and result.",
		}, []string{"op", "result"}),
		seatCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_seat_quantity_corrections_total",
			Help: "Seat quantities pushed back to Stripe after diverging from membership.",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "billing_webhook_cache_entries",
			Help: "Entries held by the process-local processed-event cache.",
		}),
	}
	reg.MustRegister(m.events, m.duration, m.providerCalls, m.seatCorrections, m.cacheEntries)
	return m
}

func (m *WebhookMetrics) RecordOutcome(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (m *WebhookMetrics) ObserveHandler(eventType string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(eventType)).Observe(d.Seconds())
}

func (m *WebhookMetrics) RecordProviderCall(op string, err error) {
	if m == nil || m.providerCalls == nil {
		return
	}
	m.providerCalls.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *WebhookMetrics) IncSeatCorrection() {
	if m == nil || m.seatCorrections == nil {
		return
	}
	m.seatCorrections.Inc()
}

func (m *WebhookMetrics) SetCacheEntries(n int) {
	if m == nil || m.cacheEntries == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}
