package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the publisher draining billing notices onto Pub/Sub.
type OutboxMetrics struct {
	delivered    *prometheus.CounterVec
	retried      *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	dlqBacklog   *prometheus.GaugeVec
}

// NewOutboxMetrics registers the publisher metrics on reg. A nil registerer yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_outbox_delivered_total",
			Help: "Billing notices published to Pub/Sub.",
		}, []string{"event_type"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_outbox_retries_total",
			Help: "Publish attempts that failed and were left for a later batch.",
		}, []string{"event_type"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_outbox_dead_lettered_total",
			Help: "Billing notices moved to the dead-letter table.",
		}, []string{"event_type", "reason"}),
		dlqBacklog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "billing_outbox_dlq_rows",
			Help: "Rows in the dead-letter table by reason, sampled at publisher start.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.delivered, m.retried, m.deadLettered, m.dlqBacklog)
	return m
}

func (m *OutboxMetrics) RecordDelivered(eventType string) {
	if m == nil || m.delivered == nil {
		return
	}
	m.delivered.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) RecordRetry(eventType string) {
	if m == nil || m.retried == nil {
		return
	}
	m.retried.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) RecordDeadLetter(eventType, reason string) {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}

func (m *OutboxMetrics) SetDLQBacklog(reason string, rows int64) {
	if m == nil || m.dlqBacklog == nil {
		return
	}
	m.dlqBacklog.WithLabelValues(normalizeLabel(reason)).Set(float64(rows))
}
