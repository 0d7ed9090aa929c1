package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetricsRecordsDeliveries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.RecordDelivered("billing.payment_failed")
	m.RecordRetry("billing.payment_failed")
	m.RecordRetry("billing.payment_failed")
	m.RecordDeadLetter("billing.subscription_ended", "unroutable")
	m.SetDLQBacklog("max_attempts", 4)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	delivered, err := fetchCounterValue(mfs, "billing_outbox_delivered_total", "event_type", "billing.payment_failed")
	require.NoError(t, err)
	assert.Equal(t, 1.0, delivered)

	retried, err := fetchCounterValue(mfs, "billing_outbox_retries_total", "event_type", "billing.payment_failed")
	require.NoError(t, err)
	assert.Equal(t, 2.0, retried)

	dead, err := fetchCounter(mfs, "billing_outbox_dead_lettered_total", map[string]string{
		"event_type": "billing.subscription_ended",
		"reason":     "unroutable",
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, dead)

	backlog, err := fetchGaugeValue(mfs, "billing_outbox_dlq_rows")
	require.NoError(t, err)
	assert.Equal(t, 4.0, backlog)
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.RecordDelivered("x")
	m.RecordRetry("x")
	m.RecordDeadLetter("x", "y")
	m.SetDLQBacklog("y", 1)
}
