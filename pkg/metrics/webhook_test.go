package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestWebhookMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)

	m.RecordOutcome("invoice.paid", OutcomeProcessed)
	m.RecordOutcome("invoice.paid", OutcomeProcessed)
	m.RecordOutcome("invoice.paid", OutcomeDuplicateStore)
	m.ObserveHandler("invoice.paid", 40*time.Millisecond)
	m.RecordProviderCall("retrieve_subscription", errors.New("timeout"))
	m.IncSeatCorrection()
	m.SetCacheEntries(12)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	mf := findMetricFamily(mfs, "billing_webhook_events_total")
	if mf == nil {
		t.Fatal("events metric missing")
	}
	var processed float64
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "outcome", OutcomeProcessed) {
			processed = metric.GetCounter().GetValue()
		}
	}
	if processed != 2 {
		t.Fatalf("expected processed=2, got %f", processed)
	}

	if got, err := fetchHistogramSum(mfs, "billing_webhook_handler_duration_seconds", "type", "invoice.paid"); err != nil || got <= 0 {
		t.Fatalf("expected handler duration, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "billing_provider_calls_total", "result", "error"); err != nil || got != 1 {
		t.Fatalf("expected one failed provider call, got %f err=%v", got, err)
	}
	if got, err := fetchGaugeValue(mfs, "billing_webhook_cache_entries"); err != nil || got != 12 {
		t.Fatalf("expected cache gauge 12, got %f err=%v", got, err)
	}
}

func TestWebhookMetricsNilSafe(t *testing.T) {
	var m *WebhookMetrics
	m.RecordOutcome("x", OutcomeFailed)
	m.ObserveHandler("x", time.Second)
	m.RecordProviderCall("op", nil)
	m.IncSeatCorrection()
	m.SetCacheEntries(1)

	NewWebhookMetrics(nil).RecordOutcome("x", OutcomeFailed)
}
