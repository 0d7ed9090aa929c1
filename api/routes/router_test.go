package routes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/billing-webhooks/api/controllers"
	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubProcessor struct{ calls int }

func (s *stubProcessor) Process(context.Context, *stripe.Event) error {
	s.calls++
	return nil
}

type stubVerifier struct{}

func (stubVerifier) ConstructEvent(payload []byte, _ string) (stripe.Event, error) {
	return stripe.Event{ID: "evt_1", Type: stripe.EventTypeInvoicePaid}, nil
}

func newTestRouter(t *testing.T, processor *stubProcessor) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.NewWebhookMetrics(reg).RecordOutcome("invoice.paid", metrics.OutcomeProcessed)
	return NewRouter(RouterParams{
		Config:         &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:         logger.Nop(),
		Ready:          map[string]controllers.Pinger{"db": stubPinger{}},
		StripeEvents:   processor,
		StripeVerifier: stubVerifier{},
		Metrics:        reg,
	})
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, &stubProcessor{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "billing_webhook_events_total") {
		t.Fatalf("expected webhook metrics in exposition")
	}
}

func TestRouterDispatchesStripeWebhook(t *testing.T) {
	processor := &stubProcessor{}
	router := newTestRouter(t, processor)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if processor.calls != 1 {
		t.Fatalf("expected processor called once, got %d", processor.calls)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/stripe", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}
