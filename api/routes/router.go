package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/billing-webhooks/api/controllers"
	webhookcontrollers "github.com/angelmondragon/billing-webhooks/api/controllers/webhooks"
	"github.com/angelmondragon/billing-webhooks/api/middleware"
	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	Ready          map[string]controllers.Pinger
	StripeEvents   webhookcontrollers.EventProcessor
	StripeVerifier webhookcontrollers.EventVerifier
	Metrics        prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, params.Ready))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(
			params.StripeEvents,
			params.StripeVerifier,
			cfg.Webhook.MaxBodyBytes,
			logg,
		))
	})

	return r
}
