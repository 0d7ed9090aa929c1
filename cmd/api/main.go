package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/billing-webhooks/api/controllers"
	"github.com/angelmondragon/billing-webhooks/api/routes"
	"github.com/angelmondragon/billing-webhooks/internal/billing"
	"github.com/angelmondragon/billing-webhooks/internal/billingevents"
	"github.com/angelmondragon/billing-webhooks/internal/bootstrap"
	"github.com/angelmondragon/billing-webhooks/internal/cron"
	"github.com/angelmondragon/billing-webhooks/internal/idempotency"
	"github.com/angelmondragon/billing-webhooks/internal/memberships"
	"github.com/angelmondragon/billing-webhooks/internal/notifications"
	stripewebhook "github.com/angelmondragon/billing-webhooks/internal/webhooks/stripe"
	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/db"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/metrics"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox"
	"github.com/angelmondragon/billing-webhooks/pkg/redis"
	stripeclient "github.com/angelmondragon/billing-webhooks/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rt, err := bootstrap.Start("api")
	if err != nil {
		bootstrap.Fatal(logger.New(logger.Options{ServiceName: "api"}), "api startup failed", err)
	}
	defer rt.Close()

	server, sweeper, err := build(rt)
	if err != nil {
		bootstrap.Fatal(rt.Logger, "failed to assemble api", err)
	}
	ctx := rt.Logger.WithField(rt.Context(), "addr", server.Addr)

	go func() {
		if err := sweeper.Run(ctx); !bootstrap.Canceled(err) {
			rt.Logger.Error(ctx, "cache sweeper stopped unexpectedly", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		rt.Logger.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error(ctx, "api server stopped unexpectedly", err)
			rt.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		rt.Logger.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			rt.Logger.Error(ctx, "api server shutdown failed", err)
		}
	}
}

// build wires the reconciler behind the HTTP router plus the processed-event cache sweeper.
func build(rt *bootstrap.Runtime) (*http.Server, *cron.Service, error) {
	cfg, logg, dbClient, ctx := rt.Config, rt.Logger, rt.DB, rt.Context()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	ready := map[string]controllers.Pinger{"postgres": dbClient}

	memoryCache, err := idempotency.NewMemoryCache(cfg.Webhook.CacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("processed event cache: %w", err)
	}
	tiers := []idempotency.Cache{memoryCache}
	if cfg.Redis.Enabled() && cfg.FeatureFlags.SharedEventCache {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		rt.OnClose("redis", redisClient.Close)
		shared, err := idempotency.NewRedisCache(redisClient, cfg.Webhook.CacheRetention, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("shared event cache: %w", err)
		}
		tiers = append(tiers, shared)
		ready["redis"] = redisClient
	}

	stripeClient, err := stripeclient.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap stripe client: %w", err)
	}
	guard, err := idempotency.NewGuard(idempotency.GuardParams{
		Logger:     logg,
		Repository: billingevents.NewRepository(dbClient.DB()),
		Cache:      idempotency.NewTiered(time.Now, tiers...),
		Metrics:    webhookMetrics,
		ClaimLease: cfg.Webhook.ClaimLease,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("idempotency guard: %w", err)
	}
	notifier, err := buildNotifier(cfg, dbClient, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("notifier: %w", err)
	}
	reconciler, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Logger:           logg,
		Guard:            guard,
		TxRunner:         dbClient,
		BillingRepo:      billing.NewRepository(dbClient.DB()),
		Memberships:      memberships.NewRepository(dbClient.DB()),
		Provider:         stripeClient,
		Notifier:         notifier,
		Metrics:          webhookMetrics,
		Validator:        validator.New(),
		RetrieveAttempts: cfg.Webhook.RetrieveAttempts,
		RetrieveBackoff:  cfg.Webhook.RetrieveBackoff,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("stripe webhook service: %w", err)
	}

	sweeper, err := buildCacheSweeper(cfg, logg, memoryCache, webhookMetrics, metrics.NewCronJobMetrics(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("cache sweeper: %w", err)
	}

	server := &http.Server{
		Addr: ":" + cfg.App.Port,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			Ready:          ready,
			StripeEvents:   reconciler,
			StripeVerifier: stripeClient,
			Metrics:        registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server, sweeper, nil
}

// buildNotifier writes notices to the outbox when a publisher can drain it and falls
// back to logging otherwise.
func buildNotifier(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (notifications.Notifier, error) {
	if strings.TrimSpace(cfg.GCP.ProjectID) == "" {
		return notifications.NewLogNotifier(logg), nil
	}
	return notifications.NewOutboxNotifier(outbox.NewService(outbox.NewRepository(dbClient.DB()), logg))
}

func buildCacheSweeper(
	cfg *config.Config,
	logg *logger.Logger,
	cache *idempotency.MemoryCache,
	webhookMetrics *metrics.WebhookMetrics,
	cronMetrics *metrics.CronJobMetrics,
) (*cron.Service, error) {
	job, err := idempotency.NewCacheSweepJob(idempotency.CacheSweepJobParams{
		Logger:    logg,
		Cache:     cache,
		Metrics:   webhookMetrics,
		Retention: cfg.Webhook.CacheRetention,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Name:     "api-cache-sweep",
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     cron.NewLocalLock(),
		Metrics:  cronMetrics,
		Interval: cfg.Webhook.SweepInterval,
	})
}
