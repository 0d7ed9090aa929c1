package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/billing-webhooks/internal/billing"
	"github.com/angelmondragon/billing-webhooks/internal/billingevents"
	"github.com/angelmondragon/billing-webhooks/internal/bootstrap"
	"github.com/angelmondragon/billing-webhooks/internal/cron"
	"github.com/angelmondragon/billing-webhooks/internal/memberships"
	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/db"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/metrics"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox"
	"github.com/angelmondragon/billing-webhooks/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	rt, err := bootstrap.Start(serviceName)
	if err != nil {
		bootstrap.Fatal(logger.New(logger.Options{ServiceName: serviceName}), "cron worker startup failed", err)
	}
	defer rt.Close()

	service, err := build(rt)
	if err != nil {
		bootstrap.Fatal(rt.Logger, "failed to assemble cron worker", err)
	}
	rt.ServeMetrics(prometheus.DefaultGatherer)

	ctx := rt.Context()
	rt.Logger.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); !bootstrap.Canceled(err) {
		rt.Logger.Error(ctx, "cron worker stopped unexpectedly", err)
		rt.Close()
		os.Exit(1)
	}
	rt.Logger.Info(ctx, "cron worker shutting down gracefully")
}

// build puts the maintenance jobs behind a Redis lock so only one worker runs a cycle.
func build(rt *bootstrap.Runtime) (*cron.Service, error) {
	cfg := rt.Config
	redisClient, err := redis.New(rt.Context(), cfg.Redis, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	rt.OnClose("redis", redisClient.Close)

	lock, err := cron.NewRedisLock(redisClient, lockKey(redisClient, cfg), cfg.Cron.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}
	registry, err := buildRegistry(cfg, rt.Logger, rt.DB)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Name:     serviceName,
		Logger:   rt.Logger,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	staleClaims, err := billingevents.NewStaleClaimJob(billingevents.StaleClaimJobParams{
		Logger:     logg,
		Repository: billingevents.NewRepository(dbClient.DB()),
		Lease:      cfg.Webhook.ClaimLease,
	})
	if err != nil {
		return nil, fmt.Errorf("stale claim job: %w", err)
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outbox.NewRepository(dbClient.DB()),
		Retention:        cfg.Cron.OutboxRetention,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	seatDrift, err := cron.NewSeatDriftJob(cron.SeatDriftJobParams{
		Logger:        logg,
		Subscriptions: billing.NewRepository(dbClient.DB()),
		Members:       memberships.NewRepository(dbClient.DB()),
	})
	if err != nil {
		return nil, fmt.Errorf("seat drift job: %w", err)
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{staleClaims, retention, seatDrift} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func lockKey(client *redis.Client, cfg *config.Config) string {
	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	return client.LockKey(fmt.Sprintf("%s:%s", cfg.Cron.LockKey, env))
}
