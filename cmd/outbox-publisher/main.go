package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/billing-webhooks/internal/bootstrap"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/metrics"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox/registry"
	"github.com/angelmondragon/billing-webhooks/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	rt, err := bootstrap.Start(serviceName)
	if err != nil {
		bootstrap.Fatal(logger.New(logger.Options{ServiceName: serviceName}), "outbox publisher startup failed", err)
	}
	defer rt.Close()

	service, err := build(rt)
	if err != nil {
		bootstrap.Fatal(rt.Logger, "failed to assemble outbox publisher", err)
	}
	rt.ServeMetrics(prometheus.DefaultGatherer)

	ctx := rt.Logger.WithField(rt.Context(), "topic", rt.Config.PubSub.NotificationTopic)
	rt.Logger.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); !bootstrap.Canceled(err) {
		rt.Logger.Error(ctx, "outbox publisher stopped unexpectedly", err)
		rt.Close()
		os.Exit(1)
	}
	rt.Logger.Info(ctx, "outbox publisher shutting down gracefully")
}

func build(rt *bootstrap.Runtime) (*Service, error) {
	cfg := rt.Config
	pubsubClient, err := pubsub.NewClient(rt.Context(), cfg.GCP, cfg.PubSub, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap pubsub: %w", err)
	}
	rt.OnClose("pubsub", pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return nil, fmt.Errorf("event registry: %w", err)
	}
	return NewService(ServiceParams{
		Config:        cfg,
		Logger:        rt.Logger,
		DB:            rt.DB,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(rt.DB.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(rt.DB.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
}
