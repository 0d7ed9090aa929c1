// Package bootstrap holds the startup sequence shared by the api, cron-worker and
// outbox-publisher binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/db"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/metrics"
	"github.com/angelmondragon/billing-webhooks/pkg/migrate"
)

// Runtime is what every binary has after startup: config, logger, database and a
// signal-aware context.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	ctx     context.Context
	stop    context.CancelFunc
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Start loads .env and config, builds the logger for service, connects Postgres and
// applies dev migrations. The returned context is canceled on SIGINT or SIGTERM.
func Start(service string) (*Runtime, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service
	logg = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": service,
		"instance":    cfg.Service.InstanceID,
	})
	rt := &Runtime{Config: cfg, Logger: logg, ctx: ctx, stop: stop}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		stop()
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	rt.DB = dbClient
	rt.OnClose("database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		rt.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return rt, nil
}

// Context is canceled when the process receives SIGINT or SIGTERM.
func (r *Runtime) Context() context.Context {
	return r.ctx
}

// OnClose registers fn to run during Close. Closers run in reverse order.
func (r *Runtime) OnClose(name string, fn func() error) {
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

// Close releases everything registered with OnClose and logs failures.
func (r *Runtime) Close() {
	r.stop()
	var errs error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	if errs != nil {
		r.Logger.Error(context.Background(), "shutdown released resources with errors", errs)
	}
}

// ServeMetrics exposes gatherer on the configured metrics address in the background.
// It is a no-op when BILLING_METRICS_ADDR is empty.
func (r *Runtime) ServeMetrics(gatherer prometheus.Gatherer) {
	addr := r.Config.Service.MetricsAddr
	if addr == "" {
		return
	}
	ctx := r.Logger.WithField(r.ctx, "metrics_addr", addr)
	go func() {
		if err := metrics.Serve(ctx, addr, gatherer); err != nil {
			r.Logger.Error(ctx, "metrics listener stopped", err)
		}
	}()
}

// Fatal logs err and exits. Deferred closers do not run.
func Fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}

// Canceled reports whether err is the normal result of a shutdown signal.
func Canceled(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
