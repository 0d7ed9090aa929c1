package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/db"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

// MaybeRunDev applies pending migrations on startup in dev when BILLING_AUTO_MIGRATE is set.
// Other environments run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !shouldAutoMigrate(cfg) {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := New(sqlDB, DefaultDir)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "migrations_dir", m.dir)
	if err := m.Up(ctx); err != nil {
		return err
	}
	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "billing schema is current")
	return nil
}

func shouldAutoMigrate(cfg *config.Config) bool {
	return cfg != nil && cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate
}
