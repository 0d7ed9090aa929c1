package migrate

import (
	"testing"

	"github.com/angelmondragon/billing-webhooks/pkg/config"
)

func TestShouldAutoMigrate(t *testing.T) {
	dev := &config.Config{App: config.AppConfig{Env: config.AppEnvDev}}
	dev.FeatureFlags.AutoMigrate = true
	if !shouldAutoMigrate(dev) {
		t.Fatalf("dev with auto-migrate must run")
	}

	prod := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}}
	prod.FeatureFlags.AutoMigrate = true
	if shouldAutoMigrate(prod) {
		t.Fatalf("prod must never auto-migrate")
	}

	dev.FeatureFlags.AutoMigrate = false
	if shouldAutoMigrate(dev) || shouldAutoMigrate(nil) {
		t.Fatalf("auto-migrate flag is required")
	}
}
