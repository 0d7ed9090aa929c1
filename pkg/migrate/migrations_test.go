package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/billing-webhooks/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestMigrationsContainConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_billing_events": {
			"CONSTRAINT ux_billing_events_provider_event UNIQUE (provider_event_id)",
			"processed boolean NOT NULL DEFAULT false",
			"DROP TABLE IF EXISTS billing_events",
		},
		"create_subscriptions": {
			"team_id uuid NOT NULL UNIQUE",
			"stripe_subscription_id text UNIQUE",
			"CONSTRAINT ux_invoices_stripe_status UNIQUE (stripe_invoice_id, status)",
			"CREATE TABLE IF NOT EXISTS usage_records",
			"DROP TABLE IF EXISTS subscriptions",
		},
		"create_plans": {
			"type plan_type NOT NULL UNIQUE",
			"('FREE', 'Free', 0, 1, 3,",
			"('PRO', 'Pro', 8.00, 25, 100,",
			"('PREMIUM', 'Premium', 15.00, 500, -1,",
		},
		"create_outbox": {
			"'billing.payment_failed', 'billing.payment_recovered', 'billing.subscription_ended'",
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
		},
	}

	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "add_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename error")
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Invoice Index")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_invoice_index.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration must validate: %v", err)
	}
}

func TestValidateDirRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_unbalanced.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatalf("expected unbalanced marker error")
	}
}

func TestParseVersion(t *testing.T) {
	v, err := migrate.ParseVersion("20260101000500")
	if err != nil {
		t.Fatalf("parse version: %v", err)
	}
	if v != 20260101000500 {
		t.Fatalf("unexpected version %d", v)
	}
	for _, bad := range []string{"", "2026", "20261301000000", "latest"} {
		if _, err := migrate.ParseVersion(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNewRequiresDB(t *testing.T) {
	if _, err := migrate.New(nil, ""); err == nil {
		t.Fatalf("expected error without db")
	}
}
