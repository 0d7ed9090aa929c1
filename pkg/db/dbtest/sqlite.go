// Package dbtest opens throwaway sqlite databases carrying the billing schema.
package dbtest

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// The Postgres schema lives in the goose migrations; this is the sqlite rendition of
// the same tables with enum and uuid columns stored as TEXT.
var schema = []string{
	`CREATE TABLE billing_events (
  id TEXT PRIMARY KEY,
  provider_event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  state TEXT NOT NULL DEFAULT 'processing',
  processed INTEGER NOT NULL DEFAULT 0,
  processed_at DATETIME,
  error TEXT,
  attempts INTEGER NOT NULL DEFAULT 0,
  claimed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE plans (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  price_per_member TEXT NOT NULL DEFAULT '0',
  max_members INTEGER NOT NULL DEFAULT 1,
  max_quizzes INTEGER NOT NULL DEFAULT 0,
  features TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE teams (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  owner_email TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE team_members (
  id TEXT PRIMARY KEY,
  team_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'MEMBER',
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE subscriptions (
  id TEXT PRIMARY KEY,
  team_id TEXT NOT NULL UNIQUE,
  plan_id TEXT NOT NULL,
  stripe_subscription_id TEXT UNIQUE,
  stripe_customer_id TEXT,
  stripe_price_id TEXT,
  stripe_product_id TEXT,
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  billing_cycle TEXT NOT NULL DEFAULT 'MONTHLY',
  member_count INTEGER NOT NULL DEFAULT 1,
  price_per_member TEXT NOT NULL DEFAULT '0',
  current_period_start DATETIME,
  current_period_end DATETIME,
  cancel_at_period_end INTEGER NOT NULL DEFAULT 0,
  canceled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE invoices (
  id TEXT PRIMARY KEY,
  subscription_id TEXT NOT NULL,
  team_id TEXT NOT NULL,
  stripe_invoice_id TEXT NOT NULL,
  status TEXT NOT NULL,
  subtotal INTEGER NOT NULL DEFAULT 0,
  tax INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL DEFAULT 0,
  amount_paid INTEGER NOT NULL DEFAULT 0,
  amount_due INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL,
  invoice_pdf TEXT,
  hosted_invoice_url TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  UNIQUE (stripe_invoice_id, status)
);`,
	`CREATE TABLE usage_records (
  id TEXT PRIMARY KEY,
  subscription_id TEXT NOT NULL,
  team_id TEXT NOT NULL,
  member_count INTEGER NOT NULL,
  previous_count INTEGER NOT NULL,
  recorded_at DATETIME NOT NULL
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns an in-memory database with the billing schema applied. The pool is
// pinned to one connection so every statement sees the same in-memory database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
