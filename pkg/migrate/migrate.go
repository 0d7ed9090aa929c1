// Package migrate applies the billing schema with goose.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Migrator runs goose commands against one database and migrations directory.
type Migrator struct {
	db  *sql.DB
	dir string
}

// New prepares a Migrator. An empty dir means DefaultDir.
func New(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		dir = DefaultDir
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Migrator{db: db, dir: dir}, nil
}

// Up validates the directory and applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	if err := ValidateDir(m.dir); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the latest migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := goose.DownContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// Status prints applied and pending migrations to stdout.
func (m *Migrator) Status(ctx context.Context) error {
	if err := goose.StatusContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	return nil
}

// Version returns the latest applied migration version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

// To moves the schema up or down until target is the latest applied version.
func (m *Migrator) To(ctx context.Context, target string) error {
	want, err := ParseVersion(target)
	if err != nil {
		return err
	}
	have, err := m.Version(ctx)
	if err != nil {
		return err
	}
	switch {
	case have < want:
		err = goose.UpToContext(ctx, m.db, m.dir, want)
	case have > want:
		err = goose.DownToContext(ctx, m.db, m.dir, want)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", have, want, err)
	}
	return nil
}

// ParseVersion accepts a YYYYMMDDHHMMSS migration version.
func ParseVersion(v string) (int64, error) {
	if _, err := time.Parse(versionLayout, v); err != nil {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", v, err)
	}
	return strconv.ParseInt(v, 10, 64)
}
