package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/db"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// offline commands only touch the migrations directory.
var offline = map[string]func(options) error{
	"create": func(o options) error {
		if o.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(o options) error {
		if err := migrate.ValidateDir(o.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	},
}

var online = map[string]func(context.Context, *migrate.Migrator, options) error{
	"up":     func(ctx context.Context, m *migrate.Migrator, _ options) error { return m.Up(ctx) },
	"down":   func(ctx context.Context, m *migrate.Migrator, _ options) error { return m.Down(ctx) },
	"status": func(ctx context.Context, m *migrate.Migrator, _ options) error { return m.Status(ctx) },
	"version": func(ctx context.Context, m *migrate.Migrator, o options) error {
		if o.version == "" {
			v, err := m.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Println("schema version:", v)
			return nil
		}
		return m.To(ctx, o.version)
	},
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version; empty prints the current one")
	flag.Parse()

	if run, ok := offline[opts.cmd]; ok {
		if err := run(opts); err != nil {
			fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
			os.Exit(1)
		}
		return
	}
	run, ok := online[opts.cmd]
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", opts.cmd)
		os.Exit(2)
	}

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{ServiceName: "migrate", Level: logger.ParseLevel(cfg.App.LogLevel), Format: cfg.App.LogFormat})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	if err := runOnline(ctx, cfg, logg, opts, run); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration command finished")
}

func runOnline(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options, run func(context.Context, *migrate.Migrator, options) error) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := migrate.New(sqlDB, opts.dir)
	if err != nil {
		return err
	}
	return run(ctx, m, opts)
}
