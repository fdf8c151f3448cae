package main

// Run database migrations:
//   go run ./cmd/migrate [up|down|status]

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"compare-backend/internal/shared/config"
	"compare-backend/internal/shared/storage/db"
	"compare-backend/internal/shared/telemetry"
)

func main() {
	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	if err := run(context.Background(), cmd); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": cmd, "error": err})
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string) error {
	action, err := actionFor(cmd)
	if err != nil {
		return err
	}

	cfg := config.Load()
	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer sqlDB.Close()

	return action(ctx, sqlDB)
}

func actionFor(cmd string) (func(context.Context, *sql.DB) error, error) {
	switch cmd {
	case "up":
		return db.RunMigrations, nil
	case "down":
		return db.RollbackMigration, nil
	case "status":
		return db.MigrationStatus, nil
	default:
		return nil, fmt.Errorf("unknown command %q (want up, down or status)", cmd)
	}
}
