package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/notcool100/financial-management-system/internal/config"
	"github.com/notcool100/financial-management-system/internal/database"
	"github.com/notcool100/financial-management-system/internal/logging"
)

const usage = "usage: migrate up | down | steps N | version"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf(usage)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	db, err := database.New(context.Background(), cfg.ConnectionString())
	if err != nil {
		return err
	}

	m, err := database.NewMigrator(db)
	if err != nil {
		db.Close()
		return err
	}
	defer m.Close()

	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "steps":
		if len(args) < 2 {
			return fmt.Errorf(usage)
		}

		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid step count %q: %w", args[1], err)
		}

		return m.Steps(n)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}

		fmt.Printf("version %d (dirty: %t)\n", version, dirty)

		return nil
	default:
		return fmt.Errorf("unknown command %q; %s", args[0], usage)
	}
}
