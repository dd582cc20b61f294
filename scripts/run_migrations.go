package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/migrations"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		logger.Error("usage: go run scripts/run_migrations.go [up|down]")
		os.Exit(2)
	}
	direction := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	applied, err := migrations.Run(context.Background(), db, direction)
	if err != nil {
		logger.Error("run migrations", "direction", direction, "error", err)
		os.Exit(1)
	}

	for _, name := range applied {
		logger.Info("applied migration", "file", name)
	}
	logger.Info("migrations complete", "count", len(applied), "direction", direction)
}
