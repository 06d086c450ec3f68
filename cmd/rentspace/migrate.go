package main

import (
	"errors"
	"fmt"
	"log/slog"

	"rentspace/internal/infra/config"
	"rentspace/internal/infra/db/postgres"
)

// runMigrate handles `rentspace migrate up|down` against POSTGRES_URL.
func runMigrate(cfg config.Config, logger *slog.Logger, args []string) error {
	if cfg.PostgresURL == "" {
		return errors.New("POSTGRES_URL is required for migrations")
	}
	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}
	switch direction {
	case "up":
		return postgres.RunMigrations(cfg.PostgresURL, logger)
	case "down":
		if err := postgres.RollbackMigrations(cfg.PostgresURL); err != nil {
			return err
		}
		logger.Info("migrations rolled back")
		return nil
	default:
		return fmt.Errorf("unknown migrate direction %q", direction)
	}
}
