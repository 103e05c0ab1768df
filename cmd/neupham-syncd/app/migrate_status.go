package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/yadaklinus/neuPham-sub000/database"
	"github.com/yadaklinus/neuPham-sub000/internal/config"
)

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the online store migration version",
	RunE:  runMigrateStatus,
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	connString, err := cfg.Remote.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to build connection string: %w", err)
	}

	version, dirty, err := database.GetVersion(connString)
	if errors.Is(err, migrate.ErrNilVersion) {
		slog.Info("Online store has no migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	slog.Info("Online store migration status", "version", version, "dirty", dirty)
	return nil
}
