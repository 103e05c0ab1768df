package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yadaklinus/neuPham-sub000/database"
)

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back online store migrations",
	Long: `Roll back all online store migrations. This drops the remote tables and
is intended for development environments only.`,
	RunE: runMigrateDown,
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	connString, proceed, err := migrationConnString(cmd, "roll back migrations on")
	if err != nil || !proceed {
		return err
	}

	slog.Info("Rolling back online store migrations...")
	if err := database.MigrateDown(connString); err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	slog.Info("Migrations rolled back successfully")
	return nil
}
