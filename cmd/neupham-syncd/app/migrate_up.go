package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yadaklinus/neuPham-sub000/database"
	"github.com/yadaklinus/neuPham-sub000/internal/config"
)

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending online store migrations",
	Long: `Apply all pending migrations to bring the online store schema up to date.
The remote connection parameters are read from the config file.`,
	RunE: runMigrateUp,
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	connString, proceed, err := migrationConnString(cmd, "apply migrations to")
	if err != nil || !proceed {
		return err
	}

	slog.Info("Applying online store migrations...")
	if err := database.MigrateUp(connString); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := database.GetVersion(connString)
	switch {
	case err != nil:
		slog.Warn("Unable to get migration version", "error", err)
	case dirty:
		slog.Warn("Online store is in a dirty state", "version", version)
	default:
		slog.Info("Migrations applied successfully", "version", version)
	}

	return nil
}

// migrationConnString loads the config named by the command's --config
// flag, prompts unless --yes was passed, and returns the remote
// connection string. proceed is false when the user declined.
func migrationConnString(cmd *cobra.Command, action string) (connString string, proceed bool, err error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", false, fmt.Errorf("failed to get config flag: %w", err)
	}

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return "", false, fmt.Errorf("failed to get yes flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return "", false, fmt.Errorf("failed to load config: %w", err)
	}

	if !yes {
		slog.Info(fmt.Sprintf("About to %s the online store", action),
			"user", cfg.Remote.User,
			"host", cfg.Remote.Host,
			"port", cfg.Remote.Port,
			"database", cfg.Remote.Database)
		fmt.Print("Continue? (yes/no): ")
		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			return "", false, fmt.Errorf("failed to read user input: %w", err)
		}
		if response != "yes" && response != "y" {
			slog.Info("Migration cancelled by user")
			return "", false, nil
		}
	}

	connString, err = cfg.Remote.GetConnectionString()
	if err != nil {
		return "", false, fmt.Errorf("failed to build connection string: %w", err)
	}
	return connString, true, nil
}
