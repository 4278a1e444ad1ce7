package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/txxdx/devcamper-api/internal/config"
	"github.com/txxdx/devcamper-api/internal/database"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run MySQL schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := migrationConfig()
		if err != nil {
			return err
		}
		if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
			return err
		}
		cmd.Println("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		cfg, err := migrationConfig()
		if err != nil {
			return err
		}
		if err := database.MigrateDown(cfg.DatabaseURL(), steps); err != nil {
			return err
		}
		cmd.Println("migrations rolled back")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateDownCmd.Flags().Int("steps", 1, "number of migrations to roll back (0 rolls back all)")
}

func migrationConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.DBDriver != "mysql" {
		return config.Config{}, errors.New("migrations only apply to DB_DRIVER=mysql")
	}
	return cfg, nil
}
