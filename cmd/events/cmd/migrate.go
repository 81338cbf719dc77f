package cmd

import (
	"context"
	"fmt"

	"github.com/pershin-daniil/Events/pkg/config"
	"github.com/pershin-daniil/Events/pkg/logger"
	"github.com/pershin-daniil/Events/pkg/pgstore"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or revert database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd, migrate.Up)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert applied migrations (one step unless --steps is given)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("steps") {
			migrateSteps = 1
		}
		return runMigrate(cmd, migrate.Down)
	},
}

func init() {
	migrateCmd.PersistentFlags().IntVar(&migrateSteps, "steps", 0, "number of migrations to run (0 means all)")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigrate(cmd *cobra.Command, direction migrate.MigrationDirection) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("migrations need the %s store, got %s", config.StorePostgres, cfg.Store)
	}
	if migrateSteps < 0 {
		return fmt.Errorf("--steps must not be negative")
	}
	log := logger.New(cfg.LogLevel)
	store, err := pgstore.New(context.Background(), log, cfg.PgDSN)
	if err != nil {
		return fmt.Errorf("err connecting to postgres: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("err closing store: %v", err)
		}
	}()
	n, err := store.Migrate(direction, migrateSteps)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migrations\n", n)
	return nil
}
