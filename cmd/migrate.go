package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded PostgreSQL schema",
	Long: `Creates the range, booking, request and activity tables together with
the log_activity and queue_notification procedures. Safe to re-run.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pool, err := database.NewPool(cmd.Context(), cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	files, err := database.MigrationFiles()
	if err != nil {
		return err
	}
	if err := database.Migrate(cmd.Context(), pool, logger); err != nil {
		return err
	}
	logger.Info("schema up to date", zap.Strings("files", files))
	return nil
}
