package main

import (
	"todoTree/internal/app"
	"todoTree/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the storage schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := app.OpenMigrator(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("Migrations applied", zap.String("backend", cfg.Repository.Type))
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration, dropping all tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := app.OpenMigrator(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Down(cmd.Context()); err != nil {
			return err
		}
		logger.Info("Migrations rolled back", zap.String("backend", cfg.Repository.Type))
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}
