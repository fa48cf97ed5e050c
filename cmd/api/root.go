package main

import (
	"fmt"
	"todoTree/internal/config"
	"todoTree/internal/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	loader     = config.NewLoader()
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "todotree",
	Short: "Hierarchical to-do list with deadline-based priorities",
	// serve is the default
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = loader.Load(configPath)
		if err != nil {
			return err
		}
		if err := logger.Init(cfg.Logging.Development, cfg.Logging.Level); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yml")
	if err := loader.BindFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(treeCmd)
}
