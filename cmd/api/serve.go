package main

import (
	"context"
	"os/signal"
	"syscall"
	"todoTree/internal/app"
	"todoTree/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the due-soon worker",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader.Watch(nil)
	if f := loader.File(); f != "" {
		logger.Info("Config: loaded", zap.String("file", f))
	}

	a := app.New(cfg)
	if err := a.Init(ctx); err != nil {
		return multierr.Append(err, a.Shutdown(context.Background()))
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("Server stopped with error", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}
