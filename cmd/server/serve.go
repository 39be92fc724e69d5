package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"marketfront-go/internal/app"
	"marketfront-go/internal/config"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and metrics servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		application, err := app.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}

		runErr := application.Run(ctx)
		application.Logger.Info("Shutdown signal received, initiating graceful shutdown...")
		if err := application.Stop(context.Background()); err != nil {
			application.Logger.WithError(err).Error("Error during graceful shutdown")
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
