package main

import (
	"context"
	"fmt"

	"marketfront-go/internal/app"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run the housekeeping jobs once and exit",
	Long:  `Removes unredeemed login values and expired tokens without starting the servers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx := context.Background()
		application, err := app.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		defer application.Storage.Close()

		if err := application.Scheduler.RunAll(ctx); err != nil {
			return fmt.Errorf("housekeeping failed: %w", err)
		}
		for _, job := range application.Scheduler.Jobs() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", job.Name, job.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
