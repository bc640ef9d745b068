package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/config"
	"github.com/Togather-Foundation/campus-events/internal/domain/events"
	"github.com/Togather-Foundation/campus-events/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newReconcileCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Complete every event whose start time has passed",
		Long: `Mark every past event that is not completed or cancelled as completed.

The server does the same on every event read and on a schedule; this command
runs one pass on demand. It is idempotent.

Examples:
  server reconcile
  server reconcile --timeout 1m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := postgres.OpenPool(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer pool.Close()

			repo, err := postgres.NewRepository(pool)
			if err != nil {
				return err
			}

			completed, err := events.NewService(repo.Events(), logger).ReconcileExpiredEvents(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed %d event(s)\n", completed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "maximum time to wait for the database")
	return cmd
}
