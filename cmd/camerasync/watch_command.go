package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"camerasync/internal/ingest"
	"camerasync/internal/logging"
	"camerasync/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var settle time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run automatically whenever camera storage is attached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, tc, err := ctx.runtime()
			if err != nil {
				return err
			}
			runner := ingest.NewRunner(cfg, tc, logger, ingest.WithBinaryCheck())
			trigger := func(runCtx context.Context, device string) error {
				summary, err := runner.Run(runCtx, ingest.PhaseAll)
				if err != nil {
					return err
				}
				logger.Info("storage run complete",
					logging.String("device", device),
					logging.String(logging.FieldRunID, summary.RunID),
					logging.Int("copied", summary.Archived.Copied),
					logging.Int("processed", summary.Process.Processed),
				)
				return nil
			}

			var opts []watch.Option
			if cmd.Flags().Changed("settle") {
				opts = append(opts, watch.WithSettle(settle))
			}
			w, err := watch.New(cfg, trigger, logger, opts...)
			if err != nil {
				return err
			}
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", 0, "Override watch.settle_seconds")
	return cmd
}
