package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"camerasync/internal/ingest"
	"camerasync/internal/logging"
	"camerasync/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Archive new files from the camera and process unprocessed groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhases(cmd, ctx, ingest.PhaseAll, workers)
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override workers.count")
	return cmd
}

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Copy new files from the camera into the archive and index it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhases(cmd, ctx, ingest.PhaseArchive|ingest.PhaseIndex, 0)
		},
	}
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process unprocessed image groups from the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhases(cmd, ctx, ingest.PhaseProcess, workers)
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override workers.count")
	return cmd
}

func runPhases(cmd *cobra.Command, ctx *commandContext, phases ingest.Phase, workers int) error {
	cfg, logger, tc, err := ctx.runtime()
	if err != nil {
		return err
	}
	if workers > 0 {
		cfg.Workers.Count = workers
	}
	summary, err := ingest.NewRunner(cfg, tc, logger, ingest.WithBinaryCheck()).Run(cmd.Context(), phases)
	if summary.Duration > 0 {
		printSummary(cmd.OutOrStdout(), phases, summary)
	}
	return err
}

func printSummary(out io.Writer, phases ingest.Phase, s ingest.Summary) {
	if phases.Has(ingest.PhaseArchive) {
		fmt.Fprintf(out, "Archived: %d copied, %d skipped, %d unsupported, %d failed\n",
			s.Archived.Copied, s.Archived.Skipped, s.Archived.Unsupported, s.Archived.Failed)
	}
	if phases.Has(ingest.PhaseIndex) {
		fmt.Fprintf(out, "Indexed: %d registered\n", s.Indexed.Registered)
	}
	if phases.Has(ingest.PhaseProcess) {
		printResult(out, s.Process)
	}
}

func printResult(out io.Writer, r pipeline.Result) {
	fmt.Fprintf(out, "Processed: %d of %d groups, %d failed\n", r.Processed, r.Groups, r.Failed)
}

func newProcessFilesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process-files <file>...",
		Short: "Convert the given raw files without touching the catalog",
		Long: "Groups the given files into brackets by filename and capture metadata and runs\n" +
			"the conversion chain for each group. Non-raw files are copied to the output directory.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, tc, err := ctx.runtime()
			if err != nil {
				return err
			}
			orch := pipeline.NewOrchestrator(cfg, nil, tc, logger)
			result, err := orch.ProcessFiles(logging.WithRunID(cmd.Context(), "adhoc"), tc, args)
			printResult(cmd.OutOrStdout(), result)
			return err
		},
	}
}
