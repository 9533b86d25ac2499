package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"camerasync/internal/deps"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify external tools and directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			binaries := deps.CheckBinaries(deps.Requirements(cfg))
			dirs := deps.CheckDirectories(cfg)

			r := newRenderer(cmd.OutOrStdout())
			r.checks("Tools", binaries)
			fmt.Fprintln(r.out)
			r.checks("Directories", dirs)

			missing := deps.Missing(binaries)
			missing = append(missing, deps.Missing(dirs)...)
			if len(missing) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(missing))
			}
			return nil
		},
	}
}
