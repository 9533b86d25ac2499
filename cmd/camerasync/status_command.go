package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"camerasync/internal/catalog"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var pendingOnly bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog state per image group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg.Paths.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.StateCounts(cmd.Context())
			if err != nil {
				return err
			}
			groups, err := store.Groups(cmd.Context())
			if err != nil {
				return err
			}

			r := newRenderer(cmd.OutOrStdout())
			r.stateCounts(counts)
			fmt.Fprintln(r.out)

			shown := groups[:0]
			for _, g := range groups {
				if pendingOnly && g.Done() {
					continue
				}
				shown = append(shown, g)
			}
			if len(shown) == 0 {
				fmt.Fprintln(r.out, "No image groups to show")
				return nil
			}
			r.groupTable(shown)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only show groups that still need processing")
	return cmd
}
