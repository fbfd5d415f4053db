package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/braid/pkg/object"
)

func newMergeBaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge-base <rev> <rev>...",
		Short: "Find the best common ancestors of commits",
		Long: `Prints every best common ancestor, then the inputs that are not
ancestors of any other input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			hashes := make([]object.Hash, len(args))
			for i, rev := range args {
				if hashes[i], err = c.resolveRev(ctx, rev); err != nil {
					return err
				}
			}
			res, err := c.local.MergeBase(ctx, hashes)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, h := range res.Best {
				fmt.Fprintf(out, "best %s\n", h)
			}
			for _, h := range res.Leaves {
				fmt.Fprintf(out, "leaf %s\n", h)
			}
			return nil
		},
	}
}
