package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/braid/pkg/reconcile"
	"github.com/odvcencio/braid/pkg/treemerge"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Merge every client's head into the client's branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			return c.reconcile(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (c *client) reconcile(ctx context.Context, out io.Writer) error {
	sign, err := c.signer()
	if err != nil {
		return err
	}
	merger := treemerge.New(treemerge.Options{
		ConcatInsertions: c.cfg.Merge.ConcatInsertions,
		ShowBase:         c.cfg.Merge.ShowBase,
		Log:              c.log,
	})
	res, err := reconcile.Reconcile(ctx, c.local, reconcile.Options{
		Self:   c.cfg.Client,
		Branch: c.cfg.Branch,
		Merge:  merger.Merge,
		Person: c.cfg.person(),
		Signer: sign,
		Log:    c.log,
	})
	if err != nil {
		return err
	}

	for _, leaf := range res.Leaves {
		fmt.Fprintf(out, "  %s %s %s\n", hashC.Sprint(leaf.Hash.Short()), faintC.Sprint(leaf.Client), leaf.Commit.Summary())
	}
	switch {
	case !res.Updated:
		fmt.Fprintf(out, "%s already at %s\n", c.headRef(), hashC.Sprint(res.Hash.Short()))
	case res.Merges == 0:
		fmt.Fprintf(out, "%s fast-forwarded to %s\n", c.headRef(), hashC.Sprint(res.Hash.Short()))
	default:
		fmt.Fprintf(out, "%s merged %d heads into %s\n", c.headRef(), len(res.Leaves), hashC.Sprint(res.Hash.Short()))
	}
	st := merger.Stats()
	for _, p := range st.Conflicts {
		fmt.Fprintf(out, "%s %s\n", warningC.Sprint("conflict:"), p)
	}
	return nil
}
