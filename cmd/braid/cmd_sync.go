package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/braid/pkg/reconcile"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch from, reconcile with and push to every shared store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			stores, err := c.selectStores("", true)
			if err != nil {
				return err
			}

			fetched, fetchErr := c.fetch(ctx, stores)
			printRefResults(out, fetched)
			if fetchErr != nil {
				// Heads that did fetch can still be reconciled.
				fmt.Fprintf(out, "%s %v\n", failureC.Sprint("fetch:"), fetchErr)
			}

			err = c.reconcile(ctx, out)
			if errors.Is(err, reconcile.ErrNoCommittedState) {
				fmt.Fprintln(out, faintC.Sprint("nothing committed yet; skipping push"))
				return fetchErr
			}
			if err != nil {
				return err
			}

			pushed, err := c.push(ctx, stores)
			printRefResults(out, pushed)
			return errors.Join(fetchErr, err)
		},
	}
}
