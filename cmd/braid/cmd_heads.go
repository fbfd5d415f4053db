package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/braid/pkg/repo"
)

func newHeadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heads",
		Short: "Show the head of every client known locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			c, err := openClient(cmd)
			if err != nil {
				return err
			}

			refs := []string{c.headRef()}
			remotes, err := c.local.ListRefs(ctx, "refs/remotes")
			if err != nil {
				return err
			}
			for _, ref := range remotes {
				if _, branch, ok := repo.SplitRemoteRef(ref); ok && branch == c.cfg.Branch {
					refs = append(refs, ref)
				}
			}

			for _, ref := range refs {
				cur, err := c.local.GetRef(ctx, ref)
				if err != nil {
					return err
				}
				info, err := c.local.ResolveHead(ctx, ref)
				switch {
				case errors.Is(err, repo.ErrNoHead):
					fmt.Fprintf(out, "%-8s %s %s\n", failureC.Sprint("none"), ref, faintC.Sprint(err))
					continue
				case err != nil:
					return err
				}
				note := ""
				switch {
				case cur == "":
					note = warningC.Sprint(" (from reflog, ref unset)")
				case info.Hash != cur:
					note = warningC.Sprintf(" (from reflog, ref at missing %s)", cur.Short())
				}
				fmt.Fprintf(out, "%s %s %s%s\n", hashC.Sprint(info.Hash.Short()), ref, info.Commit.Summary(), note)
			}
			return nil
		},
	}
}
