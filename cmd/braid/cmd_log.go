package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/repo"
)

func newLogCmd() *cobra.Command {
	var (
		oneline bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "log [rev]",
		Short: "Show commit history, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			rev := ""
			if len(args) == 1 {
				rev = args[0]
			}
			h, err := c.resolveRev(ctx, rev)
			if err != nil {
				return err
			}
			return writeLog(ctx, cmd.OutOrStdout(), c.local, h, limit, oneline)
		},
	}
	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum commits to show")
	return cmd
}

// writeLog prints commits reachable from start in committer-time order.
// Ancestors missing from a shallow repository end their line of history.
func writeLog(ctx context.Context, out io.Writer, r *repo.Repo, start object.Hash, limit int, oneline bool) error {
	type item struct {
		hash   object.Hash
		commit *object.Commit
	}
	seen := map[object.Hash]bool{start: true}
	var (
		pending []item
		missing []object.Hash
	)
	load := func(h object.Hash) error {
		commit, err := r.LoadCommit(ctx, h)
		if _, ok := object.IsMissing(err); ok {
			missing = append(missing, h)
			return nil
		}
		if err != nil {
			return err
		}
		pending = append(pending, item{hash: h, commit: commit})
		return nil
	}
	if err := load(start); err != nil {
		return err
	}

	for shown := 0; len(pending) > 0 && (limit <= 0 || shown < limit); shown++ {
		sort.SliceStable(pending, func(i, j int) bool {
			return pending[i].commit.Committer.When.Seconds > pending[j].commit.Committer.When.Seconds
		})
		it := pending[0]
		pending = pending[1:]

		writeCommit(out, it.hash, it.commit, oneline)
		for _, p := range it.commit.Parents {
			if seen[p] {
				continue
			}
			seen[p] = true
			if err := load(p); err != nil {
				return err
			}
		}
	}
	for _, h := range missing {
		fmt.Fprintf(out, "%s %s\n", faintC.Sprint("shallow:"), h.Short())
	}
	return nil
}

func writeCommit(out io.Writer, h object.Hash, c *object.Commit, oneline bool) {
	if oneline {
		fmt.Fprintf(out, "%s %s\n", hashC.Sprint(h.Short()), c.Summary())
		return
	}
	fmt.Fprintf(out, "%s\n", hashC.Sprintf("commit %s", h))
	if len(c.Parents) > 1 {
		fmt.Fprint(out, "Merge:")
		for _, p := range c.Parents {
			fmt.Fprintf(out, " %s", p.Short())
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(out, "Date:   %s\n", c.Author.When.Time().Format("2006-01-02 15:04:05 -0700"))
	if c.Signature != "" {
		fmt.Fprintln(out, faintC.Sprint("Signed"))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    %s\n\n", c.Summary())
}
