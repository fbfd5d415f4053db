package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/braid/pkg/diff"
	"github.com/odvcencio/braid/pkg/worktree"
)

func newDiffCmd() *cobra.Command {
	var (
		nameStatus bool
		unified    int
	)

	cmd := &cobra.Command{
		Use:   "diff [from] [to]",
		Short: "Show changes between commits",
		Long: `With no arguments, shows the changes made by the client's head commit.
With one revision, shows the changes that commit made against its first
parent. With two, shows the changes from the first to the second.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openClient(cmd)
			if err != nil {
				return err
			}

			var before, after *worktree.FS
			if len(args) == 2 {
				if before, err = c.revTree(cmd, args[0]); err != nil {
					return err
				}
				if after, err = c.revTree(cmd, args[1]); err != nil {
					return err
				}
			} else {
				rev := ""
				if len(args) == 1 {
					rev = args[0]
				}
				h, err := c.resolveRev(ctx, rev)
				if err != nil {
					return err
				}
				commit, err := c.local.LoadCommit(ctx, h)
				if err != nil {
					return err
				}
				after = worktree.Open(c.local, commit.Tree)
				if len(commit.Parents) > 0 {
					parent, err := c.local.LoadCommit(ctx, commit.Parents[0])
					if err != nil {
						return fmt.Errorf("first parent of %s: %w", h.Short(), err)
					}
					before = worktree.Open(c.local, parent.Tree)
				}
			}

			changes, err := diff.Trees(ctx, before, after)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if nameStatus {
				diff.FormatSummary(out, changes)
				return nil
			}
			for _, ch := range changes {
				var old, cur []byte
				if ch.Before != nil {
					if old, err = before.Read(ctx, ch.Path); err != nil {
						return err
					}
				}
				if ch.After != nil {
					if cur, err = after.Read(ctx, ch.Path); err != nil {
						return err
					}
				}
				fmt.Fprintln(out, boldC.Sprintf("diff %s", ch.Path))
				if ch.Before != nil && ch.After != nil && ch.Before.Mode != ch.After.Mode {
					fmt.Fprintf(out, "old mode %06o\nnew mode %06o\n", uint32(ch.Before.Mode), uint32(ch.After.Mode))
				}
				diff.Unified(out, ch.Path, old, cur, unified)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&nameStatus, "name-status", false, "show only changed paths with A, M or D")
	cmd.Flags().IntVarP(&unified, "unified", "U", diff.DefaultContext, "lines of context around each change")
	return cmd
}
