package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/braid/pkg/worktree"
)

func newGetCmd() *cobra.Command {
	var rev string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Print a file from a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			tree, err := c.revTree(cmd, rev)
			if err != nil {
				return err
			}
			data, err := tree.Read(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&rev, "rev", "r", "", "revision to read (default: the client's head)")
	return cmd
}

func newLsCmd() *cobra.Command {
	var (
		rev       string
		recursive bool
	)

	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List a directory of a commit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			tree, err := c.revTree(cmd, rev)
			if err != nil {
				return err
			}
			if len(args) == 1 && args[0] != "" {
				if tree, err = tree.Chroot(ctx, args[0]); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if !recursive {
				names, err := tree.List(ctx, "")
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}
			return worktree.Walk(ctx, []*worktree.FS{tree}, func(path string, es []*worktree.Entry) error {
				e := es[0]
				if e.IsDir() {
					return nil
				}
				fmt.Fprintf(out, "%06o %s %s\n", uint32(e.Mode), faintC.Sprint(e.Hash.Short()), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&rev, "rev", "r", "", "revision to list (default: the client's head)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "list every file beneath dir")
	return cmd
}

func (c *client) revTree(cmd *cobra.Command, rev string) (*worktree.FS, error) {
	ctx := cmd.Context()
	h, err := c.resolveRev(ctx, rev)
	if err != nil {
		return nil, err
	}
	commit, err := c.local.LoadCommit(ctx, h)
	if err != nil {
		return nil, err
	}
	return worktree.Open(c.local, commit.Tree), nil
}
