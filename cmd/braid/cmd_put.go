package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/worktree"
)

func newPutCmd() *cobra.Command {
	var (
		message    string
		executable bool
		remove     bool
	)

	cmd := &cobra.Command{
		Use:   "put <path> [file]",
		Short: "Commit a file to the client's branch",
		Long: `Writes the contents of file (or stdin) to path in the head tree and
commits the result on the client's branch. With --delete the path is
removed instead.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			path := args[0]

			parent, tree, err := c.headTree(ctx)
			if err != nil {
				return err
			}
			if remove {
				if err := removePath(ctx, tree, path); err != nil {
					return err
				}
			} else {
				var data []byte
				if len(args) == 2 {
					data, err = os.ReadFile(args[1])
				} else {
					data, err = io.ReadAll(cmd.InOrStdin())
				}
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				if executable {
					err = tree.WriteMode(ctx, path, data, object.ModeExecutable)
				} else {
					err = tree.Write(ctx, path, data)
				}
				if err != nil {
					return err
				}
			}

			if message == "" {
				verb := "Update"
				if remove {
					verb = "Remove"
				}
				message = fmt.Sprintf("%s %s", verb, path)
			}
			h, err := c.commitTree(ctx, tree, parent, message)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", hashC.Sprint(h.Short()), message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVar(&executable, "executable", false, "mark the file executable")
	cmd.Flags().BoolVar(&remove, "delete", false, "remove path instead of writing it")
	return cmd
}

func removePath(ctx context.Context, tree *worktree.FS, path string) error {
	e, err := tree.Stat(ctx, path)
	if err != nil {
		return err
	}
	if e.IsDir() {
		return tree.DeleteDirectory(ctx, path)
	}
	return tree.DeleteFile(ctx, path)
}

// headTree opens a worktree over the client's head, or an empty one when
// the branch has no commits yet.
func (c *client) headTree(ctx context.Context) (object.Hash, *worktree.FS, error) {
	head, err := c.local.GetRef(ctx, c.headRef())
	if err != nil {
		return "", nil, err
	}
	if head == "" {
		return "", worktree.New(c.local), nil
	}
	info, err := c.local.ResolveHead(ctx, c.headRef())
	if err != nil {
		return "", nil, err
	}
	if info.Hash != head {
		c.log.WithField("head", head.Short()).WithField("resolved", info.Hash.Short()).Warn("head commit missing; building on an older reflog entry")
	}
	return info.Hash, worktree.Open(c.local, info.Commit.Tree), nil
}

// commitTree saves tree, commits it on top of parent and advances the
// client's head.
func (c *client) commitTree(ctx context.Context, tree *worktree.FS, parent object.Hash, message string) (object.Hash, error) {
	root, err := tree.Save(ctx)
	if err != nil {
		return "", err
	}
	who := c.cfg.person()
	commit := &object.Commit{Tree: root, Author: who, Committer: who, Message: message + "\n"}
	if parent != "" {
		commit.Parents = []object.Hash{parent}
	}
	sign, err := c.signer()
	if err != nil {
		return "", err
	}
	h, err := c.local.WriteCommit(ctx, commit, sign)
	if err != nil {
		return "", err
	}
	if err := c.local.UpdateRef(ctx, c.headRef(), h, who, "commit: "+commit.Summary()); err != nil {
		return "", err
	}
	return h, nil
}
