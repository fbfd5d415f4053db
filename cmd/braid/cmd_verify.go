package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [rev]",
		Short: "Check a commit's SSH signature",
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
			commit, err := c.local.LoadCommit(ctx, h)
			if err != nil {
				return err
			}
			pub, err := verifyCommit(commit)
			if errors.Is(err, errUnsigned) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", hashC.Sprint(h.Short()), faintC.Sprint("unsigned"))
				return nil
			}
			if err != nil {
				return fmt.Errorf("commit %s: %w", h.Short(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n", hashC.Sprint(h.Short()), successC.Sprint("good signature"), pub.Type(), ssh.FingerprintSHA256(pub))
			return nil
		},
	}
}
