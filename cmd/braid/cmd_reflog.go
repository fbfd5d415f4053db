package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReflogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show ref update history, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			ref := c.headRef()
			if len(args) == 1 {
				ref = args[0]
			}
			entries, err := c.local.GetReflog(cmd.Context(), ref)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, n := len(entries)-1, 0; i >= 0 && (limit <= 0 || n < limit); i, n = i-1, n+1 {
				e := entries[i]
				ts := e.Person.When.Time().UTC().Format("2006-01-02T15:04:05Z")
				fmt.Fprintf(out, "%s %s %s %s\n", hashC.Sprint(e.New.Short()), faintC.Sprint(ts), e.Person.Name, e.Description)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum entries to show")
	return cmd
}
