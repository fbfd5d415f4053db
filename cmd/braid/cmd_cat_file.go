package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/braid/pkg/object"
)

func newCatFileCmd() *cobra.Command {
	var typeOnly bool

	cmd := &cobra.Command{
		Use:   "cat-file <hash>",
		Short: "Print a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			h, err := c.resolveRev(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			obj, err := c.local.LoadObject(cmd.Context(), h)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if typeOnly {
				fmt.Fprintln(out, obj.Type())
				return nil
			}
			return printObject(out, obj)
		},
	}
	cmd.Flags().BoolVarP(&typeOnly, "type", "t", false, "print only the object type")
	return cmd
}

func printObject(out io.Writer, obj object.Object) error {
	switch o := obj.(type) {
	case *object.Blob:
		_, err := out.Write(o.Data)
		return err
	case *object.Tree:
		for _, e := range o.Entries {
			kind := object.TypeBlob
			switch {
			case e.Mode.IsDir():
				kind = object.TypeTree
			case e.Mode.IsSubmodule():
				kind = object.TypeCommit
			}
			fmt.Fprintf(out, "%06o %s %s\t%s\n", uint32(e.Mode), kind, e.Hash, e.Name)
		}
		return nil
	default:
		_, err := out.Write(object.EncodeBody(obj))
		return err
	}
}
