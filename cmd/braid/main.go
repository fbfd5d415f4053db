package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

var rootFlags struct {
	Config string
	Debug  bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "braid",
		Short:         "Replicated object store for occasionally-connected clients",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if rootFlags.Debug {
				logrus.SetLevel(logrus.DebugLevel)
				logrus.WithField("version", version).Debug("enabled debug logging")
			}
		},
	}
	root.PersistentFlags().StringVarP(&rootFlags.Config, "config", "c", defaultConfigPath(), "client configuration file")
	root.PersistentFlags().BoolVar(&rootFlags.Debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newPutCmd(),
		newGetCmd(),
		newLsCmd(),
		newDiffCmd(),
		newFetchCmd(),
		newPushCmd(),
		newReconcileCmd(),
		newSyncCmd(),
		newHeadsCmd(),
		newLogCmd(),
		newReflogCmd(),
		newMergeBaseCmd(),
		newCatFileCmd(),
		newVerifyCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if rootFlags.Debug {
			fmt.Fprintf(os.Stderr, "error: %s\n%s\n", err, indent(fmt.Sprintf("%+v", err), "\t"))
		} else {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		os.Exit(1)
	}
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "braid %s\n", version)
		},
	}
}
