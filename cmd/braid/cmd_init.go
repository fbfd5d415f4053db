package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var (
		name, email string
		sharedRoot  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a client configuration and create its stores",
		Long: `Writes a configuration with a fresh client id if none exists, then
creates the local store and every configured shared store that is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			path := rootFlags.Config

			_, err := os.Stat(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				id, err := newClientID()
				if err != nil {
					return fmt.Errorf("generate client id: %w", err)
				}
				if name == "" {
					name = os.Getenv("USER")
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("create config directory: %w", err)
				}
				body := fmt.Sprintf(configTemplate, id, name, email, sharedRoot)
				if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				fmt.Fprintf(out, "wrote %s\n", path)
			case err != nil:
				return fmt.Errorf("stat config: %w", err)
			}

			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			log := logrus.WithField("client", cfg.Client)
			if _, err := cfg.openLocal(ctx, log); err != nil {
				return err
			}
			for _, store := range cfg.sharedNames() {
				if _, err := cfg.openShared(ctx, store, log); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "client %s ready on branch %s\n", boldC.Sprint(cfg.Client), cfg.Branch)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "author name for a new configuration (default $USER)")
	cmd.Flags().StringVar(&email, "email", "", "author email for a new configuration")
	cmd.Flags().StringVar(&sharedRoot, "shared", "../shared", "disk root of the shared store for a new configuration")
	return cmd
}
