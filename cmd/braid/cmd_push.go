package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/braid/pkg/remote"
)

func newPushCmd() *cobra.Command {
	var (
		to       string
		all      bool
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Publish the client's branch to shared stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			if strategy != "" {
				c.cfg.Strategy = strategy
			}
			stores, err := c.selectStores(to, all)
			if err != nil {
				return err
			}
			results, err := c.push(cmd.Context(), stores)
			printRefResults(cmd.OutOrStdout(), results)
			return err
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "shared store to push to (default: the only one configured)")
	cmd.Flags().BoolVar(&all, "all", false, "push to every shared store")
	cmd.Flags().StringVar(&strategy, "strategy", "", "sync strategy: fast, deepen, verify, repair or shallow-top")
	return cmd
}

// push publishes to every store in parallel. Each worker opens its own
// local repository; the workers only read from it.
func (c *client) push(ctx context.Context, stores []string) ([]remote.RefResult, error) {
	opts, err := c.cfg.clientOptions(c.log)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results []remote.RefResult
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Jobs)
	for _, name := range stores {
		name := name // per-iteration copy; module targets go 1.21 loop semantics
		g.Go(func() error {
			res, err := c.pushTo(gctx, name, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("push to %s: %w", name, err))
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

func (c *client) pushTo(ctx context.Context, name string, opts remote.ClientOptions) (remote.RefResult, error) {
	log := c.log.WithField("store", name)
	local, err := c.cfg.openLocal(ctx, log)
	if err != nil {
		return remote.RefResult{}, err
	}
	shared, err := c.cfg.openShared(ctx, name, log)
	if err != nil {
		return remote.RefResult{}, err
	}
	opts.Log = log
	return remote.Push(ctx, local, shared, opts)
}
