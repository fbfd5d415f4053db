package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/braid/pkg/remote"
	"github.com/odvcencio/braid/pkg/repo"
)

func newFetchCmd() *cobra.Command {
	var (
		from     string
		all      bool
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Copy other clients' published branches from shared stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			if strategy != "" {
				c.cfg.Strategy = strategy
			}
			stores, err := c.selectStores(from, all)
			if err != nil {
				return err
			}
			results, err := c.fetch(cmd.Context(), stores)
			printRefResults(cmd.OutOrStdout(), results)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "shared store to fetch from (default: the only one configured)")
	cmd.Flags().BoolVar(&all, "all", false, "fetch from every shared store")
	cmd.Flags().StringVar(&strategy, "strategy", "", "sync strategy: fast, deepen, verify, repair or shallow-top")
	return cmd
}

// selectStores picks the shared stores a command talks to.
func (c *client) selectStores(name string, all bool) ([]string, error) {
	names := c.cfg.sharedNames()
	switch {
	case all:
		if len(names) == 0 {
			return nil, fmt.Errorf("no shared stores configured")
		}
		return names, nil
	case name != "":
		if _, ok := c.cfg.Shared[name]; !ok {
			return nil, fmt.Errorf("no shared store named %q (have: %s)", name, strings.Join(names, ", "))
		}
		return []string{name}, nil
	case len(names) == 1:
		return names, nil
	case len(names) == 0:
		return nil, fmt.Errorf("no shared stores configured")
	}
	return nil, fmt.Errorf("several shared stores configured (%s); pick one or pass --all", strings.Join(names, ", "))
}

// fetch copies objects from every store in parallel, each worker with its
// own pair of repositories, then updates local refs one store at a time.
// The second pass finds the objects already present and only moves refs.
func (c *client) fetch(ctx context.Context, stores []string) ([]remote.RefResult, error) {
	opts, err := c.cfg.clientOptions(c.log)
	if err != nil {
		return nil, err
	}

	if len(stores) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.Jobs)
		for _, name := range stores {
			name := name // per-iteration copy; module targets go 1.21 loop semantics
			g.Go(func() error {
				if err := c.prefetch(gctx, name, opts); err != nil {
					c.log.WithField("store", name).WithError(err).Warn("prefetch failed")
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	var (
		results []remote.RefResult
		errs    []error
	)
	for _, name := range stores {
		shared, err := c.cfg.openShared(ctx, name, c.log)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res, err := remote.Fetch(ctx, c.local, shared, opts)
		results = append(results, res...)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch from %s: %w", name, err))
		}
	}
	return results, errors.Join(errs...)
}

func (c *client) prefetch(ctx context.Context, name string, opts remote.ClientOptions) error {
	log := c.log.WithField("store", name)
	local, err := c.cfg.openLocal(ctx, log)
	if err != nil {
		return err
	}
	shared, err := c.cfg.openShared(ctx, name, log)
	if err != nil {
		return err
	}
	refs, err := shared.ListRefs(ctx, "refs/remotes")
	if err != nil {
		return err
	}
	for _, ref := range refs {
		client, branch, ok := repo.SplitRemoteRef(ref)
		if !ok || branch != c.cfg.Branch || client == c.cfg.Client {
			continue
		}
		h, err := shared.GetRef(ctx, ref)
		if err != nil || h == "" {
			continue
		}
		stats, err := remote.SyncCommit(ctx, shared, local, h, opts.Strategy, remote.WithLogger(log))
		if err != nil {
			log.WithField("ref", ref).WithError(err).Debug("prefetch of ref failed")
			continue
		}
		log.WithField("ref", ref).WithField("commits", stats.CommitsWritten).Debug("prefetched")
	}
	return nil
}

func printRefResults(out io.Writer, results []remote.RefResult) {
	for _, r := range results {
		status := faintC.Sprint("up to date")
		if r.Updated {
			status = successC.Sprintf("updated (%d commits, %d trees, %d blobs)", r.Stats.CommitsWritten, r.Stats.TreesWritten, r.Stats.BlobsWritten)
		}
		if r.Recovered {
			status += warningC.Sprint(" from reflog")
		}
		if len(r.Stats.Truncated) > 0 {
			status += warningC.Sprintf(" shallow (%d truncated)", len(r.Stats.Truncated))
		}
		fmt.Fprintf(out, "%s %s %s\n", hashC.Sprint(r.Hash.Short()), r.DstRef, status)
	}
}
