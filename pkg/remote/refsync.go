package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/repo"
)

// Direction names the kind of ref sync in reflog descriptions.
type Direction string

const (
	DirectionFetch Direction = "fetch"
	DirectionPush  Direction = "push"
)

var ErrRefNotFound = errors.New("ref not found")

// RefOptions configures SyncRef.
type RefOptions struct {
	// Strategy defaults to StrategyFast.
	Strategy Strategy
	// ReflogRecovery retries older values of the source ref, newest first,
	// when the current value cannot be synced because objects are missing.
	ReflogRecovery bool
	Direction      Direction
	// Person is recorded in the destination reflog.
	Person object.Person
	Log    *logrus.Entry
}

// RefResult describes one synced ref.
type RefResult struct {
	SrcRef string
	DstRef string
	// Hash is the commit the destination ref now points to.
	Hash object.Hash
	// Updated is false when the destination already pointed at Hash.
	Updated bool
	// Recovered is true when Hash came from the source reflog rather than
	// the ref's current value.
	Recovered bool
	Stats     Stats
}

// SyncRef syncs the commit srcRef points to from src into dst and points
// dstRef at it. The destination ref and its reflog are only touched after
// the sync succeeds, and only if the value changes.
func SyncRef(ctx context.Context, src, dst *repo.Repo, srcRef, dstRef string, opts RefOptions) (RefResult, error) {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("src", srcRef).WithField("dst", dstRef)
	if opts.Direction == "" {
		opts.Direction = DirectionFetch
	}
	if opts.Strategy == (Strategy{}) {
		opts.Strategy = StrategyFast
	}
	res := RefResult{SrcRef: srcRef, DstRef: dstRef}

	var candidates []object.Hash
	if opts.ReflogRecovery {
		hist, err := src.RefHistory(ctx, srcRef)
		if err != nil {
			return res, fmt.Errorf("%s %s: %w", opts.Direction, srcRef, err)
		}
		candidates = hist
	} else {
		cur, err := src.GetRef(ctx, srcRef)
		if err != nil {
			return res, fmt.Errorf("%s %s: %w", opts.Direction, srcRef, err)
		}
		if cur != "" {
			candidates = []object.Hash{cur}
		}
	}
	if len(candidates) == 0 {
		return res, fmt.Errorf("%s %s: %w", opts.Direction, srcRef, ErrRefNotFound)
	}

	var lastErr error
	synced := object.Hash("")
	for i, h := range candidates {
		stats, err := SyncCommit(ctx, src, dst, h, opts.Strategy, WithLogger(log))
		res.Stats.add(stats)
		if err == nil {
			synced = h
			res.Recovered = i > 0
			break
		}
		if _, missing := object.IsMissing(err); !missing || !opts.ReflogRecovery {
			return res, fmt.Errorf("%s %s: %w", opts.Direction, srcRef, err)
		}
		log.WithField("commit", h.Short()).WithError(err).Warn("commit incomplete in source, trying older reflog entry")
		lastErr = err
	}
	if synced == "" {
		return res, fmt.Errorf("%s %s: no complete commit in ref history: %w", opts.Direction, srcRef, lastErr)
	}
	res.Hash = synced

	prev, err := dst.GetRef(ctx, dstRef)
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", opts.Direction, dstRef, err)
	}
	if prev == synced {
		log.WithField("commit", synced.Short()).Debug("destination ref already up to date")
		return res, nil
	}

	c, err := dst.LoadCommit(ctx, synced)
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", opts.Direction, dstRef, err)
	}
	desc := fmt.Sprintf("%s: %s %s", opts.Direction, synced.Short(), c.Summary())
	if err := dst.UpdateRef(ctx, dstRef, synced, opts.Person, strings.TrimSpace(desc)); err != nil {
		return res, err
	}
	res.Updated = true
	log.WithField("old", prev.Short()).WithField("new", synced.Short()).Info("updated ref")
	return res, nil
}

// ClientOptions configures Fetch and Push.
type ClientOptions struct {
	// Self is this client's id.
	Self   string
	Branch string
	RefOptions
}

// Fetch copies every other client's published branch from shared into
// local, as refs/remotes/<client>/<branch>. Refs are synced independently:
// a failure on one does not stop the others, and all failures are returned
// joined.
func Fetch(ctx context.Context, local, shared *repo.Repo, opts ClientOptions) ([]RefResult, error) {
	opts.Direction = DirectionFetch
	refs, err := shared.ListRefs(ctx, "refs/remotes")
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	var (
		results []RefResult
		errs    []error
	)
	for _, ref := range refs {
		client, branch, ok := repo.SplitRemoteRef(ref)
		if !ok || branch != opts.Branch || client == opts.Self {
			continue
		}
		res, err := SyncRef(ctx, shared, local, ref, ref, opts.RefOptions)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Push publishes local refs/heads/<branch> to shared as
// refs/remotes/<self>/<branch>.
func Push(ctx context.Context, local, shared *repo.Repo, opts ClientOptions) (RefResult, error) {
	if opts.Self == "" {
		return RefResult{}, fmt.Errorf("push: client id is required")
	}
	opts.Direction = DirectionPush
	return SyncRef(ctx, local, shared, repo.HeadRef(opts.Branch), repo.RemoteRef(opts.Self, opts.Branch), opts.RefOptions)
}
