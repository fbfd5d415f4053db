package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/braid/pkg/object"
)

var ErrNoHead = errors.New("no resolvable head")

// HeadInfo is a commit hash together with the decoded commit.
type HeadInfo struct {
	Hash   object.Hash
	Commit *object.Commit
}

// RefHistory returns the values ref has held, newest first and without
// duplicates: its current value followed by the reflog's new values in
// reverse order. A reflog entry written ahead of a failed ref update is
// included.
func (r *Repo) RefHistory(ctx context.Context, ref string) ([]object.Hash, error) {
	cur, err := r.GetRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	entries, err := r.GetReflog(ctx, ref)
	if err != nil {
		return nil, err
	}

	seen := make(map[object.Hash]struct{})
	var out []object.Hash
	add := func(h object.Hash) {
		if h == "" {
			return
		}
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	add(cur)
	for i := len(entries) - 1; i >= 0; i-- {
		add(entries[i].New)
	}
	return out, nil
}

// ResolveHead loads the commit ref points to. When that commit is missing it
// falls back through the reflog, newest first, to the first commit that is
// present. It fails with ErrNoHead when nothing resolves; if the failure was
// due to missing commits the error also matches object.ErrMissingObject.
func (r *Repo) ResolveHead(ctx context.Context, ref string) (HeadInfo, error) {
	candidates, err := r.RefHistory(ctx, ref)
	if err != nil {
		return HeadInfo{}, fmt.Errorf("resolve head %q: %w", ref, err)
	}

	var missing error
	for i, h := range candidates {
		c, err := r.LoadCommit(ctx, h)
		if _, ok := object.IsMissing(err); ok {
			if missing == nil {
				missing = err
			}
			r.log.WithField("ref", ref).WithField("commit", h.Short()).Debug("head candidate missing, trying older reflog entry")
			continue
		}
		if err != nil {
			return HeadInfo{}, fmt.Errorf("resolve head %q: %w", ref, err)
		}
		if i > 0 {
			r.log.WithField("ref", ref).WithField("commit", h.Short()).Info("resolved head from reflog")
		}
		return HeadInfo{Hash: h, Commit: c}, nil
	}
	if missing != nil {
		return HeadInfo{}, fmt.Errorf("resolve head %q: %w", ref, errors.Join(ErrNoHead, missing))
	}
	return HeadInfo{}, fmt.Errorf("resolve head %q: %w", ref, ErrNoHead)
}
