// Package reconcile folds the branch heads published by every client into a
// single history.
//
// Each client owns refs/heads/<branch> locally and sees the others as
// refs/remotes/<client>/<branch>. Reconcile finds the heads that are not
// ancestors of one another, merges them pairwise in a deterministic order
// and points the caller's own head at the result. Published history is
// never rewritten: every merge is a new commit whose parents are the
// previous state and the head being folded in.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/repo"
	"github.com/odvcencio/braid/pkg/worktree"
)

var ErrNoCommittedState = errors.New("branch has no committed state")

// Side identifies an input of a merge.
type Side string

const (
	SideA    Side = "a"
	SideB    Side = "b"
	SideBase Side = "base"
)

// MissingObjectsError reports that a merge could not complete because one
// side's tree was not fully available.
type MissingObjectsError struct {
	Side Side
	Err  error
}

func (e *MissingObjectsError) Error() string {
	return fmt.Sprintf("missing objects on side %s: %v", e.Side, e.Err)
}

func (e *MissingObjectsError) Unwrap() error { return e.Err }

// MergeInput is one side of a merge: a resolved commit and a worktree over
// its tree.
type MergeInput struct {
	repo.HeadInfo
	Tree *worktree.FS
}

// MergeFunc merges a and b. base is nil when no common ancestor is available.
// The returned worktree must save into the repository being reconciled; it
// may be a or b modified in place.
type MergeFunc func(ctx context.Context, a, b MergeInput, base *MergeInput) (*worktree.FS, error)

// Options configures Reconcile.
type Options struct {
	// Self is this client's id. Its head is refs/heads/<Branch>.
	Self   string
	Branch string
	Merge  MergeFunc
	// Person authors merge commits and reflog entries.
	Person object.Person
	// Signer, if set, signs merge commits.
	Signer repo.CommitSigner
	Log    *logrus.Entry
}

// Head is a resolved branch head of one client.
type Head struct {
	Client string
	Ref    string
	repo.HeadInfo
}

// Result describes a completed reconciliation.
type Result struct {
	// Hash is the commit the caller's head now points to.
	Hash object.Hash
	// Leaves are the heads that were folded, in merge order.
	Leaves []Head
	// Merges counts merge commits created.
	Merges int
	// Updated is false when the caller's head already pointed at Hash.
	Updated bool
}

// Reconcile resolves every client's head for opts.Branch, folds them into
// one commit and advances the caller's own head to it.
func Reconcile(ctx context.Context, r *repo.Repo, opts Options) (Result, error) {
	if opts.Merge == nil {
		return Result{}, fmt.Errorf("reconcile: merge function is required")
	}
	log := opts.Log
	if log == nil {
		log = r.Logger()
	}
	log = log.WithField("branch", opts.Branch)
	selfRef := repo.HeadRef(opts.Branch)

	heads, err := resolveHeads(ctx, r, opts, log)
	if err != nil {
		return Result{}, err
	}
	hashes := make([]object.Hash, 0, len(heads))
	byHash := make(map[object.Hash]Head, len(heads))
	for _, h := range heads {
		hashes = append(hashes, h.Hash)
		if _, ok := byHash[h.Hash]; !ok {
			byHash[h.Hash] = h
		}
	}

	mb, err := r.MergeBase(ctx, hashes)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: %w", err)
	}
	if len(mb.Leaves) == 0 {
		return Result{}, fmt.Errorf("reconcile %s: %w", opts.Branch, ErrNoCommittedState)
	}
	leaves := make([]Head, len(mb.Leaves))
	for i, h := range mb.Leaves {
		leaves[i] = byHash[h]
	}
	sortHeads(leaves)
	res := Result{Leaves: leaves}

	state := leaves[0].HeadInfo
	for _, leaf := range leaves[1:] {
		merged, err := mergePair(ctx, r, opts, state, leaf)
		if err != nil {
			return res, err
		}
		log.WithField("into", state.Hash.Short()).WithField("leaf", leaf.Hash.Short()).WithField("client", leaf.Client).Info("merged head")
		state = merged
		res.Merges++
	}
	res.Hash = state.Hash

	cur, err := r.GetRef(ctx, selfRef)
	if err != nil {
		return res, fmt.Errorf("reconcile: %w", err)
	}
	if cur == state.Hash {
		return res, nil
	}
	var desc string
	if res.Merges == 0 {
		desc = fmt.Sprintf("reconcile: fast-forward to %s %s", state.Hash.Short(), state.Commit.Summary())
	} else {
		desc = fmt.Sprintf("reconcile: merged %d heads into %s", len(leaves), state.Hash.Short())
	}
	if err := r.UpdateRef(ctx, selfRef, state.Hash, opts.Person, strings.TrimSpace(desc)); err != nil {
		return res, fmt.Errorf("reconcile: %w", err)
	}
	res.Updated = true
	return res, nil
}

// resolveHeads resolves the caller's head and every other client's
// published head. Heads that resolve to nothing are logged and skipped.
func resolveHeads(ctx context.Context, r *repo.Repo, opts Options, log *logrus.Entry) ([]Head, error) {
	type candidate struct{ client, ref string }
	cands := []candidate{{client: opts.Self, ref: repo.HeadRef(opts.Branch)}}

	refs, err := r.ListRefs(ctx, "refs/remotes")
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	for _, ref := range refs {
		client, branch, ok := repo.SplitRemoteRef(ref)
		if !ok || branch != opts.Branch || client == opts.Self {
			continue
		}
		cands = append(cands, candidate{client: client, ref: ref})
	}

	var heads []Head
	for _, c := range cands {
		info, err := r.ResolveHead(ctx, c.ref)
		if errors.Is(err, repo.ErrNoHead) {
			log.WithField("ref", c.ref).WithError(err).Warn("skipping unresolvable head")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		heads = append(heads, Head{Client: c.client, Ref: c.ref, HeadInfo: info})
	}
	return heads, nil
}

// sortHeads orders heads by author time, author name, message and hash.
func sortHeads(heads []Head) {
	sort.SliceStable(heads, func(i, j int) bool {
		return headLess(heads[i].HeadInfo, heads[j].HeadInfo)
	})
}

func headLess(a, b repo.HeadInfo) bool {
	ca, cb := a.Commit, b.Commit
	if ca.Author.When.Seconds != cb.Author.When.Seconds {
		return ca.Author.When.Seconds < cb.Author.When.Seconds
	}
	if ca.Author.Name != cb.Author.Name {
		return ca.Author.Name < cb.Author.Name
	}
	if ca.Message != cb.Message {
		return ca.Message < cb.Message
	}
	return a.Hash < b.Hash
}

// mergePair merges leaf into state and commits the result with parents
// [state, leaf].
func mergePair(ctx context.Context, r *repo.Repo, opts Options, state repo.HeadInfo, leaf Head) (repo.HeadInfo, error) {
	a := MergeInput{HeadInfo: state, Tree: worktree.Open(r, state.Commit.Tree)}
	b := MergeInput{HeadInfo: leaf.HeadInfo, Tree: worktree.Open(r, leaf.Commit.Tree)}
	base, err := mergeBaseInput(ctx, r, state.Hash, leaf.Hash)
	if err != nil {
		return repo.HeadInfo{}, err
	}

	merged, err := opts.Merge(ctx, a, b, base)
	if err != nil {
		return repo.HeadInfo{}, fmt.Errorf("reconcile: merge %s into %s: %w", leaf.Hash.Short(), state.Hash.Short(), classifyMergeError(err, a, b, base))
	}
	tree, err := merged.Save(ctx)
	if err != nil {
		return repo.HeadInfo{}, fmt.Errorf("reconcile: save merge of %s into %s: %w", leaf.Hash.Short(), state.Hash.Short(), err)
	}

	c := &object.Commit{
		Tree:      tree,
		Parents:   []object.Hash{state.Hash, leaf.Hash},
		Author:    opts.Person,
		Committer: opts.Person,
		Message:   fmt.Sprintf("Reconcile %s from %s\n", leaf.Hash.Short(), leaf.Client),
	}
	h, err := r.WriteCommit(ctx, c, opts.Signer)
	if err != nil {
		return repo.HeadInfo{}, fmt.Errorf("reconcile: %w", err)
	}
	return repo.HeadInfo{Hash: h, Commit: c}, nil
}

// mergeBaseInput picks the merge base of a and b, ordered the same way as
// leaves, and opens it only if its commit and root tree are present.
func mergeBaseInput(ctx context.Context, r *repo.Repo, a, b object.Hash) (*MergeInput, error) {
	mb, err := r.MergeBase(ctx, []object.Hash{a, b})
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	var best []repo.HeadInfo
	for _, h := range mb.Best {
		c, err := r.LoadCommit(ctx, h)
		if _, missing := object.IsMissing(err); missing {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		best = append(best, repo.HeadInfo{Hash: h, Commit: c})
	}
	if len(best) == 0 {
		return nil, nil
	}
	sort.SliceStable(best, func(i, j int) bool { return headLess(best[i], best[j]) })

	base := best[0]
	ok, err := r.HasObject(ctx, base.Commit.Tree)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &MergeInput{HeadInfo: base, Tree: worktree.Open(r, base.Commit.Tree)}, nil
}

// classifyMergeError attributes an unclassified missing-objects failure to
// the side whose worktree hit it.
func classifyMergeError(err error, a, b MergeInput, base *MergeInput) error {
	var moe *MissingObjectsError
	if errors.As(err, &moe) {
		return err
	}
	var wmoe *worktree.MissingObjectsError
	if !errors.As(err, &wmoe) {
		return err
	}
	switch {
	case a.Tree.IsMissingObjects():
		return &MissingObjectsError{Side: SideA, Err: err}
	case b.Tree.IsMissingObjects():
		return &MissingObjectsError{Side: SideB, Err: err}
	case base != nil && base.Tree.IsMissingObjects():
		return &MissingObjectsError{Side: SideBase, Err: err}
	}
	return err
}
