package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/odvcencio/braid/pkg/object"
)

const (
	maxMergeBaseBFSSteps = 1_000_000
	maxMergeBaseBFSDepth = 1_000_000
)

// These vars allow tests to tighten safety limits without affecting
// production defaults.
var (
	mergeBaseBFSStepsLimit = maxMergeBaseBFSSteps
	mergeBaseBFSDepthLimit = maxMergeBaseBFSDepth
)

func mergeBaseTraversalLimits() (maxSteps int, maxDepth int) {
	maxSteps = normalizeMergeBaseTraversalLimit(mergeBaseBFSStepsLimit, maxMergeBaseBFSSteps)
	maxDepth = normalizeMergeBaseTraversalLimit(mergeBaseBFSDepthLimit, maxMergeBaseBFSDepth)
	return maxSteps, maxDepth
}

func normalizeMergeBaseTraversalLimit(limit, hardMax int) int {
	// Keep safety defaults as hard bounds; test hooks may only tighten.
	if limit <= 0 || limit > hardMax {
		return hardMax
	}
	return limit
}

func mergeBaseStepsLimitError(limit int) error {
	return fmt.Errorf("merge base: traversal exceeded maximum steps (%d)", limit)
}

func mergeBaseDepthLimitError(limit int) error {
	return fmt.Errorf("merge base: traversal exceeded maximum depth (%d)", limit)
}

// MergeBaseResult is the outcome of MergeBase.
type MergeBaseResult struct {
	// Leaves are the inputs that are not ancestors of any other input, in
	// input order.
	Leaves []object.Hash
	// Best holds every common ancestor found at the shallowest depth at which
	// one exists. Criss-cross histories yield more than one.
	Best []object.Hash
}

// MergeBaseError aggregates the failures that prevented MergeBase from
// finding any common ancestor.
type MergeBaseError struct {
	Inputs []object.Hash
	Errs   []error
}

func (e *MergeBaseError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("merge base of %d commits: no common ancestor found; traversal errors: %s", len(e.Inputs), strings.Join(msgs, "; "))
}

func (e *MergeBaseError) Unwrap() []error { return e.Errs }

// indexSet is a bitset of input indices.
type indexSet []uint64

func newIndexSet(n int) indexSet { return make(indexSet, (n+63)/64) }

func (s indexSet) has(i int) bool { return s[i/64]&(1<<(uint(i)%64)) != 0 }

func (s indexSet) add(i int) { s[i/64] |= 1 << (uint(i) % 64) }

func (s indexSet) count() int {
	n := 0
	for _, w := range s {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}

type mergeBaseHead struct {
	hash  object.Hash
	index int
}

// MergeBase runs a synchronized breadth-first search backwards from every
// input at once. Each input's head carries its index; a commit records the
// indices whose heads have reached it. The search stops at the first depth at
// which some commit has been reached by every head and returns all such
// commits. Missing commits stop the head that hit them; their errors are
// reported only if no common ancestor turns up.
func (r *Repo) MergeBase(ctx context.Context, hashes []object.Hash) (MergeBaseResult, error) {
	var inputs []object.Hash
	seenInput := make(map[object.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		if err := object.ValidateHash(h); err != nil {
			return MergeBaseResult{}, err
		}
		if _, dup := seenInput[h]; dup {
			continue
		}
		seenInput[h] = struct{}{}
		inputs = append(inputs, h)
	}
	n := len(inputs)
	if n == 0 {
		return MergeBaseResult{}, nil
	}

	maxSteps, maxDepth := mergeBaseTraversalLimits()
	visited := make(map[object.Hash]indexSet)
	mark := func(h object.Hash, i int) bool {
		set, ok := visited[h]
		if !ok {
			set = newIndexSet(n)
			visited[h] = set
		}
		if set.has(i) {
			return false
		}
		set.add(i)
		return true
	}

	frontier := make([]mergeBaseHead, 0, n)
	touched := make([]object.Hash, 0, n)
	for i, h := range inputs {
		mark(h, i)
		frontier = append(frontier, mergeBaseHead{hash: h, index: i})
		touched = append(touched, h)
	}

	var (
		best  []object.Hash
		errs  []error
		steps int
		depth int
	)
	for {
		seenTouched := make(map[object.Hash]struct{}, len(touched))
		for _, h := range touched {
			if _, dup := seenTouched[h]; dup {
				continue
			}
			seenTouched[h] = struct{}{}
			if visited[h].count() == n {
				best = append(best, h)
			}
		}
		if len(best) > 0 || len(frontier) == 0 {
			break
		}

		depth++
		if depth > maxDepth {
			return MergeBaseResult{}, mergeBaseDepthLimitError(maxDepth)
		}
		var next []mergeBaseHead
		touched = touched[:0]
		for _, head := range frontier {
			steps++
			if steps > maxSteps {
				return MergeBaseResult{}, mergeBaseStepsLimitError(maxSteps)
			}
			c, err := r.LoadCommit(ctx, head.hash)
			if err != nil {
				if _, ok := object.IsMissing(err); ok {
					errs = append(errs, err)
					continue
				}
				return MergeBaseResult{}, fmt.Errorf("merge base: %w", err)
			}
			for _, p := range c.Parents {
				if mark(p, head.index) {
					next = append(next, mergeBaseHead{hash: p, index: head.index})
					touched = append(touched, p)
				}
			}
		}
		frontier = next
	}

	if len(best) == 0 && len(errs) > 0 {
		return MergeBaseResult{}, &MergeBaseError{Inputs: inputs, Errs: errs}
	}

	var leaves []object.Hash
	for i, h := range inputs {
		set := visited[h]
		if set.count() != 1 || !set.has(i) {
			continue
		}
		// The search can stop before a descendant's head has reached h, when
		// the descendant has a shorter path to an older common ancestor.
		covered, err := r.reachedFromOther(ctx, inputs, i)
		if err != nil {
			return MergeBaseResult{}, err
		}
		if !covered {
			leaves = append(leaves, h)
		}
	}
	return MergeBaseResult{Leaves: leaves, Best: best}, nil
}

// reachedFromOther reports whether inputs[i] is an ancestor of any other
// input. Inputs whose own commit is missing reach nothing.
func (r *Repo) reachedFromOther(ctx context.Context, inputs []object.Hash, i int) (bool, error) {
	for j, other := range inputs {
		if j == i {
			continue
		}
		ok, err := r.IsAncestor(ctx, inputs[i], other)
		if _, missing := object.IsMissing(err); missing {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("merge base: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// IsAncestor reports whether ancestor is reachable from descendant by
// following parents. A commit is its own ancestor.
func (r *Repo) IsAncestor(ctx context.Context, ancestor, descendant object.Hash) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}

	maxSteps, maxDepth := mergeBaseTraversalLimits()
	type item struct {
		hash  object.Hash
		depth int
	}
	visited := map[object.Hash]struct{}{descendant: {}}
	queue := []item{{hash: descendant}}
	steps := 0

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		steps++
		if steps > maxSteps {
			return false, mergeBaseStepsLimitError(maxSteps)
		}
		if it.hash == ancestor {
			return true, nil
		}

		c, err := r.LoadCommit(ctx, it.hash)
		if err != nil {
			if _, ok := object.IsMissing(err); ok && it.hash != descendant {
				continue
			}
			return false, err
		}
		for _, p := range c.Parents {
			if _, seen := visited[p]; seen {
				continue
			}
			if it.depth+1 > maxDepth {
				return false, mergeBaseDepthLimitError(maxDepth)
			}
			visited[p] = struct{}{}
			queue = append(queue, item{hash: p, depth: it.depth + 1})
		}
	}
	return false, nil
}
