// Package diff compares the files of two trees.
package diff

import (
	"context"
	"fmt"

	"github.com/odvcencio/braid/pkg/worktree"
)

// ChangeType classifies what happened to a file between two trees.
type ChangeType int

const (
	Added    ChangeType = iota // File exists only in the after tree.
	Removed                    // File exists only in the before tree.
	Modified                   // File exists in both but its content or mode changed.
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "A"
	case Removed:
		return "D"
	case Modified:
		return "M"
	}
	return "?"
}

// Change records a single file-level change.
type Change struct {
	Type   ChangeType
	Path   string
	Before *worktree.Entry // nil for Added.
	After  *worktree.Entry // nil for Removed.
}

// Trees lists the files that differ between before and after, in path
// order. Either tree may be nil, standing for an empty tree. Subtrees whose
// hashes agree are not loaded.
func Trees(ctx context.Context, before, after *worktree.FS) ([]Change, error) {
	for _, fs := range []*worktree.FS{before, after} {
		if fs == nil {
			continue
		}
		if _, err := fs.Save(ctx); err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	}

	var changes []Change
	err := worktree.Walk(ctx, []*worktree.FS{before, after}, func(path string, es []*worktree.Entry) error {
		b, a := es[0], es[1]
		if b != nil && a != nil && b.Mode == a.Mode && b.Hash == a.Hash {
			return worktree.SkipDir
		}
		if b != nil && b.IsDir() {
			b = nil
		}
		if a != nil && a.IsDir() {
			a = nil
		}
		switch {
		case b == nil && a == nil:
		case b == nil:
			changes = append(changes, Change{Type: Added, Path: path, After: a})
		case a == nil:
			changes = append(changes, Change{Type: Removed, Path: path, Before: b})
		default:
			changes = append(changes, Change{Type: Modified, Path: path, Before: b, After: a})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return changes, nil
}
