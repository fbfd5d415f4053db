// Package treemerge is the default merge function for reconciliation.
//
// It walks the base and both sides together. A path changed on one side
// takes that side; a path changed identically on both is kept; a path
// deleted on one side and untouched on the other is deleted; a path deleted
// on one side and modified on the other keeps the modification. Text files
// modified on both sides are merged line by line, leaving conflict markers
// where the edits overlap. Everything else that disagrees keeps side a and
// is reported as a conflict.
package treemerge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/braid/pkg/diff3"
	"github.com/odvcencio/braid/pkg/reconcile"
	"github.com/odvcencio/braid/pkg/worktree"
)

// Options configures a Merger.
type Options struct {
	// ConcatInsertions resolves a conflict in which both sides only added
	// lines at the same place by keeping a's lines followed by b's.
	ConcatInsertions bool
	// ShowBase includes the base text in conflict markers.
	ShowBase bool
	Log      *logrus.Entry
}

// Stats counts what merges did, summed over every call.
type Stats struct {
	Taken     int // paths taken from b
	Deleted   int // paths deleted from a
	Merged    int // files merged line by line
	Conflicts []string
}

// Merger merges worktrees. Its Merge method is a reconcile.MergeFunc.
type Merger struct {
	opts Options

	mu    sync.Mutex
	stats Stats
}

// New returns a Merger.
func New(opts Options) *Merger {
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Merger{opts: opts}
}

var _ reconcile.MergeFunc = Merge

// Merge merges with default options.
func Merge(ctx context.Context, a, b reconcile.MergeInput, base *reconcile.MergeInput) (*worktree.FS, error) {
	return New(Options{}).Merge(ctx, a, b, base)
}

// Stats returns the totals so far.
func (m *Merger) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Conflicts = append([]string(nil), s.Conflicts...)
	return s
}

// Merge applies b's changes relative to base onto a and returns a. A nil
// base means the sides share no history; every path they both hold with
// different content is then merged against an empty file.
func (m *Merger) Merge(ctx context.Context, a, b reconcile.MergeInput, base *reconcile.MergeInput) (*worktree.FS, error) {
	run := &merge{
		ctx:   ctx,
		opts:  m.opts,
		a:     a,
		b:     b,
		base:  base,
		log:   m.opts.Log.WithField("a", a.Hash.Short()).WithField("b", b.Hash.Short()),
		stats: &Stats{},
	}
	fss := []*worktree.FS{nil, a.Tree, b.Tree}
	// Stamp hashes on b and base so unchanged subtrees compare equal.
	if _, err := b.Tree.Save(ctx); err != nil {
		return nil, run.sideError(reconcile.SideB, err)
	}
	if base != nil {
		fss[0] = base.Tree
		if _, err := base.Tree.Save(ctx); err != nil {
			return nil, run.sideError(reconcile.SideBase, err)
		}
	}

	err := worktree.Walk(ctx, fss, run.visit)

	m.mu.Lock()
	m.stats.Taken += run.stats.Taken
	m.stats.Deleted += run.stats.Deleted
	m.stats.Merged += run.stats.Merged
	m.stats.Conflicts = append(m.stats.Conflicts, run.stats.Conflicts...)
	m.mu.Unlock()

	if err != nil {
		return nil, run.walkError(err)
	}
	if n := len(run.stats.Conflicts); n > 0 {
		run.log.WithField("conflicts", n).Warn("merge left conflicts")
	}
	return a.Tree, nil
}

type merge struct {
	ctx   context.Context
	opts  Options
	a, b  reconcile.MergeInput
	base  *reconcile.MergeInput
	log   *logrus.Entry
	stats *Stats
}

func sameEntry(x, y *worktree.Entry) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return x.Mode == y.Mode && x.Hash != "" && x.Hash == y.Hash
}

func isRegular(e *worktree.Entry) bool {
	return e != nil && !e.IsDir() && !e.Mode.IsSubmodule()
}

func (m *merge) visit(path string, es []*worktree.Entry) error {
	base, a, b := es[0], es[1], es[2]
	switch {
	case sameEntry(a, b), sameEntry(base, b):
		return worktree.SkipDir
	case sameEntry(base, a), a == nil:
		return m.take(path, a, b)
	case b == nil:
		return worktree.SkipDir
	case a.IsDir() && b.IsDir():
		return nil
	case isRegular(a) && isRegular(b):
		return m.mergeFile(path, base, a, b)
	}
	m.conflict(path, "a and b changed the entry's type differently")
	return worktree.SkipDir
}

// take replaces a's entry at path with b's, deleting it if b has none.
func (m *merge) take(path string, a, b *worktree.Entry) error {
	if b == nil {
		var err error
		if a.IsDir() {
			err = m.a.Tree.DeleteDirectory(m.ctx, path)
		} else {
			err = m.a.Tree.DeleteFile(m.ctx, path)
		}
		if err != nil {
			return m.sideError(reconcile.SideA, err)
		}
		m.stats.Deleted++
		m.log.WithField("path", path).Debug("deleted")
		return worktree.SkipDir
	}
	if err := m.a.Tree.Link(m.ctx, path, b.Mode, b.Hash); err != nil {
		return m.sideError(reconcile.SideA, err)
	}
	m.stats.Taken++
	m.log.WithField("path", path).Debug("took b")
	return worktree.SkipDir
}

func (m *merge) mergeFile(path string, base, a, b *worktree.Entry) error {
	ours, err := m.a.Tree.Read(m.ctx, path)
	if err != nil {
		return m.sideError(reconcile.SideA, err)
	}
	theirs, err := m.b.Tree.Read(m.ctx, path)
	if err != nil {
		return m.sideError(reconcile.SideB, err)
	}
	var orig []byte
	if isRegular(base) {
		if orig, err = m.base.Tree.Read(m.ctx, path); err != nil {
			return m.sideError(reconcile.SideBase, err)
		}
	}

	mode := a.Mode
	if base != nil && a.Mode == base.Mode {
		mode = b.Mode
	}

	var merged []byte
	clean := true
	if diff3.IsBinary(orig) || diff3.IsBinary(ours) || diff3.IsBinary(theirs) {
		switch {
		case bytes.Equal(ours, theirs), bytes.Equal(orig, theirs):
			merged = ours
		case bytes.Equal(orig, ours):
			merged = theirs
		default:
			merged, clean = ours, false
		}
	} else {
		merged, clean = m.mergeText(orig, ours, theirs)
	}

	if err := m.a.Tree.WriteMode(m.ctx, path, merged, mode); err != nil {
		return m.sideError(reconcile.SideA, err)
	}
	m.stats.Merged++
	if !clean {
		m.conflict(path, "overlapping edits")
	}
	return worktree.SkipDir
}

func (m *merge) mergeText(orig, ours, theirs []byte) ([]byte, bool) {
	labels := diff3.Labels{Ours: m.a.Hash.Short(), Theirs: m.b.Hash.Short()}
	if m.opts.ShowBase {
		labels.Base = "base"
		if m.base != nil {
			labels.Base = m.base.Hash.Short()
		}
	}
	res := diff3.MergeLabeled(orig, ours, theirs, labels)
	if !res.HasConflicts || !m.opts.ConcatInsertions {
		return res.Merged, !res.HasConflicts
	}

	var out bytes.Buffer
	clean := true
	for _, h := range res.Hunks {
		switch {
		case h.Type == diff3.HunkClean:
			out.Write(h.Merged)
		case len(bytes.TrimSpace(h.Base)) == 0:
			out.Write(h.Ours)
			if !bytes.Equal(bytes.TrimSpace(h.Ours), bytes.TrimSpace(h.Theirs)) {
				out.Write(h.Theirs)
			}
		default:
			out.Write(h.Merged)
			clean = false
		}
	}
	return out.Bytes(), clean
}

func (m *merge) conflict(path, reason string) {
	m.stats.Conflicts = append(m.stats.Conflicts, path)
	m.log.WithField("path", path).Info("conflict: " + reason)
}

// sideError attributes a missing-object failure to side.
func (m *merge) sideError(side reconcile.Side, err error) error {
	var moe *worktree.MissingObjectsError
	if errors.As(err, &moe) {
		return &reconcile.MissingObjectsError{Side: side, Err: err}
	}
	return fmt.Errorf("treemerge: %w", err)
}

// walkError classifies failures from expanding directories during the
// walk, which do not say which side they came from.
func (m *merge) walkError(err error) error {
	var done *reconcile.MissingObjectsError
	if errors.As(err, &done) {
		return err
	}
	switch {
	case m.a.Tree.IsMissingObjects():
		return m.sideError(reconcile.SideA, err)
	case m.b.Tree.IsMissingObjects():
		return m.sideError(reconcile.SideB, err)
	case m.base != nil && m.base.Tree.IsMissingObjects():
		return m.sideError(reconcile.SideBase, err)
	}
	return fmt.Errorf("treemerge: %w", err)
}
