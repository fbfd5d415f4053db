// Package worktree projects git trees as mutable in-memory filesystems.
//
// All nodes of a filesystem live in one arena and are addressed by index.
// A node is either existing (known only by hash) or expanded (children or
// file bytes loaded). Expansion happens on first touch and replaces the node
// in place. An FS is a view holding an arena and a root index; Chroot returns
// another view over the same arena, so writes through either are visible in
// both.
//
// Worktrees are not safe for concurrent use.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/storage"
)

// ObjectStore is the subset of a repository a worktree reads from and saves
// into. *repo.Repo implements it.
type ObjectStore interface {
	LoadTree(ctx context.Context, h object.Hash) (*object.Tree, error)
	LoadBlob(ctx context.Context, h object.Hash) (*object.Blob, error)
	SaveObject(ctx context.Context, obj object.Object) (object.Hash, error)
}

// ErrIO classifies failures to load data a tree says should exist.
var ErrIO = errors.New("i/o error")

// ErrGitlink is returned when reading or descending into a submodule entry.
var ErrGitlink = errors.New("entry is a gitlink")

// MissingObjectsError reports that a tree or blob referenced by the worktree
// is absent from the store. It matches ErrIO and object.ErrMissingObject but
// never storage.ErrNotFound: the path exists, its content does not.
type MissingObjectsError struct {
	Path string
	Hash object.Hash
	Err  error
}

func (e *MissingObjectsError) Error() string {
	return fmt.Sprintf("worktree %q: %s: object %s unavailable: %v", e.Path, ErrIO, e.Hash, e.Err)
}

func (e *MissingObjectsError) Unwrap() error { return e.Err }

func (e *MissingObjectsError) Is(target error) bool { return target == ErrIO }

const noParent = -1

type node struct {
	parent int
	name   string
	mode   object.Mode

	// hash is the stored object this node matches. It is cleared when the
	// node or anything beneath it changes, and restamped by Save.
	hash     object.Hash
	expanded bool
	children map[string]int
	data     []byte
}

func (n *node) isDir() bool { return n.mode.IsDir() }

type arena struct {
	store   ObjectStore
	nodes   []node
	missing bool
}

func (a *arena) add(n node) int {
	a.nodes = append(a.nodes, n)
	return len(a.nodes) - 1
}

// touch clears the stored hash of idx and all of its ancestors.
func (a *arena) touch(idx int) {
	for idx != noParent {
		a.nodes[idx].hash = ""
		idx = a.nodes[idx].parent
	}
}

func (a *arena) expand(ctx context.Context, idx int, path string) error {
	n := &a.nodes[idx]
	if n.expanded {
		return nil
	}
	switch {
	case n.mode.IsSubmodule():
		return storage.NewPathError("expand", path, ErrGitlink)

	case n.isDir():
		tr, err := a.store.LoadTree(ctx, n.hash)
		if err != nil {
			return a.loadFailed(path, n.hash, err)
		}
		children := make(map[string]int, len(tr.Entries))
		for _, e := range tr.Entries {
			children[e.Name] = a.add(node{parent: idx, name: e.Name, mode: e.Mode, hash: e.Hash})
		}
		// a.add may have grown the slice; n is stale.
		a.nodes[idx].children = children
		a.nodes[idx].expanded = true

	default:
		b, err := a.store.LoadBlob(ctx, n.hash)
		if err != nil {
			return a.loadFailed(path, n.hash, err)
		}
		n.data = b.Data
		n.expanded = true
	}
	return nil
}

func (a *arena) loadFailed(path string, h object.Hash, err error) error {
	if _, ok := object.IsMissing(err); ok {
		a.missing = true
		return &MissingObjectsError{Path: path, Hash: h, Err: err}
	}
	return fmt.Errorf("worktree %q: load %s: %w", path, h, err)
}

// FS is a view of a worktree rooted at one of its directories.
type FS struct {
	a    *arena
	root int
}

// New returns an empty worktree that saves into store.
func New(store ObjectStore) *FS {
	a := &arena{store: store}
	root := a.add(node{parent: noParent, mode: object.ModeDir, expanded: true, children: map[string]int{}})
	return &FS{a: a, root: root}
}

// Open returns a worktree over the stored tree h. Nothing is loaded until
// first use.
func Open(store ObjectStore, h object.Hash) *FS {
	a := &arena{store: store}
	root := a.add(node{parent: noParent, mode: object.ModeDir, hash: h})
	return &FS{a: a, root: root}
}

// IsMissingObjects reports whether any operation on this worktree, through
// any view, has failed because an object was absent from the store.
func (fs *FS) IsMissingObjects() bool { return fs.a.missing }

// Entry describes one node of a worktree.
type Entry struct {
	Name string
	Mode object.Mode
	// Hash is the stored object the entry currently matches, or "" if it
	// has been modified since it was loaded or saved.
	Hash object.Hash
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Mode.IsDir() }

func (fs *FS) entry(idx int) Entry {
	n := &fs.a.nodes[idx]
	return Entry{Name: n.name, Mode: n.mode, Hash: n.hash}
}

func splitPath(op, path string) ([]string, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, storage.NewPathError(op, path, err)
	}
	if path == "" {
		return nil, nil
	}
	return strings.Split(path, "/"), nil
}

// lookup resolves path to a node index.
func (fs *FS) lookup(ctx context.Context, op, path string) (int, error) {
	parts, err := splitPath(op, path)
	if err != nil {
		return 0, err
	}
	cur := fs.root
	for i, part := range parts {
		prefix := strings.Join(parts[:i], "/")
		if !fs.a.nodes[cur].isDir() {
			return 0, storage.NewPathError(op, prefix, storage.ErrNotDirectory)
		}
		if err := fs.a.expand(ctx, cur, prefix); err != nil {
			return 0, err
		}
		child, ok := fs.a.nodes[cur].children[part]
		if !ok {
			return 0, storage.NewPathError(op, path, storage.ErrNotFound)
		}
		cur = child
	}
	return cur, nil
}

// mkdirs resolves the directory parts, creating any that are absent.
func (fs *FS) mkdirs(ctx context.Context, op string, parts []string) (int, error) {
	cur := fs.root
	for i, part := range parts {
		prefix := strings.Join(parts[:i], "/")
		if err := fs.a.expand(ctx, cur, prefix); err != nil {
			return 0, err
		}
		child, ok := fs.a.nodes[cur].children[part]
		if !ok {
			child = fs.a.add(node{parent: cur, name: part, mode: object.ModeDir, expanded: true, children: map[string]int{}})
			fs.a.nodes[cur].children[part] = child
			fs.a.touch(cur)
		} else if !fs.a.nodes[child].isDir() {
			return 0, storage.NewPathError(op, strings.Join(parts[:i+1], "/"), storage.ErrNotDirectory)
		}
		cur = child
	}
	if err := fs.a.expand(ctx, cur, strings.Join(parts, "/")); err != nil {
		return 0, err
	}
	return cur, nil
}

func (fs *FS) sortedChildren(idx int) []int {
	children := fs.a.nodes[idx].children
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]int, len(names))
	for i, name := range names {
		out[i] = children[name]
	}
	return out
}
