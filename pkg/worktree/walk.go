package worktree

import (
	"context"
	"errors"
	"sort"

	"github.com/odvcencio/braid/pkg/storage"
)

// SkipDir may be returned by a WalkFunc to skip the directory at the path it
// was called with.
var SkipDir = errors.New("skip this directory")

// WalkFunc is called for every path present in at least one walked
// filesystem. entries[i] is nil when the path is absent from the i'th
// filesystem.
type WalkFunc func(path string, entries []*Entry) error

// Walk traverses fss in parallel, visiting the union of their paths in
// sorted order, parents before children. A nil FS is treated as empty.
// Directories are only loaded when the walk descends into them, so a WalkFunc
// that returns SkipDir for directories whose hashes agree never expands them.
func Walk(ctx context.Context, fss []*FS, fn WalkFunc) error {
	dirs := make([]int, len(fss))
	for i, fs := range fss {
		dirs[i] = noParent
		if fs != nil {
			dirs[i] = fs.root
		}
	}
	return walkDir(ctx, fss, dirs, "", fn)
}

func walkDir(ctx context.Context, fss []*FS, dirs []int, prefix string, fn WalkFunc) error {
	seen := make(map[string]struct{})
	for i, fs := range fss {
		if dirs[i] == noParent {
			continue
		}
		if err := fs.a.expand(ctx, dirs[i], prefix); err != nil {
			return err
		}
		for name := range fs.a.nodes[dirs[i]].children {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := storage.Join(prefix, name)
		entries := make([]*Entry, len(fss))
		sub := make([]int, len(fss))
		descend := false
		for i, fs := range fss {
			sub[i] = noParent
			if dirs[i] == noParent {
				continue
			}
			c, ok := fs.a.nodes[dirs[i]].children[name]
			if !ok {
				continue
			}
			e := fs.entry(c)
			entries[i] = &e
			if e.IsDir() {
				sub[i] = c
				descend = true
			}
		}

		err := fn(path, entries)
		if errors.Is(err, SkipDir) {
			continue
		}
		if err != nil {
			return err
		}
		if descend {
			if err := walkDir(ctx, fss, sub, path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
