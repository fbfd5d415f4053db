package worktree

import (
	"context"
	"fmt"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/storage"
)

// Save writes every modified blob and tree beneath the view's root, children
// before parents, and returns the root tree hash. Unmodified subtrees are not
// rewritten.
func (fs *FS) Save(ctx context.Context) (object.Hash, error) {
	return fs.save(ctx, fs.root, "")
}

func (fs *FS) save(ctx context.Context, idx int, path string) (object.Hash, error) {
	if h := fs.a.nodes[idx].hash; h != "" {
		return h, nil
	}

	var obj object.Object
	if fs.a.nodes[idx].isDir() {
		tr := &object.Tree{}
		for _, c := range fs.sortedChildren(idx) {
			child := fs.a.nodes[c]
			h, err := fs.save(ctx, c, storage.Join(path, child.name))
			if err != nil {
				return "", err
			}
			tr.Entries = append(tr.Entries, object.TreeEntry{Name: child.name, Mode: child.mode, Hash: h})
		}
		tr.Sort()
		obj = tr
	} else {
		obj = &object.Blob{Data: fs.a.nodes[idx].data}
	}

	h, err := fs.a.store.SaveObject(ctx, obj)
	if err != nil {
		return "", fmt.Errorf("worktree %q: save: %w", path, err)
	}
	fs.a.nodes[idx].hash = h
	return h, nil
}
