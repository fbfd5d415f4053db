package worktree

import (
	"context"
	"errors"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/storage"
)

// Read returns the contents of the file at path.
func (fs *FS) Read(ctx context.Context, path string) ([]byte, error) {
	idx, err := fs.lookup(ctx, "read", path)
	if err != nil {
		return nil, err
	}
	if fs.a.nodes[idx].isDir() {
		return nil, storage.NewPathError("read", path, storage.ErrIsDirectory)
	}
	if err := fs.a.expand(ctx, idx, path); err != nil {
		return nil, err
	}
	data := fs.a.nodes[idx].data
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write creates or replaces the file at path, creating parent directories.
// An existing file keeps its mode.
func (fs *FS) Write(ctx context.Context, path string, data []byte) error {
	return fs.write(ctx, path, data, 0)
}

// WriteMode is Write with an explicit file mode.
func (fs *FS) WriteMode(ctx context.Context, path string, data []byte, mode object.Mode) error {
	if mode.IsDir() || mode.IsSubmodule() {
		return storage.NewPathError("write", path, storage.ErrInvalidPath)
	}
	return fs.write(ctx, path, data, mode)
}

func (fs *FS) write(ctx context.Context, path string, data []byte, mode object.Mode) error {
	parts, err := splitPath("write", path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return storage.NewPathError("write", path, storage.ErrIsDirectory)
	}
	dir, err := fs.mkdirs(ctx, "write", parts[:len(parts)-1])
	if err != nil {
		return err
	}

	name := parts[len(parts)-1]
	buf := make([]byte, len(data))
	copy(buf, data)

	if idx, ok := fs.a.nodes[dir].children[name]; ok {
		n := &fs.a.nodes[idx]
		if n.isDir() || n.mode.IsSubmodule() {
			return storage.NewPathError("write", path, storage.ErrIsDirectory)
		}
		if mode != 0 {
			n.mode = mode
		}
		n.data = buf
		n.expanded = true
		fs.a.touch(idx)
		return nil
	}

	if mode == 0 {
		mode = object.ModeFile
	}
	idx := fs.a.add(node{parent: dir, name: name, mode: mode, expanded: true, data: buf})
	fs.a.nodes[dir].children[name] = idx
	fs.a.touch(dir)
	return nil
}

// List returns the sorted names in directory dir. Subdirectory names carry a
// trailing "/".
func (fs *FS) List(ctx context.Context, dir string) ([]string, error) {
	idx, err := fs.lookup(ctx, "list", dir)
	if err != nil {
		return nil, err
	}
	if !fs.a.nodes[idx].isDir() {
		return nil, storage.NewPathError("list", dir, storage.ErrNotDirectory)
	}
	if err := fs.a.expand(ctx, idx, dir); err != nil {
		return nil, err
	}
	children := fs.sortedChildren(idx)
	out := make([]string, 0, len(children))
	for _, c := range children {
		n := &fs.a.nodes[c]
		if n.isDir() {
			out = append(out, n.name+"/")
		} else {
			out = append(out, n.name)
		}
	}
	return out, nil
}

// Stat describes the node at path.
func (fs *FS) Stat(ctx context.Context, path string) (Entry, error) {
	idx, err := fs.lookup(ctx, "stat", path)
	if err != nil {
		return Entry{}, err
	}
	return fs.entry(idx), nil
}

// CreateDirectory creates the directory at path and any missing parents.
// An existing directory is not an error; an existing file is.
func (fs *FS) CreateDirectory(ctx context.Context, path string) error {
	parts, err := splitPath("mkdir", path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return nil
	}
	parent, err := fs.mkdirs(ctx, "mkdir", parts[:len(parts)-1])
	if err != nil {
		return err
	}
	name := parts[len(parts)-1]
	if c, ok := fs.a.nodes[parent].children[name]; ok {
		if fs.a.nodes[c].isDir() {
			return nil
		}
		return storage.NewPathError("mkdir", path, storage.ErrAlreadyExists)
	}
	idx := fs.a.add(node{parent: parent, name: name, mode: object.ModeDir, expanded: true, children: map[string]int{}})
	fs.a.nodes[parent].children[name] = idx
	fs.a.touch(parent)
	return nil
}

// DeleteFile removes the file at path.
func (fs *FS) DeleteFile(ctx context.Context, path string) error {
	idx, err := fs.lookup(ctx, "delete", path)
	if err != nil {
		return err
	}
	if fs.a.nodes[idx].isDir() {
		return storage.NewPathError("delete", path, storage.ErrIsDirectory)
	}
	fs.unlink(idx)
	return nil
}

// DeleteDirectory removes the directory at path and everything beneath it.
// The root of a view cannot be deleted.
func (fs *FS) DeleteDirectory(ctx context.Context, path string) error {
	if path == "" {
		return storage.NewPathError("rmdir", path, storage.ErrInvalidPath)
	}
	idx, err := fs.lookup(ctx, "rmdir", path)
	if err != nil {
		return err
	}
	if !fs.a.nodes[idx].isDir() {
		return storage.NewPathError("rmdir", path, storage.ErrNotDirectory)
	}
	fs.unlink(idx)
	return nil
}

// Link points path at the stored object h, replacing whatever is there and
// creating parent directories. h is not loaded until the new entry is read
// or listed.
func (fs *FS) Link(ctx context.Context, path string, mode object.Mode, h object.Hash) error {
	if err := object.ValidateHash(h); err != nil {
		return err
	}
	parts, err := splitPath("link", path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return storage.NewPathError("link", path, storage.ErrInvalidPath)
	}
	dir, err := fs.mkdirs(ctx, "link", parts[:len(parts)-1])
	if err != nil {
		return err
	}
	name := parts[len(parts)-1]
	if old, ok := fs.a.nodes[dir].children[name]; ok {
		fs.unlink(old)
	}
	idx := fs.a.add(node{parent: dir, name: name, mode: mode, hash: h})
	fs.a.nodes[dir].children[name] = idx
	fs.a.touch(dir)
	return nil
}

// unlink detaches idx from its parent. The node stays in the arena so views
// chrooted beneath it keep working on the detached subtree.
func (fs *FS) unlink(idx int) {
	n := &fs.a.nodes[idx]
	parent := n.parent
	delete(fs.a.nodes[parent].children, n.name)
	n.parent = noParent
	fs.a.touch(parent)
}

// FileExists reports whether a file is at path. Only failures to load the
// trees along path are returned as errors.
func (fs *FS) FileExists(ctx context.Context, path string) (bool, error) {
	idx, err := fs.lookup(ctx, "stat", path)
	if absent(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !fs.a.nodes[idx].isDir(), nil
}

// DirectoryExists reports whether a directory is at path.
func (fs *FS) DirectoryExists(ctx context.Context, path string) (bool, error) {
	idx, err := fs.lookup(ctx, "stat", path)
	if absent(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fs.a.nodes[idx].isDir(), nil
}

func absent(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNotDirectory)
}

// Chroot returns a view rooted at directory path. The view shares nodes with
// fs: changes made through one are seen through the other.
func (fs *FS) Chroot(ctx context.Context, path string) (*FS, error) {
	idx, err := fs.lookup(ctx, "chroot", path)
	if err != nil {
		return nil, err
	}
	if !fs.a.nodes[idx].isDir() {
		return nil, storage.NewPathError("chroot", path, storage.ErrNotDirectory)
	}
	if err := fs.a.expand(ctx, idx, path); err != nil {
		return nil, err
	}
	return &FS{a: fs.a, root: idx}, nil
}
