// Package disk implements a storage backend as a local file hierarchy.
package disk

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/odvcencio/braid/pkg/storage"
)

var _ storage.Backend = &Store{}

// tmpPrefix marks in-flight writes. Such files are never listed.
const tmpPrefix = ".tmp-"

// Store is a file-based implementation of storage.Backend.
type Store struct {
	root string
}

// New produces a new Store storing data beneath root, which is created if
// needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating root %s", root)
	}
	return &Store{root: root}, nil
}

// Root returns the directory the store lives in.
func (s *Store) Root() string { return s.root }

func (s *Store) fspath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// stat returns nil info when nothing is at path.
func (s *Store) stat(path string) (fs.FileInfo, error) {
	info, err := os.Stat(s.fspath(path))
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	return info, nil
}

// checkParents fails with ErrNotDirectory if any ancestor of path is a file.
func (s *Store) checkParents(op, path string) error {
	for _, p := range storage.Parents(path) {
		info, err := s.stat(p)
		if err != nil {
			return err
		}
		if info == nil {
			return nil
		}
		if !info.IsDir() {
			return storage.NewPathError(op, p, storage.ErrNotDirectory)
		}
	}
	return nil
}

// Exists reports whether a file or directory is present at path.
func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	if err := storage.ValidatePath(path); err != nil {
		return false, storage.NewPathError("exists", path, err)
	}
	info, err := s.stat(path)
	return info != nil, err
}

// Read returns the contents of the file at path.
func (s *Store) Read(_ context.Context, path string) ([]byte, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, storage.NewPathError("read", path, err)
	}
	info, err := s.stat(path)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, storage.NewPathError("read", path, storage.ErrNotFound)
	}
	if info.IsDir() {
		return nil, storage.NewPathError("read", path, storage.ErrIsDirectory)
	}
	data, err := os.ReadFile(s.fspath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.NewPathError("read", path, storage.ErrNotFound)
	}
	return data, errors.Wrapf(err, "reading %s", path)
}

// Write stores data at path. Writes are atomic: data goes to a temp file in
// the target directory which is then renamed into place.
func (s *Store) Write(_ context.Context, path string, data []byte) error {
	if err := storage.ValidatePath(path); err != nil || path == "" {
		return storage.NewPathError("write", path, storage.ErrInvalidPath)
	}
	if err := s.checkParents("write", path); err != nil {
		return err
	}
	info, err := s.stat(path)
	if err != nil {
		return err
	}
	if info != nil && info.IsDir() {
		return storage.NewPathError("write", path, storage.ErrIsDirectory)
	}

	dest := s.fspath(path)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "ensuring directory for %s exists", path)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "closing temp file for %s", path)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "renaming into %s", path)
	}
	return nil
}

// Delete removes the file at path.
func (s *Store) Delete(_ context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("delete", path, err)
	}
	info, err := s.stat(path)
	if err != nil {
		return err
	}
	if info == nil {
		return storage.NewPathError("delete", path, storage.ErrNotFound)
	}
	if info.IsDir() {
		return storage.NewPathError("delete", path, storage.ErrIsDirectory)
	}
	return errors.Wrapf(os.Remove(s.fspath(path)), "removing %s", path)
}

// List lists the directory at dir.
func (s *Store) List(_ context.Context, dir string, recursive bool) ([]string, error) {
	if err := storage.ValidatePath(dir); err != nil {
		return nil, storage.NewPathError("list", dir, err)
	}
	info, err := s.stat(dir)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, storage.NewPathError("list", dir, storage.ErrNotFound)
	}
	if !info.IsDir() {
		return nil, storage.NewPathError("list", dir, storage.ErrNotDirectory)
	}

	base := s.fspath(dir)
	var out []string
	if !recursive {
		entries, err := os.ReadDir(base)
		if err != nil {
			return nil, errors.Wrapf(err, "reading directory %s", dir)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), tmpPrefix) {
				continue
			}
			if e.IsDir() {
				out = append(out, e.Name()+"/")
			} else {
				out = append(out, e.Name())
			}
		}
		sort.Strings(out)
		return out, nil
	}

	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", dir)
	}
	sort.Strings(out)
	return out, nil
}

// CreateDirectory creates path and its parents.
func (s *Store) CreateDirectory(_ context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("mkdir", path, err)
	}
	info, err := s.stat(path)
	if err != nil {
		return err
	}
	if info != nil {
		if info.IsDir() {
			return nil
		}
		return storage.NewPathError("mkdir", path, storage.ErrAlreadyExists)
	}
	if err := s.checkParents("mkdir", path); err != nil {
		return err
	}
	return errors.Wrapf(os.MkdirAll(s.fspath(path), 0o755), "creating directory %s", path)
}

// DeleteDirectory removes path and everything beneath it. Deleting the root
// empties it.
func (s *Store) DeleteDirectory(_ context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("rmdir", path, err)
	}
	info, err := s.stat(path)
	if err != nil {
		return err
	}
	if info == nil {
		return storage.NewPathError("rmdir", path, storage.ErrNotFound)
	}
	if !info.IsDir() {
		return storage.NewPathError("rmdir", path, storage.ErrNotDirectory)
	}
	if path != "" {
		return errors.Wrapf(os.RemoveAll(s.fspath(path)), "removing directory %s", path)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return errors.Wrap(err, "reading root")
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return errors.Wrapf(err, "removing %s", e.Name())
		}
	}
	return nil
}

func init() {
	storage.Register("disk", func(_ context.Context, conf map[string]interface{}) (storage.Backend, error) {
		root, ok := conf["root"].(string)
		if !ok {
			return nil, errors.New(`missing "root" parameter`)
		}
		return New(root)
	})
}
