// Package mem implements an in-memory storage backend.
package mem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/odvcencio/braid/pkg/storage"
)

var _ storage.Backend = &Store{}

// Store is a memory-based implementation of storage.Backend.
type Store struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]struct{}
}

// New produces a new, empty Store.
func New() *Store {
	return &Store{
		files: make(map[string][]byte),
		dirs:  map[string]struct{}{"": {}},
	}
}

// Exists reports whether a file or directory is present at path.
func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	if err := storage.ValidatePath(path); err != nil {
		return false, storage.NewPathError("exists", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, isFile := s.files[path]
	_, isDir := s.dirs[path]
	return isFile || isDir, nil
}

// Read returns a copy of the file at path.
func (s *Store) Read(_ context.Context, path string) ([]byte, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, storage.NewPathError("read", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dirs[path]; ok {
		return nil, storage.NewPathError("read", path, storage.ErrIsDirectory)
	}
	data, ok := s.files[path]
	if !ok {
		return nil, storage.NewPathError("read", path, storage.ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write stores a copy of data at path.
func (s *Store) Write(_ context.Context, path string, data []byte) error {
	if err := storage.ValidatePath(path); err != nil || path == "" {
		return storage.NewPathError("write", path, storage.ErrInvalidPath)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dirs[path]; ok {
		return storage.NewPathError("write", path, storage.ErrIsDirectory)
	}
	if err := s.mkdirs("write", storage.Parents(path)); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.files[path] = buf
	return nil
}

// Caller must obtain a lock.
func (s *Store) mkdirs(op string, dirs []string) error {
	for _, d := range dirs {
		if _, ok := s.files[d]; ok {
			return storage.NewPathError(op, d, storage.ErrNotDirectory)
		}
	}
	for _, d := range dirs {
		s.dirs[d] = struct{}{}
	}
	return nil
}

// Delete removes the file at path.
func (s *Store) Delete(_ context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("delete", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dirs[path]; ok {
		return storage.NewPathError("delete", path, storage.ErrIsDirectory)
	}
	if _, ok := s.files[path]; !ok {
		return storage.NewPathError("delete", path, storage.ErrNotFound)
	}
	delete(s.files, path)
	return nil
}

// List lists the directory at dir.
func (s *Store) List(_ context.Context, dir string, recursive bool) ([]string, error) {
	if err := storage.ValidatePath(dir); err != nil {
		return nil, storage.NewPathError("list", dir, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[dir]; ok {
		return nil, storage.NewPathError("list", dir, storage.ErrNotDirectory)
	}
	if _, ok := s.dirs[dir]; !ok {
		return nil, storage.NewPathError("list", dir, storage.ErrNotFound)
	}

	seen := make(map[string]struct{})
	for p := range s.files {
		rel, ok := storage.Rel(dir, p)
		if !ok {
			continue
		}
		if recursive {
			seen[rel] = struct{}{}
			continue
		}
		if head, _, nested := strings.Cut(rel, "/"); nested {
			seen[head+"/"] = struct{}{}
		} else {
			seen[rel] = struct{}{}
		}
	}
	if !recursive {
		for d := range s.dirs {
			rel, ok := storage.Rel(dir, d)
			if !ok {
				continue
			}
			head, _, _ := strings.Cut(rel, "/")
			seen[head+"/"] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// CreateDirectory creates path and its parents.
func (s *Store) CreateDirectory(_ context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("mkdir", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[path]; ok {
		return storage.NewPathError("mkdir", path, storage.ErrAlreadyExists)
	}
	if path == "" {
		return nil
	}
	return s.mkdirs("mkdir", append(storage.Parents(path), path))
}

// DeleteDirectory removes path and everything beneath it.
func (s *Store) DeleteDirectory(_ context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("rmdir", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[path]; ok {
		return storage.NewPathError("rmdir", path, storage.ErrNotDirectory)
	}
	if _, ok := s.dirs[path]; !ok {
		return storage.NewPathError("rmdir", path, storage.ErrNotFound)
	}
	for p := range s.files {
		if _, ok := storage.Rel(path, p); ok {
			delete(s.files, p)
		}
	}
	for d := range s.dirs {
		if _, ok := storage.Rel(path, d); ok {
			delete(s.dirs, d)
		}
	}
	if path != "" {
		delete(s.dirs, path)
	}
	return nil
}

func init() {
	storage.Register("mem", func(context.Context, map[string]interface{}) (storage.Backend, error) {
		return New(), nil
	})
}
