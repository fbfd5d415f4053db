// Package lru implements a storage backend that acts as a least-recently-used
// read cache for a nested backend.
package lru

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/odvcencio/braid/pkg/storage"
)

var _ storage.Backend = &Store{}

// Store caches file contents read from a nested backend.
// Writes pass through to the nested backend and invalidate cached entries.
type Store struct {
	c         *lru.Cache // path -> []byte
	s         storage.Backend
	cacheable func(path string) bool
}

// Option configures a Store.
type Option func(*Store)

// DefaultPrefixes are the directories cached when no WithPrefixes option is
// given. Only content-addressed paths are safe to cache: refs and reflogs
// change underneath the cache whenever another client syncs.
var DefaultPrefixes = []string{"objects"}

// WithPrefixes restricts caching to paths beneath the given directories,
// replacing DefaultPrefixes.
func WithPrefixes(prefixes ...string) Option {
	return func(s *Store) {
		s.cacheable = underPrefixes(prefixes)
	}
}

func underPrefixes(prefixes []string) func(string) bool {
	return func(path string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(path, p+"/") {
				return true
			}
		}
		return false
	}
}

// New produces a new Store backed by s and caching up to size files.
func New(s storage.Backend, size int, opts ...Option) (*Store, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "creating cache")
	}
	st := &Store{c: c, s: s, cacheable: underPrefixes(DefaultPrefixes)}
	for _, o := range opts {
		o(st)
	}
	return st, nil
}

// Exists reports whether a file or directory is present at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if s.c.Contains(path) {
		return true, nil
	}
	return s.s.Exists(ctx, path)
}

// Read returns the contents of the file at path, from the cache if possible.
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	if got, ok := s.c.Get(path); ok {
		return clone(got.([]byte)), nil
	}
	data, err := s.s.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	if s.cacheable(path) {
		s.c.Add(path, clone(data))
	}
	return data, nil
}

// Write writes through to the nested backend.
func (s *Store) Write(ctx context.Context, path string, data []byte) error {
	s.c.Remove(path)
	if err := s.s.Write(ctx, path, data); err != nil {
		return err
	}
	if s.cacheable(path) {
		s.c.Add(path, clone(data))
	}
	return nil
}

// Delete deletes from the nested backend.
func (s *Store) Delete(ctx context.Context, path string) error {
	s.c.Remove(path)
	return s.s.Delete(ctx, path)
}

// List is not cached.
func (s *Store) List(ctx context.Context, dir string, recursive bool) ([]string, error) {
	return s.s.List(ctx, dir, recursive)
}

// CreateDirectory passes through to the nested backend.
func (s *Store) CreateDirectory(ctx context.Context, path string) error {
	return s.s.CreateDirectory(ctx, path)
}

// DeleteDirectory evicts everything cached beneath path and deletes it from
// the nested backend.
func (s *Store) DeleteDirectory(ctx context.Context, path string) error {
	for _, k := range s.c.Keys() {
		if _, ok := storage.Rel(path, k.(string)); ok {
			s.c.Remove(k)
		}
	}
	return s.s.DeleteDirectory(ctx, path)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func init() {
	storage.Register("lru", func(ctx context.Context, conf map[string]interface{}) (storage.Backend, error) {
		size, ok := conf["size"].(int)
		if !ok {
			if f, isFloat := conf["size"].(float64); isFloat {
				size, ok = int(f), true
			} else if i, isInt64 := conf["size"].(int64); isInt64 {
				size, ok = int(i), true
			}
		}
		if !ok {
			return nil, errors.New(`missing "size" parameter`)
		}
		nested, err := storage.CreateNested(ctx, conf, "nested")
		if err != nil {
			return nil, err
		}
		var opts []Option
		if prefixes, ok := conf["prefixes"].([]interface{}); ok {
			var ps []string
			for _, p := range prefixes {
				if s, ok := p.(string); ok {
					ps = append(ps, s)
				}
			}
			opts = append(opts, WithPrefixes(ps...))
		}
		return New(nested, size, opts...)
	})
}
