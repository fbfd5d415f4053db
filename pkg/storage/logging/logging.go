// Package logging implements a backend that delegates everything to a nested
// backend, logging operations as they happen.
package logging

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/braid/pkg/storage"
)

var _ storage.Backend = &Store{}

// Store logs every call made to a nested backend.
type Store struct {
	s   storage.Backend
	log *logrus.Entry
}

// New wraps s. A nil log uses the standard logger.
func New(s storage.Backend, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{s: s, log: log}
}

func (s *Store) done(op, path string, start time.Time, err error, fields logrus.Fields) {
	entry := s.log.WithFields(logrus.Fields{
		"op":      op,
		"path":    path,
		"elapsed": time.Since(start),
	}).WithFields(fields)
	switch {
	case err == nil:
		entry.Debug("storage")
	case storage.IsNotFound(err):
		entry.WithError(err).Debug("storage")
	default:
		entry.WithError(err).Warn("storage")
	}
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	ok, err := s.s.Exists(ctx, path)
	s.done("exists", path, start, err, logrus.Fields{"exists": ok})
	return ok, err
}

func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	data, err := s.s.Read(ctx, path)
	s.done("read", path, start, err, logrus.Fields{"bytes": len(data)})
	return data, err
}

func (s *Store) Write(ctx context.Context, path string, data []byte) error {
	start := time.Now()
	err := s.s.Write(ctx, path, data)
	s.done("write", path, start, err, logrus.Fields{"bytes": len(data)})
	return err
}

func (s *Store) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := s.s.Delete(ctx, path)
	s.done("delete", path, start, err, nil)
	return err
}

func (s *Store) List(ctx context.Context, dir string, recursive bool) ([]string, error) {
	start := time.Now()
	names, err := s.s.List(ctx, dir, recursive)
	s.done("list", dir, start, err, logrus.Fields{"recursive": recursive, "entries": len(names)})
	return names, err
}

func (s *Store) CreateDirectory(ctx context.Context, path string) error {
	start := time.Now()
	err := s.s.CreateDirectory(ctx, path)
	s.done("mkdir", path, start, err, nil)
	return err
}

func (s *Store) DeleteDirectory(ctx context.Context, path string) error {
	start := time.Now()
	err := s.s.DeleteDirectory(ctx, path)
	s.done("rmdir", path, start, err, nil)
	return err
}

func init() {
	storage.Register("logging", func(ctx context.Context, conf map[string]interface{}) (storage.Backend, error) {
		nested, err := storage.CreateNested(ctx, conf, "nested")
		if err != nil {
			return nil, err
		}
		return New(nested, nil), nil
	})
}
