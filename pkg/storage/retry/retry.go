// Package retry implements a backend that retries a nested backend's
// transient failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/braid/pkg/storage"
)

var _ storage.Backend = &Store{}

const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
)

// Store retries calls to a nested backend that fail with an unclassified
// error. Classified failures (not found, is a directory and the like) and
// context cancellation are returned at once.
type Store struct {
	s        storage.Backend
	attempts int
	backoff  time.Duration
	log      *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithAttempts sets the total number of tries per call, at least 1.
func WithAttempts(n int) Option {
	return func(s *Store) {
		if n >= 1 {
			s.attempts = n
		}
	}
}

// WithBackoff sets the wait before the first retry. It doubles after each.
func WithBackoff(d time.Duration) Option {
	return func(s *Store) { s.backoff = d }
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *Store) { s.log = log }
}

// New wraps s.
func New(s storage.Backend, opts ...Option) *Store {
	st := &Store{
		s:        s,
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(st)
	}
	return st
}

// Transient reports whether err is worth retrying.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, sentinel := range []error{
		storage.ErrNotFound,
		storage.ErrIsDirectory,
		storage.ErrNotDirectory,
		storage.ErrAlreadyExists,
		storage.ErrInvalidPath,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	return true
}

func (s *Store) do(ctx context.Context, op, path string, f func() error) error {
	backoff := s.backoff
	var err error
	for attempt := 1; ; attempt++ {
		err = f()
		if !Transient(err) || attempt >= s.attempts {
			break
		}
		s.log.WithError(err).WithFields(logrus.Fields{
			"op":      op,
			"path":    path,
			"attempt": attempt,
			"backoff": backoff,
		}).Warn("storage call failed, retrying")

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s %s: %w (last error: %v)", op, path, ctx.Err(), err)
		case <-t.C:
		}
		backoff *= 2
	}
	return err
}

func (s *Store) Exists(ctx context.Context, path string) (ok bool, err error) {
	err = s.do(ctx, "exists", path, func() error {
		ok, err = s.s.Exists(ctx, path)
		return err
	})
	return ok, err
}

func (s *Store) Read(ctx context.Context, path string) (data []byte, err error) {
	err = s.do(ctx, "read", path, func() error {
		data, err = s.s.Read(ctx, path)
		return err
	})
	return data, err
}

func (s *Store) Write(ctx context.Context, path string, data []byte) error {
	return s.do(ctx, "write", path, func() error {
		return s.s.Write(ctx, path, data)
	})
}

// Delete retries like the other calls. A retry after a delete that took
// effect but reported failure returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.do(ctx, "delete", path, func() error {
		return s.s.Delete(ctx, path)
	})
}

func (s *Store) List(ctx context.Context, dir string, recursive bool) (names []string, err error) {
	err = s.do(ctx, "list", dir, func() error {
		names, err = s.s.List(ctx, dir, recursive)
		return err
	})
	return names, err
}

func (s *Store) CreateDirectory(ctx context.Context, path string) error {
	return s.do(ctx, "mkdir", path, func() error {
		return s.s.CreateDirectory(ctx, path)
	})
}

func (s *Store) DeleteDirectory(ctx context.Context, path string) error {
	return s.do(ctx, "rmdir", path, func() error {
		return s.s.DeleteDirectory(ctx, path)
	})
}

func init() {
	storage.Register("retry", func(ctx context.Context, conf map[string]interface{}) (storage.Backend, error) {
		nested, err := storage.CreateNested(ctx, conf, "nested")
		if err != nil {
			return nil, err
		}
		var opts []Option
		switch n := conf["attempts"].(type) {
		case int:
			opts = append(opts, WithAttempts(n))
		case int64:
			opts = append(opts, WithAttempts(int(n)))
		case float64:
			opts = append(opts, WithAttempts(int(n)))
		}
		if v, ok := conf["backoff"].(string); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf(`bad "backoff" parameter: %w`, err)
			}
			opts = append(opts, WithBackoff(d))
		}
		return New(nested, opts...), nil
	})
}
