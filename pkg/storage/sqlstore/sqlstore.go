// Package sqlstore implements storage.Backend on a SQL database.
//
// Every file and directory is one row of the braid_entries table. The root
// directory is implicit. Driver packages (sqlite3, pg) supply a schema with
// the column types their database wants.
package sqlstore

import (
	"context"
	"database/sql"
	stderrs "errors"
	"sort"
	"strings"

	"github.com/bobg/sqlutil"
	"github.com/pkg/errors"

	"github.com/odvcencio/braid/pkg/storage"
)

var _ storage.Backend = &Store{}

// Store is a SQL-based implementation of storage.Backend.
type Store struct {
	db *sql.DB
}

// New produces a new Store using db, first executing schema, which must
// create the braid_entries table (path, is_dir, data) if it does not exist.
func New(ctx context.Context, db *sql.DB, schema string) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Wrap(err, "creating schema")
	}
	return &Store{db: db}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// lookup reports whether path exists and whether it is a directory.
func lookup(ctx context.Context, q queryer, path string) (exists, isDir bool, err error) {
	if path == "" {
		return true, true, nil
	}
	const query = `SELECT is_dir FROM braid_entries WHERE path = $1`
	err = q.QueryRowContext(ctx, query, path).Scan(&isDir)
	if stderrs.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, errors.Wrapf(err, "looking up %s", path)
	}
	return true, isDir, nil
}

// mkdirs inserts rows for dirs, failing if any of them is a file.
func mkdirs(ctx context.Context, q queryer, op string, dirs []string) error {
	for _, d := range dirs {
		exists, isDir, err := lookup(ctx, q, d)
		if err != nil {
			return err
		}
		if exists && !isDir {
			return storage.NewPathError(op, d, storage.ErrNotDirectory)
		}
	}
	const insert = `INSERT INTO braid_entries (path, is_dir, data) VALUES ($1, TRUE, NULL) ON CONFLICT (path) DO NOTHING`
	for _, d := range dirs {
		if _, err := q.ExecContext(ctx, insert, d); err != nil {
			return errors.Wrapf(err, "inserting directory %s", d)
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Exists reports whether a file or directory is present at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if err := storage.ValidatePath(path); err != nil {
		return false, storage.NewPathError("exists", path, err)
	}
	exists, _, err := lookup(ctx, s.db, path)
	return exists, err
}

// Read returns the contents of the file at path.
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, storage.NewPathError("read", path, err)
	}
	if path == "" {
		return nil, storage.NewPathError("read", path, storage.ErrIsDirectory)
	}
	const q = `SELECT is_dir, data FROM braid_entries WHERE path = $1`
	var (
		isDir bool
		data  []byte
	)
	err := s.db.QueryRowContext(ctx, q, path).Scan(&isDir, &data)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, storage.NewPathError("read", path, storage.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if isDir {
		return nil, storage.NewPathError("read", path, storage.ErrIsDirectory)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Write creates or replaces the file at path.
func (s *Store) Write(ctx context.Context, path string, data []byte) error {
	if err := storage.ValidatePath(path); err != nil || path == "" {
		return storage.NewPathError("write", path, storage.ErrInvalidPath)
	}
	if data == nil {
		data = []byte{}
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mkdirs(ctx, tx, "write", storage.Parents(path)); err != nil {
			return err
		}
		exists, isDir, err := lookup(ctx, tx, path)
		if err != nil {
			return err
		}
		if exists && isDir {
			return storage.NewPathError("write", path, storage.ErrIsDirectory)
		}
		const q = `INSERT INTO braid_entries (path, is_dir, data) VALUES ($1, FALSE, $2)
			ON CONFLICT (path) DO UPDATE SET data = excluded.data`
		_, err = tx.ExecContext(ctx, q, path, data)
		return errors.Wrapf(err, "writing %s", path)
	})
}

// Delete removes the file at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("delete", path, err)
	}
	exists, isDir, err := lookup(ctx, s.db, path)
	if err != nil {
		return err
	}
	if !exists {
		return storage.NewPathError("delete", path, storage.ErrNotFound)
	}
	if isDir {
		return storage.NewPathError("delete", path, storage.ErrIsDirectory)
	}
	const q = `DELETE FROM braid_entries WHERE path = $1`
	_, err = s.db.ExecContext(ctx, q, path)
	return errors.Wrapf(err, "deleting %s", path)
}

// subtreeBounds returns an exclusive range of paths strictly beneath dir.
// '0' is the byte after '/'.
func subtreeBounds(dir string) (lo, hi string) {
	if dir == "" {
		return "", "\U0010FFFF"
	}
	return dir + "/", dir + "0"
}

// List lists the directory at dir.
func (s *Store) List(ctx context.Context, dir string, recursive bool) ([]string, error) {
	if err := storage.ValidatePath(dir); err != nil {
		return nil, storage.NewPathError("list", dir, err)
	}
	exists, isDir, err := lookup(ctx, s.db, dir)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, storage.NewPathError("list", dir, storage.ErrNotFound)
	}
	if !isDir {
		return nil, storage.NewPathError("list", dir, storage.ErrNotDirectory)
	}

	lo, hi := subtreeBounds(dir)
	const q = `SELECT path, is_dir FROM braid_entries WHERE path > $1 AND path < $2 ORDER BY path`
	seen := make(map[string]struct{})
	err = sqlutil.ForQueryRows(ctx, s.db, q, lo, hi, func(p string, entryIsDir bool) {
		rel, ok := storage.Rel(dir, p)
		if !ok {
			return
		}
		if recursive {
			if !entryIsDir {
				seen[rel] = struct{}{}
			}
			return
		}
		head, _, nested := strings.Cut(rel, "/")
		if nested || entryIsDir {
			seen[head+"/"] = struct{}{}
		} else {
			seen[head] = struct{}{}
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// CreateDirectory creates path and its parents.
func (s *Store) CreateDirectory(ctx context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("mkdir", path, err)
	}
	if path == "" {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		exists, isDir, err := lookup(ctx, tx, path)
		if err != nil {
			return err
		}
		if exists {
			if isDir {
				return nil
			}
			return storage.NewPathError("mkdir", path, storage.ErrAlreadyExists)
		}
		return mkdirs(ctx, tx, "mkdir", append(storage.Parents(path), path))
	})
}

// DeleteDirectory removes path and everything beneath it.
func (s *Store) DeleteDirectory(ctx context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("rmdir", path, err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		exists, isDir, err := lookup(ctx, tx, path)
		if err != nil {
			return err
		}
		if !exists {
			return storage.NewPathError("rmdir", path, storage.ErrNotFound)
		}
		if !isDir {
			return storage.NewPathError("rmdir", path, storage.ErrNotDirectory)
		}
		lo, hi := subtreeBounds(path)
		const q = `DELETE FROM braid_entries WHERE path = $1 OR (path > $2 AND path < $3)`
		_, err = tx.ExecContext(ctx, q, path, lo, hi)
		return errors.Wrapf(err, "deleting directory %s", path)
	})
}
