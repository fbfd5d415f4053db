// Package gcs implements a storage backend on Google Cloud Storage.
//
// Files are objects named by their path beneath an optional prefix.
// Directories are implied by the files beneath them; explicitly created
// directories are kept as empty marker objects whose names end in "/".
package gcs

import (
	"context"
	stderrs "errors"
	"io"
	"sort"
	"strings"

	gcstorage "cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/odvcencio/braid/pkg/storage"
)

var _ storage.Backend = &Store{}

// Store is a Google Cloud Storage-based implementation of storage.Backend.
type Store struct {
	bucket *gcstorage.BucketHandle
	prefix string
}

// New produces a new Store keeping its objects under prefix in bucket.
// A non-empty prefix should end in "/".
func New(bucket *gcstorage.BucketHandle, prefix string) *Store {
	return &Store{bucket: bucket, prefix: prefix}
}

func (s *Store) fileName(path string) string { return s.prefix + path }

func (s *Store) dirName(path string) string {
	if path == "" {
		return s.prefix
	}
	return s.prefix + path + "/"
}

func (s *Store) isFile(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	_, err := s.bucket.Object(s.fileName(path)).Attrs(ctx)
	if stderrs.Is(err, gcstorage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "getting object attrs for %s", path)
	}
	return true, nil
}

// isDir reports whether any object, including a marker, lives under path.
func (s *Store) isDir(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return true, nil
	}
	iter := s.bucket.Objects(ctx, &gcstorage.Query{Prefix: s.dirName(path)})
	_, err := iter.Next()
	if stderrs.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "probing directory %s", path)
	}
	return true, nil
}

func (s *Store) checkParents(ctx context.Context, op, path string) error {
	for _, p := range storage.Parents(path) {
		file, err := s.isFile(ctx, p)
		if err != nil {
			return err
		}
		if file {
			return storage.NewPathError(op, p, storage.ErrNotDirectory)
		}
	}
	return nil
}

// Exists reports whether a file or directory is present at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if err := storage.ValidatePath(path); err != nil {
		return false, storage.NewPathError("exists", path, err)
	}
	file, err := s.isFile(ctx, path)
	if err != nil || file {
		return file, err
	}
	return s.isDir(ctx, path)
}

// Read returns the contents of the file at path.
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, storage.NewPathError("read", path, err)
	}
	if path == "" {
		return nil, storage.NewPathError("read", path, storage.ErrIsDirectory)
	}
	r, err := s.bucket.Object(s.fileName(path)).NewReader(ctx)
	if stderrs.Is(err, gcstorage.ErrObjectNotExist) {
		dir, derr := s.isDir(ctx, path)
		if derr != nil {
			return nil, derr
		}
		if dir {
			return nil, storage.NewPathError("read", path, storage.ErrIsDirectory)
		}
		return nil, storage.NewPathError("read", path, storage.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening object %s", path)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	return data, errors.Wrapf(err, "reading contents of object %s", path)
}

// Write creates or replaces the file at path.
func (s *Store) Write(ctx context.Context, path string, data []byte) error {
	if err := storage.ValidatePath(path); err != nil || path == "" {
		return storage.NewPathError("write", path, storage.ErrInvalidPath)
	}
	if err := s.checkParents(ctx, "write", path); err != nil {
		return err
	}
	dir, err := s.isDir(ctx, path)
	if err != nil {
		return err
	}
	if dir {
		return storage.NewPathError("write", path, storage.ErrIsDirectory)
	}

	w := s.bucket.Object(s.fileName(path)).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.Wrapf(err, "writing object %s", path)
	}
	return errors.Wrapf(w.Close(), "finishing object %s", path)
}

// Delete removes the file at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("delete", path, err)
	}
	if path == "" {
		return storage.NewPathError("delete", path, storage.ErrIsDirectory)
	}
	err := s.bucket.Object(s.fileName(path)).Delete(ctx)
	if stderrs.Is(err, gcstorage.ErrObjectNotExist) {
		dir, derr := s.isDir(ctx, path)
		if derr != nil {
			return derr
		}
		if dir {
			return storage.NewPathError("delete", path, storage.ErrIsDirectory)
		}
		return storage.NewPathError("delete", path, storage.ErrNotFound)
	}
	return errors.Wrapf(err, "deleting object %s", path)
}

// List lists the directory at dir.
func (s *Store) List(ctx context.Context, dir string, recursive bool) ([]string, error) {
	if err := storage.ValidatePath(dir); err != nil {
		return nil, storage.NewPathError("list", dir, err)
	}
	file, err := s.isFile(ctx, dir)
	if err != nil {
		return nil, err
	}
	if file {
		return nil, storage.NewPathError("list", dir, storage.ErrNotDirectory)
	}

	base := s.dirName(dir)
	q := &gcstorage.Query{Prefix: base}
	if !recursive {
		q.Delimiter = "/"
	}

	var (
		out   []string
		found = dir == ""
		iter  = s.bucket.Objects(ctx, q)
	)
	for {
		attrs, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s", dir)
		}
		found = true

		if attrs.Prefix != "" {
			out = append(out, strings.TrimPrefix(attrs.Prefix, base))
			continue
		}
		rel := strings.TrimPrefix(attrs.Name, base)
		if rel == "" || strings.HasSuffix(rel, "/") {
			// Directory marker.
			continue
		}
		out = append(out, rel)
	}
	if !found {
		return nil, storage.NewPathError("list", dir, storage.ErrNotFound)
	}
	sort.Strings(out)
	return out, nil
}

// CreateDirectory writes marker objects for path and its parents.
func (s *Store) CreateDirectory(ctx context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("mkdir", path, err)
	}
	if path == "" {
		return nil
	}
	file, err := s.isFile(ctx, path)
	if err != nil {
		return err
	}
	if file {
		return storage.NewPathError("mkdir", path, storage.ErrAlreadyExists)
	}
	if err := s.checkParents(ctx, "mkdir", path); err != nil {
		return err
	}
	for _, d := range append(storage.Parents(path), path) {
		w := s.bucket.Object(s.dirName(d)).NewWriter(ctx)
		if err := w.Close(); err != nil {
			return errors.Wrapf(err, "writing directory marker %s", d)
		}
	}
	return nil
}

// DeleteDirectory removes every object beneath path.
func (s *Store) DeleteDirectory(ctx context.Context, path string) error {
	if err := storage.ValidatePath(path); err != nil {
		return storage.NewPathError("rmdir", path, err)
	}
	file, err := s.isFile(ctx, path)
	if err != nil {
		return err
	}
	if file {
		return storage.NewPathError("rmdir", path, storage.ErrNotDirectory)
	}

	found := path == ""
	iter := s.bucket.Objects(ctx, &gcstorage.Query{Prefix: s.dirName(path)})
	for {
		attrs, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "listing %s", path)
		}
		found = true
		err = s.bucket.Object(attrs.Name).Delete(ctx)
		if err != nil && !stderrs.Is(err, gcstorage.ErrObjectNotExist) {
			return errors.Wrapf(err, "deleting object %s", attrs.Name)
		}
	}
	if !found {
		return storage.NewPathError("rmdir", path, storage.ErrNotFound)
	}
	return nil
}

func init() {
	storage.Register("gcs", func(ctx context.Context, conf map[string]interface{}) (storage.Backend, error) {
		var options []option.ClientOption
		if creds, ok := conf["creds"].(string); ok {
			options = append(options, option.WithCredentialsFile(creds))
		}
		bucketName, ok := conf["bucket"].(string)
		if !ok {
			return nil, errors.New(`missing "bucket" parameter`)
		}
		prefix, _ := conf["prefix"].(string)
		c, err := gcstorage.NewClient(ctx, options...)
		if err != nil {
			return nil, errors.Wrap(err, "creating cloud storage client")
		}
		return New(c.Bucket(bucketName), prefix), nil
	})
}
