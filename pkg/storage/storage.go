// Package storage defines the byte-storage contract that repositories are
// layered on.
//
// A Backend is a hierarchical key space of files and directories addressed by
// slash-separated relative paths such as "objects/4b/825dc6...". The empty
// path names the root directory. Backends classify failures with the
// sentinel errors below, wrapped in a *PathError.
package storage

import (
	"context"
	"errors"
	"strings"
)

// Backend is a hierarchical byte store.
type Backend interface {
	// Exists reports whether a file or directory is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Read returns the contents of the file at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write creates or replaces the file at path, creating missing parent
	// directories.
	Write(ctx context.Context, path string, data []byte) error

	// Delete removes the file at path.
	Delete(ctx context.Context, path string) error

	// List returns the entries of directory dir in sorted order.
	// Non-recursive listings return immediate child names, with directory
	// names suffixed by "/". Recursive listings return the paths, relative
	// to dir, of every file beneath it.
	List(ctx context.Context, dir string, recursive bool) ([]string, error)

	// CreateDirectory creates the directory at path and any missing parents.
	// An existing directory is not an error.
	CreateDirectory(ctx context.Context, path string) error

	// DeleteDirectory removes the directory at path and everything in it.
	DeleteDirectory(ctx context.Context, path string) error
}

var (
	ErrNotFound      = errors.New("not found")
	ErrIsDirectory   = errors.New("is a directory")
	ErrNotDirectory  = errors.New("not a directory")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidPath   = errors.New("invalid path")
)

// PathError records a classified failure and the operation and path that
// caused it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// NewPathError returns a *PathError for op on path.
func NewPathError(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

// ValidatePath rejects absolute paths, trailing slashes and empty, "." or
// ".." segments. The empty path (root) is valid.
func ValidatePath(path string) error {
	if path == "" {
		return nil
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".", "..":
			return ErrInvalidPath
		}
		if strings.ContainsRune(seg, 0) {
			return ErrInvalidPath
		}
	}
	return nil
}

// Join joins path elements, skipping empty ones.
func Join(elems ...string) string {
	var parts []string
	for _, e := range elems {
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}

// Parents returns the proper ancestors of path, outermost first, excluding
// the root: Parents("a/b/c") is ["a", "a/b"].
func Parents(path string) []string {
	var out []string
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			out = append(out, path[:i])
		}
	}
	return out
}

// Rel returns path relative to dir, or false if path is not strictly
// beneath dir.
func Rel(dir, path string) (string, bool) {
	if dir == "" {
		return path, path != ""
	}
	if !strings.HasPrefix(path, dir+"/") {
		return "", false
	}
	return path[len(dir)+1:], true
}

// IsNotFound reports whether err is classified as ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
