// Package storagetest holds a conformance suite that every storage.Backend
// implementation runs from its own tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/braid/pkg/storage"
)

// Run exercises b, which must be empty, against the storage.Backend contract.
func Run(ctx context.Context, t *testing.T, b storage.Backend) {
	t.Run("ReadWrite", func(t *testing.T) { ReadWrite(ctx, t, b) })
	t.Run("Classify", func(t *testing.T) { Classify(ctx, t, b) })
	t.Run("List", func(t *testing.T) { List(ctx, t, b) })
	t.Run("Directories", func(t *testing.T) { Directories(ctx, t, b) })
}

// ReadWrite checks that written files read back and can be overwritten.
func ReadWrite(ctx context.Context, t *testing.T, b storage.Backend) {
	const path = "rw/a/b/file"

	ok, err := b.Exists(ctx, path)
	require.NoError(t, err)
	require.False(t, ok, "file should not exist before write")

	require.NoError(t, b.Write(ctx, path, []byte("first")))
	got, err := b.Read(ctx, path)
	require.NoError(t, err)
	require.Equal(t, []byte("first"), got)

	require.NoError(t, b.Write(ctx, path, []byte("second")))
	got, err = b.Read(ctx, path)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)

	for _, p := range []string{"rw", "rw/a", "rw/a/b", path} {
		ok, err := b.Exists(ctx, p)
		require.NoError(t, err)
		require.True(t, ok, "%s should exist", p)
	}

	require.NoError(t, b.Write(ctx, "rw/empty", nil))
	got, err = b.Read(ctx, "rw/empty")
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, b.Delete(ctx, path))
	ok, err = b.Exists(ctx, path)
	require.NoError(t, err)
	require.False(t, ok, "file should be gone after delete")
}

// Classify checks that failures carry the right sentinel errors.
func Classify(ctx context.Context, t *testing.T, b storage.Backend) {
	require.NoError(t, b.Write(ctx, "cls/dir/file", []byte("x")))

	_, err := b.Read(ctx, "cls/missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = b.Read(ctx, "cls/dir")
	require.ErrorIs(t, err, storage.ErrIsDirectory)

	err = b.Write(ctx, "cls/dir", []byte("x"))
	require.ErrorIs(t, err, storage.ErrIsDirectory)

	err = b.Write(ctx, "cls/dir/file/child", []byte("x"))
	require.ErrorIs(t, err, storage.ErrNotDirectory)

	err = b.Delete(ctx, "cls/missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	err = b.Delete(ctx, "cls/dir")
	require.ErrorIs(t, err, storage.ErrIsDirectory)

	_, err = b.List(ctx, "cls/missing", false)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = b.List(ctx, "cls/dir/file", false)
	require.ErrorIs(t, err, storage.ErrNotDirectory)

	err = b.CreateDirectory(ctx, "cls/dir/file")
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	err = b.DeleteDirectory(ctx, "cls/dir/file")
	require.ErrorIs(t, err, storage.ErrNotDirectory)

	err = b.DeleteDirectory(ctx, "cls/missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	for _, bad := range []string{"/abs", "trailing/", "a//b", "a/../b", "./a"} {
		_, err := b.Read(ctx, bad)
		require.ErrorIs(t, err, storage.ErrInvalidPath, "path %q", bad)
	}
}

// List checks recursive and non-recursive listings.
func List(ctx context.Context, t *testing.T, b storage.Backend) {
	for _, p := range []string{"ls/a", "ls/b/c", "ls/b/d/e", "ls/f/g"} {
		require.NoError(t, b.Write(ctx, p, []byte(p)))
	}
	require.NoError(t, b.CreateDirectory(ctx, "ls/empty"))

	got, err := b.List(ctx, "ls", false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b/", "empty/", "f/"}, got)

	got, err = b.List(ctx, "ls", true)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b/c", "b/d/e", "f/g"}, got)

	got, err = b.List(ctx, "ls/b", true)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d/e"}, got)

	got, err = b.List(ctx, "ls/empty", true)
	require.NoError(t, err)
	require.Empty(t, got)
}

// Directories checks explicit directory creation and recursive deletion.
func Directories(ctx context.Context, t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateDirectory(ctx, "dirs/x/y"))
	require.NoError(t, b.CreateDirectory(ctx, "dirs/x/y"))

	ok, err := b.Exists(ctx, "dirs/x")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Write(ctx, "dirs/x/y/z", []byte("z")))
	require.NoError(t, b.Write(ctx, "dirs/x/w", []byte("w")))
	require.NoError(t, b.Write(ctx, "dirs/xx", []byte("sibling")))

	require.NoError(t, b.DeleteDirectory(ctx, "dirs/x"))
	for _, p := range []string{"dirs/x", "dirs/x/y", "dirs/x/y/z", "dirs/x/w"} {
		ok, err := b.Exists(ctx, p)
		require.NoError(t, err)
		require.False(t, ok, "%s should be gone", p)
	}

	got, err := b.Read(ctx, "dirs/xx")
	require.NoError(t, err)
	require.Equal(t, []byte("sibling"), got)
}
