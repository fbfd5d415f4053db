package sqlite3

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/odvcencio/braid/pkg/storage"
	"github.com/odvcencio/braid/pkg/storage/sqlstore"
	"github.com/odvcencio/braid/pkg/storage/storagetest"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	withTestStore(ctx, t, func(s *sqlstore.Store) {
		storagetest.Run(ctx, t, s)
	})
}

func TestSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	withTestStore(ctx, t, func(s *sqlstore.Store) {
		if err := s.Write(ctx, "a/b", []byte("x")); err != nil {
			t.Fatal(err)
		}
		again, err := New(ctx, s.DB())
		if err != nil {
			t.Fatal(err)
		}
		got, err := again.Read(ctx, "a/b")
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "x" {
			t.Fatalf("Read = %q, want x", got)
		}
	})
}

func TestRegistered(t *testing.T) {
	ctx := context.Background()
	conn := filepath.Join(t.TempDir(), "reg.db")
	b, err := storage.Create(ctx, "sqlite3", map[string]interface{}{"conn": conn})
	if err != nil {
		t.Fatal(err)
	}
	defer b.(*sqlstore.Store).DB().Close()
	if err := b.Write(ctx, "f", []byte("y")); err != nil {
		t.Fatal(err)
	}
}

func withTestStore(ctx context.Context, t *testing.T, fn func(*sqlstore.Store)) {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "braid.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s, err := New(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	fn(s)
}
