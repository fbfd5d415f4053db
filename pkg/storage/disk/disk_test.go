package disk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/braid/pkg/storage"
	"github.com/odvcencio/braid/pkg/storage/storagetest"
)

func TestStore(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	storagetest.Run(context.Background(), t, s)
}

func TestListSkipsTempFiles(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, "d/f", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Root(), "d", tmpPrefix+"123"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, recursive := range []bool{false, true} {
		got, err := s.List(ctx, "d", recursive)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != "f" {
			t.Fatalf("List(recursive=%v) = %v, want [f]", recursive, got)
		}
	}
}

func TestRegistered(t *testing.T) {
	root := t.TempDir()
	b, err := storage.Create(context.Background(), "disk", map[string]interface{}{"root": root})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.(*Store).Root(); got != root {
		t.Fatalf("Root() = %q, want %q", got, root)
	}
	if _, err := storage.Create(context.Background(), "disk", nil); err == nil {
		t.Fatal("expected error for missing root")
	}
}
