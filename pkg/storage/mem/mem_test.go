package mem

import (
	"context"
	"testing"

	"github.com/odvcencio/braid/pkg/storage"
	"github.com/odvcencio/braid/pkg/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(context.Background(), t, New())
}

func TestRegistered(t *testing.T) {
	b, err := storage.Create(context.Background(), "mem", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.(*Store); !ok {
		t.Fatalf("Create returned %T, want *Store", b)
	}
}

func TestReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	data := []byte("abc")
	if err := s.Write(ctx, "f", data); err != nil {
		t.Fatal(err)
	}
	data[0] = 'X'
	got, err := s.Read(ctx, "f")
	if err != nil {
		t.Fatal(err)
	}
	got[1] = 'Y'
	again, _ := s.Read(ctx, "f")
	if string(again) != "abc" {
		t.Fatalf("stored data was aliased: %q", again)
	}
}
