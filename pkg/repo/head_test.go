package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/braid/pkg/object"
)

func TestResolveHeadCurrent(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	c1 := writeTestCommit(t, r, "one")

	if err := r.UpdateRef(ctx, "refs/heads/main", c1, testPerson("a", 1), "commit"); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	head, err := r.ResolveHead(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveHead: %v", err)
	}
	if head.Hash != c1 || head.Commit.Summary() != "one" {
		t.Fatalf("head = %s %q", head.Hash, head.Commit.Summary())
	}
}

func TestResolveHeadFallsBackThroughReflog(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRepo(t)
	who := testPerson("a", 1)
	c1 := writeTestCommit(t, r, "one")
	c2 := writeTestCommit(t, r, "two", c1)

	for _, h := range []object.Hash{c1, c2} {
		if err := r.UpdateRef(ctx, "refs/heads/main", h, who, "commit"); err != nil {
			t.Fatalf("UpdateRef: %v", err)
		}
	}
	if err := backend.Delete(ctx, objectPath(c2)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	fresh, err := Open(ctx, backend)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	head, err := fresh.ResolveHead(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveHead: %v", err)
	}
	if head.Hash != c1 {
		t.Fatalf("ResolveHead = %s, want fallback %s", head.Hash, c1)
	}
}

func TestResolveHeadNothingResolves(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	if _, err := r.ResolveHead(ctx, "refs/heads/main"); !errors.Is(err, ErrNoHead) {
		t.Fatalf("ResolveHead(unset) = %v, want ErrNoHead", err)
	}

	if err := r.SetRef(ctx, "refs/heads/main", hashA); err != nil {
		t.Fatalf("SetRef: %v", err)
	}
	_, err := r.ResolveHead(ctx, "refs/heads/main")
	if !errors.Is(err, ErrNoHead) || !errors.Is(err, object.ErrMissingObject) {
		t.Fatalf("ResolveHead(missing) = %v, want ErrNoHead and ErrMissingObject", err)
	}
}

func TestRefHistoryIncludesReflogAhead(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	who := testPerson("a", 1)

	if err := r.UpdateRef(ctx, "refs/heads/main", hashA, who, "one"); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	// An entry appended without the ref write that should have followed it.
	if err := r.AppendReflog(ctx, "refs/heads/main", ReflogEntry{Previous: hashA, New: hashB, Person: who}); err != nil {
		t.Fatalf("AppendReflog: %v", err)
	}
	if err := r.UpdateRef(ctx, "refs/heads/main", hashA, who, "back"); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	got, err := r.RefHistory(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("RefHistory: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{hashA, hashB}, got); diff != "" {
		t.Fatalf("RefHistory mismatch (-want +got):\n%s", diff)
	}
}
