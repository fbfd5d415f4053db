package remote

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/repo"
)

func TestSyncRefIsIdempotent(t *testing.T) {
	ctx := context.Background()
	local, _ := newTestRepo(t)
	shared, _ := newTestRepo(t)
	c1 := commitFiles(t, local, map[string]string{"f": "1"}, "first change")
	if err := local.UpdateRef(ctx, repo.HeadRef("main"), c1, testPerson("me"), "commit"); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	opts := ClientOptions{Self: "client-a", Branch: "main", RefOptions: RefOptions{Person: testPerson("me")}}
	res, err := Push(ctx, local, shared, opts)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !res.Updated || res.Hash != c1 {
		t.Fatalf("Push = %+v", res)
	}
	dstRef := repo.RemoteRef("client-a", "main")
	entries, err := shared.GetReflog(ctx, dstRef)
	if err != nil {
		t.Fatalf("GetReflog: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("reflog has %d entries, want 1", len(entries))
	}
	if want := "push: " + c1.Short() + " first change"; entries[0].Description != want {
		t.Fatalf("description = %q, want %q", entries[0].Description, want)
	}

	res, err = Push(ctx, local, shared, opts)
	if err != nil {
		t.Fatalf("second Push: %v", err)
	}
	if res.Updated {
		t.Fatal("second Push updated the ref")
	}
	entries, err = shared.GetReflog(ctx, dstRef)
	if err != nil {
		t.Fatalf("GetReflog: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("reflog has %d entries after repeat, want 1", len(entries))
	}
}

func TestFetchRecoversFromReflog(t *testing.T) {
	ctx := context.Background()
	shared, sharedBackend := newTestRepo(t)
	local, _ := newTestRepo(t)
	who := testPerson("other")
	ref := repo.RemoteRef("client-b", "main")

	c1 := commitFiles(t, shared, map[string]string{"f": "complete"}, "complete")
	c2 := commitFiles(t, shared, map[string]string{"f": "partial upload"}, "partial", c1)
	for _, h := range []object.Hash{c1, c2} {
		if err := shared.UpdateRef(ctx, ref, h, who, "push"); err != nil {
			t.Fatalf("UpdateRef: %v", err)
		}
	}
	// c2's blob never finished uploading.
	blob := object.HashObject(object.TypeBlob, []byte("partial upload"))
	if err := sharedBackend.Delete(ctx, objectPath(blob)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	opts := ClientOptions{Self: "client-a", Branch: "main", RefOptions: RefOptions{ReflogRecovery: true, Person: testPerson("me")}}
	results, err := Fetch(ctx, local, shared, opts)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(results) != 1 || results[0].Hash != c1 || !results[0].Recovered {
		t.Fatalf("Fetch = %+v, want recovered %s", results, c1.Short())
	}
	got, err := local.GetRef(ctx, ref)
	if err != nil || got != c1 {
		t.Fatalf("local ref = %s, %v; want %s", got, err, c1)
	}

	opts.ReflogRecovery = false
	if _, err := Fetch(ctx, local, shared, opts); !errors.Is(err, object.ErrMissingObject) {
		t.Fatalf("Fetch without recovery = %v, want missing object", err)
	}
}

func TestFetchIsolatesPerRefFailures(t *testing.T) {
	ctx := context.Background()
	shared, sharedBackend := newTestRepo(t)
	local, _ := newTestRepo(t)
	who := testPerson("x")

	good := commitFiles(t, shared, map[string]string{"f": "good"}, "good")
	broken := commitFiles(t, shared, map[string]string{"f": "broken"}, "broken")
	mine := commitFiles(t, shared, map[string]string{"f": "mine"}, "mine")
	other := commitFiles(t, shared, map[string]string{"f": "other"}, "other branch")
	refs := map[string]object.Hash{
		repo.RemoteRef("b", "main"): good,
		repo.RemoteRef("c", "main"): broken,
		repo.RemoteRef("a", "main"): mine,
		repo.RemoteRef("b", "dev"):  other,
	}
	for ref, h := range refs {
		if err := shared.UpdateRef(ctx, ref, h, who, "push"); err != nil {
			t.Fatalf("UpdateRef: %v", err)
		}
	}
	if err := sharedBackend.Delete(ctx, objectPath(broken)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := Fetch(ctx, local, shared, ClientOptions{Self: "a", Branch: "main", RefOptions: RefOptions{ReflogRecovery: true}})
	if err == nil || !strings.Contains(err.Error(), "refs/remotes/c/main") {
		t.Fatalf("Fetch error = %v, want failure for client c", err)
	}
	if len(results) != 1 || results[0].DstRef != repo.RemoteRef("b", "main") {
		t.Fatalf("Fetch results = %+v", results)
	}

	fetched, err := local.ListRefs(ctx, "refs/remotes")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if diff := cmp.Diff([]string{"refs/remotes/b/main"}, fetched); diff != "" {
		t.Fatalf("local refs (-want +got):\n%s", diff)
	}
}

func TestSyncRefUnsetSource(t *testing.T) {
	ctx := context.Background()
	local, _ := newTestRepo(t)
	shared, _ := newTestRepo(t)
	_, err := Push(ctx, local, shared, ClientOptions{Self: "a", Branch: "main"})
	if !errors.Is(err, ErrRefNotFound) {
		t.Fatalf("Push(unset) = %v, want ErrRefNotFound", err)
	}
	if _, err := Push(ctx, local, shared, ClientOptions{Branch: "main"}); err == nil {
		t.Fatal("Push without client id succeeded")
	}
}
