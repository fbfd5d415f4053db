package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/storage"
)

const (
	hashA = object.Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	hashB = object.Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestGetRefUnset(t *testing.T) {
	r, _ := newTestRepo(t)
	h, err := r.GetRef(context.Background(), "refs/heads/main")
	if err != nil {
		t.Fatalf("GetRef: %v", err)
	}
	if h != "" {
		t.Fatalf("GetRef(unset) = %q, want empty", h)
	}
}

func TestSetRefStoresHashLine(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRepo(t)

	if err := r.SetRef(ctx, "refs/heads/main", hashA); err != nil {
		t.Fatalf("SetRef: %v", err)
	}
	data, err := backend.Read(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != string(hashA)+"\n" {
		t.Fatalf("stored ref = %q", data)
	}
	got, err := r.GetRef(ctx, "refs/heads/main")
	if err != nil || got != hashA {
		t.Fatalf("GetRef = %q, %v", got, err)
	}
}

func TestValidateRef(t *testing.T) {
	good := []string{"refs/heads/main", "refs/remotes/5f0c/main", "refs/heads/feature/x"}
	for _, name := range good {
		if err := ValidateRef(name); err != nil {
			t.Fatalf("ValidateRef(%q): %v", name, err)
		}
	}
	bad := []string{"", "heads/main", "refs/heads/", "refs//main", "refs/heads/../x", "refs/heads/a b", "refs/heads/x.lock", "refs/heads/.hidden", "refs/heads/a~1"}
	for _, name := range bad {
		if err := ValidateRef(name); !errors.Is(err, object.ErrValidation) {
			t.Fatalf("ValidateRef(%q) = %v, want ErrValidation", name, err)
		}
	}
}

func TestSplitRemoteRef(t *testing.T) {
	cases := []struct {
		ref            string
		client, branch string
		ok             bool
	}{
		{ref: "refs/remotes/abc/main", client: "abc", branch: "main", ok: true},
		{ref: "refs/remotes/abc/feature/main", client: "abc", branch: "feature/main", ok: true},
		{ref: "refs/heads/main"},
		{ref: "refs/remotes/abc"},
		{ref: "refs/remotes//main"},
		{ref: "refs/remotes/abc/"},
	}
	for _, tc := range cases {
		client, branch, ok := SplitRemoteRef(tc.ref)
		if client != tc.client || branch != tc.branch || ok != tc.ok {
			t.Errorf("SplitRemoteRef(%q) = %q, %q, %v; want %q, %q, %v", tc.ref, client, branch, ok, tc.client, tc.branch, tc.ok)
		}
	}
}

func TestRefHierarchyConflict(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	if err := r.SetRef(ctx, "refs/heads/a/b", hashA); err != nil {
		t.Fatalf("SetRef: %v", err)
	}
	if err := r.SetRef(ctx, "refs/heads/a", hashA); !errors.Is(err, object.ErrValidation) {
		t.Fatalf("SetRef over ref directory = %v, want ErrValidation", err)
	}
}

func TestListRefs(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	for _, name := range []string{"refs/heads/main", "refs/remotes/c1/main", "refs/remotes/c2/main", "refs/remotes/c2/dev"} {
		if err := r.SetRef(ctx, name, hashA); err != nil {
			t.Fatalf("SetRef(%s): %v", name, err)
		}
	}

	got, err := r.ListRefs(ctx, "refs/remotes")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	want := []string{"refs/remotes/c1/main", "refs/remotes/c2/dev", "refs/remotes/c2/main"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ListRefs mismatch (-want +got):\n%s", diff)
	}

	all, err := r.ListRefs(ctx, "refs")
	if err != nil {
		t.Fatalf("ListRefs(refs): %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("ListRefs(refs) = %v", all)
	}

	none, err := r.ListRefs(ctx, "refs/tags")
	if err != nil || len(none) != 0 {
		t.Fatalf("ListRefs(absent) = %v, %v", none, err)
	}
}

func TestUpdateRefAppendsReflog(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	who := testPerson("alice", 1_700_000_000)

	if err := r.UpdateRef(ctx, "refs/heads/main", hashA, who, "commit: first"); err != nil {
		t.Fatalf("UpdateRef(A): %v", err)
	}
	if err := r.UpdateRef(ctx, "refs/heads/main", hashB, who, "commit: second"); err != nil {
		t.Fatalf("UpdateRef(B): %v", err)
	}

	entries, err := r.GetReflog(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("GetReflog: %v", err)
	}
	want := []ReflogEntry{
		{Previous: "", New: hashA, Person: who, Description: "commit: first"},
		{Previous: hashA, New: hashB, Person: who, Description: "commit: second"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("reflog mismatch (-want +got):\n%s", diff)
	}
}

func TestReflogLineFormat(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRepo(t)
	who := testPerson("alice", 1_700_000_000)

	if err := r.UpdateRef(ctx, "refs/heads/main", hashA, who, "fetch: aaaaaaa multi\nline"); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	data, err := backend.Read(ctx, "logs/refs/heads/main")
	if err != nil {
		t.Fatalf("Read reflog: %v", err)
	}
	want := string(object.ZeroHash) + " " + string(hashA) + " alice <alice@example.com> 1700000000 +0000\tfetch: aaaaaaa multi line\n"
	if string(data) != want {
		t.Fatalf("reflog = %q, want %q", data, want)
	}
}

func TestGetReflogRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRepo(t)
	if err := backend.Write(ctx, "logs/refs/heads/main", []byte("junk\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := r.GetReflog(ctx, "refs/heads/main"); !errors.Is(err, object.ErrInvalidData) {
		t.Fatalf("GetReflog error = %v, want ErrInvalidData", err)
	}
}

type failRefWrites struct {
	storage.Backend
	ref string
}

func (f failRefWrites) Write(ctx context.Context, path string, data []byte) error {
	if path == f.ref {
		return errors.New("injected write failure")
	}
	return f.Backend.Write(ctx, path, data)
}

func TestUpdateRefReportsReflogAhead(t *testing.T) {
	ctx := context.Background()
	_, backend := newTestRepo(t)
	r, err := Open(ctx, failRefWrites{Backend: backend, ref: "refs/heads/main"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	err = r.UpdateRef(ctx, "refs/heads/main", hashA, testPerson("bob", 1), "commit")
	if !errors.Is(err, ErrReflogAheadOfRef) {
		t.Fatalf("UpdateRef error = %v, want ErrReflogAheadOfRef", err)
	}
	var rue *RefUpdateError
	if !errors.As(err, &rue) || rue.NewHash != hashA {
		t.Fatalf("UpdateRef error = %#v", err)
	}

	entries, err := r.GetReflog(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("GetReflog: %v", err)
	}
	if len(entries) != 1 || entries[0].New != hashA {
		t.Fatalf("reflog = %+v, want one entry for %s", entries, hashA)
	}
	if cur, _ := r.GetRef(ctx, "refs/heads/main"); cur != "" {
		t.Fatalf("ref = %q, want unset", cur)
	}
}
