package repo

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/odvcencio/braid/pkg/object"
)

func TestSaveAndLoadBlob(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	h, err := r.SaveObject(ctx, &object.Blob{Data: []byte("hello\n")})
	if err != nil {
		t.Fatalf("SaveObject: %v", err)
	}
	if want := object.Hash("ce013625030ba8dba906f756967f9e9ca394464a"); h != want {
		t.Fatalf("hash = %s, want %s", h, want)
	}
	ok, err := r.HasObject(ctx, h)
	if err != nil || !ok {
		t.Fatalf("HasObject = %v, %v", ok, err)
	}
	b, err := r.LoadBlob(ctx, h)
	if err != nil {
		t.Fatalf("LoadBlob: %v", err)
	}
	if !bytes.Equal(b.Data, []byte("hello\n")) {
		t.Fatalf("data = %q", b.Data)
	}
}

func TestObjectIsStoredCompressedUnderFanout(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRepo(t)

	h, err := r.SaveObject(ctx, &object.Tree{})
	if err != nil {
		t.Fatalf("SaveObject: %v", err)
	}
	if h != object.EmptyTreeHash {
		t.Fatalf("empty tree hash = %s", h)
	}
	stored, err := backend.Read(ctx, "objects/4b/825dc642cb6eb9a060e54bf8d69288fbee4904")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	raw, err := inflate(stored)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if string(raw) != "tree 0\x00" {
		t.Fatalf("raw = %q", raw)
	}
}

func TestLoadMissingObject(t *testing.T) {
	r, _ := newTestRepo(t)
	h := object.Hash("1111111111111111111111111111111111111111")

	_, err := r.LoadRawObject(context.Background(), h)
	got, ok := object.IsMissing(err)
	if !ok || got != h {
		t.Fatalf("LoadRawObject error = %v, want missing %s", err, h)
	}
}

func TestLoadCorruptObject(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRepo(t)
	h := object.Hash("2222222222222222222222222222222222222222")

	if err := backend.Write(ctx, objectPath(h), []byte("not zlib")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := r.LoadRawObject(ctx, h); !errors.Is(err, object.ErrInvalidData) {
		t.Fatalf("undecodable object error = %v, want ErrInvalidData", err)
	}

	other, err := deflate(object.Encode(&object.Blob{Data: []byte("other")}))
	if err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := backend.Write(ctx, objectPath(h), other); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, err = r.LoadRawObject(ctx, h)
	if !errors.Is(err, object.ErrInvalidData) {
		t.Fatalf("mismatched object error = %v, want ErrInvalidData", err)
	}
	if _, missing := object.IsMissing(err); missing {
		t.Fatal("corrupt object reported as missing")
	}
}

func TestSaveRawObjectRepairsCorruptCopy(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRepo(t)
	raw := object.Encode(&object.Blob{Data: []byte("payload")})
	h := object.HashRaw(raw)

	if err := backend.Write(ctx, objectPath(h), []byte("garbage")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := r.SaveRawObject(ctx, raw); err != nil {
		t.Fatalf("SaveRawObject: %v", err)
	}
	if _, err := r.LoadRawObject(ctx, h); err != nil {
		t.Fatalf("LoadRawObject after repair: %v", err)
	}
}

func TestLoadObjectTypeMismatch(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	h, err := r.SaveObject(ctx, &object.Blob{Data: []byte("x")})
	if err != nil {
		t.Fatalf("SaveObject: %v", err)
	}

	_, err = r.LoadCommit(ctx, h)
	var mismatch *object.ObjectTypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("LoadCommit(blob) error = %v, want *ObjectTypeMismatchError", err)
	}
	if mismatch.Got != object.TypeBlob || mismatch.Want != object.TypeCommit {
		t.Fatalf("mismatch = %+v", mismatch)
	}
}

func TestInvalidHashFailsBeforeStorage(t *testing.T) {
	r, _ := newTestRepo(t)
	_, err := r.LoadRawObject(context.Background(), "XYZ")
	if !errors.Is(err, object.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestSaveObjectRejectsInvalidTree(t *testing.T) {
	r, _ := newTestRepo(t)
	tr := &object.Tree{Entries: []object.TreeEntry{{Name: "a/b", Mode: object.ModeFile, Hash: object.EmptyTreeHash}}}
	if _, err := r.SaveObject(context.Background(), tr); err == nil {
		t.Fatal("SaveObject accepted a tree entry containing '/'")
	}
}

func TestWriteCommitSigns(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	c := &object.Commit{
		Tree:      object.EmptyTreeHash,
		Author:    testPerson("signer", 1),
		Committer: testPerson("signer", 1),
		Message:   "signed\n",
	}

	var payload []byte
	h, err := r.WriteCommit(ctx, c, func(p []byte) (string, error) {
		payload = p
		return "-----BEGIN SSH SIGNATURE-----\nabc\n-----END SSH SIGNATURE-----", nil
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	if bytes.Contains(payload, []byte("gpgsig")) {
		t.Fatal("signing payload contains gpgsig header")
	}
	got, err := r.LoadCommit(ctx, h)
	if err != nil {
		t.Fatalf("LoadCommit: %v", err)
	}
	if got.Signature == "" {
		t.Fatal("stored commit has no signature")
	}
}
