package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/storage"
)

// objectPath returns the storage path for a given hash.
func objectPath(h object.Hash) string {
	return objectsDir + "/" + string(h[:2]) + "/" + string(h[2:])
}

// HasObject reports whether the object with hash h is stored.
func (r *Repo) HasObject(ctx context.Context, h object.Hash) (bool, error) {
	if err := object.ValidateHash(h); err != nil {
		return false, err
	}
	ok, err := r.backend.Exists(ctx, objectPath(h))
	if err != nil {
		return false, fmt.Errorf("has object %s: %w", h, err)
	}
	return ok, nil
}

// LoadRawObject returns the inflated "type len\0body" bytes of object h.
// An absent object yields *object.MissingObjectError; undecodable bytes or
// content that does not hash to h yield *object.InvalidDataError.
func (r *Repo) LoadRawObject(ctx context.Context, h object.Hash) ([]byte, error) {
	if err := object.ValidateHash(h); err != nil {
		return nil, err
	}
	compressed, err := r.backend.Read(ctx, objectPath(h))
	if storage.IsNotFound(err) {
		return nil, &object.MissingObjectError{Hash: h}
	}
	if errors.Is(err, storage.ErrIsDirectory) || errors.Is(err, storage.ErrNotDirectory) {
		return nil, &object.InvalidDataError{What: "object " + string(h), Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("load object %s: %w", h, err)
	}

	raw, err := inflate(compressed)
	if err != nil {
		return nil, &object.InvalidDataError{What: "object " + string(h), Err: err}
	}
	if got := object.HashRaw(raw); got != h {
		return nil, &object.InvalidDataError{
			What: "object " + string(h),
			Err:  fmt.Errorf("content hashes to %s", got),
		}
	}
	return raw, nil
}

// SaveRawObject stores an encoded object and returns its hash. The object is
// always written, even when already present, so that a pessimistic copy
// replaces a corrupt one.
func (r *Repo) SaveRawObject(ctx context.Context, raw []byte) (object.Hash, error) {
	if _, _, err := object.SplitEnvelope(raw); err != nil {
		return "", err
	}
	h := object.HashRaw(raw)
	compressed, err := deflate(raw)
	if err != nil {
		return "", fmt.Errorf("save object %s: %w", h, err)
	}
	if err := r.backend.Write(ctx, objectPath(h), compressed); err != nil {
		return "", fmt.Errorf("save object %s: %w", h, err)
	}
	return h, nil
}

// LoadObject loads and decodes object h.
func (r *Repo) LoadObject(ctx context.Context, h object.Hash) (object.Object, error) {
	raw, err := r.LoadRawObject(ctx, h)
	if err != nil {
		return nil, err
	}
	obj, err := object.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode object %s: %w", h, err)
	}
	return obj, nil
}

// SaveObject encodes and stores obj.
func (r *Repo) SaveObject(ctx context.Context, obj object.Object) (object.Hash, error) {
	if tr, ok := obj.(*object.Tree); ok {
		if err := object.ValidateTree(tr); err != nil {
			return "", err
		}
	}
	h, err := r.SaveRawObject(ctx, object.Encode(obj))
	if err != nil {
		return "", err
	}
	if c, ok := obj.(*object.Commit); ok {
		r.cacheCommit(h, c)
	}
	return h, nil
}

// LoadCommit loads commit h. Returned commits may be shared with the cache
// and must not be modified.
func (r *Repo) LoadCommit(ctx context.Context, h object.Hash) (*object.Commit, error) {
	if c, ok := r.cachedCommit(h); ok {
		return c, nil
	}
	obj, err := r.LoadObject(ctx, h)
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*object.Commit)
	if !ok {
		return nil, &object.ObjectTypeMismatchError{Hash: h, Want: object.TypeCommit, Got: obj.Type()}
	}
	r.cacheCommit(h, c)
	return c, nil
}

// LoadTree loads tree h.
func (r *Repo) LoadTree(ctx context.Context, h object.Hash) (*object.Tree, error) {
	obj, err := r.LoadObject(ctx, h)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*object.Tree)
	if !ok {
		return nil, &object.ObjectTypeMismatchError{Hash: h, Want: object.TypeTree, Got: obj.Type()}
	}
	return t, nil
}

// LoadBlob loads blob h.
func (r *Repo) LoadBlob(ctx context.Context, h object.Hash) (*object.Blob, error) {
	obj, err := r.LoadObject(ctx, h)
	if err != nil {
		return nil, err
	}
	b, ok := obj.(*object.Blob)
	if !ok {
		return nil, &object.ObjectTypeMismatchError{Hash: h, Want: object.TypeBlob, Got: obj.Type()}
	}
	return b, nil
}

// CommitSigner signs canonical commit payload bytes and returns the
// signature to store in the commit's gpgsig header.
type CommitSigner func(payload []byte) (string, error)

// WriteCommit signs c when signer is non-nil and stores it.
func (r *Repo) WriteCommit(ctx context.Context, c *object.Commit, signer CommitSigner) (object.Hash, error) {
	if signer != nil {
		sig, err := signer(object.CommitSigningPayload(c))
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
		c.Signature = sig
	}
	h, err := r.SaveObject(ctx, c)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return h, nil
}

func deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
