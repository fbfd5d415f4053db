package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/storage"
)

const (
	// HeadsPrefix holds each client's own branches.
	HeadsPrefix = "refs/heads/"
	// RemotesPrefix holds branches published by other clients, keyed by
	// client id: refs/remotes/<uuid>/<branch>.
	RemotesPrefix = "refs/remotes/"
)

// HeadRef returns refs/heads/<branch>.
func HeadRef(branch string) string { return HeadsPrefix + branch }

// RemoteRef returns refs/remotes/<client>/<branch>.
func RemoteRef(client, branch string) string { return RemotesPrefix + client + "/" + branch }

// SplitRemoteRef splits refs/remotes/<client>/<branch>. Client ids hold no
// slash, so everything after the first one is the branch.
func SplitRemoteRef(ref string) (client, branch string, ok bool) {
	rest, ok := strings.CutPrefix(ref, RemotesPrefix)
	if !ok {
		return "", "", false
	}
	client, branch, ok = strings.Cut(rest, "/")
	if !ok || client == "" || branch == "" {
		return "", "", false
	}
	return client, branch, true
}

// ValidateRef checks that name is a well-formed ref under refs/.
func ValidateRef(name string) error {
	bad := func(reason string) error {
		return &object.ValidationError{Kind: "ref", Value: name, Reason: reason}
	}
	if !strings.HasPrefix(name, refsDir+"/") {
		return bad("must start with refs/")
	}
	if strings.HasSuffix(name, ".lock") {
		return bad("must not end in .lock")
	}
	for _, seg := range strings.Split(name, "/") {
		switch {
		case seg == "":
			return bad("empty path component")
		case seg == "." || seg == "..":
			return bad("relative path component")
		case strings.HasPrefix(seg, "."):
			return bad("component starts with '.'")
		}
	}
	for _, c := range name {
		if c <= ' ' || c == 0x7f || strings.ContainsRune("~^:?*[\\", c) {
			return bad(fmt.Sprintf("invalid character %q", c))
		}
	}
	if strings.Contains(name, "..") || strings.Contains(name, "@{") {
		return bad("invalid sequence")
	}
	return nil
}

// refConflict converts hierarchy clashes (a ref that is also a directory of
// refs, or the reverse) into validation errors.
func refConflict(name string, err error) error {
	if errors.Is(err, storage.ErrIsDirectory) || errors.Is(err, storage.ErrNotDirectory) {
		return &object.ValidationError{Kind: "ref", Value: name, Reason: "conflicts with an existing ref hierarchy"}
	}
	return nil
}

// GetRef returns the hash ref points to, or "" when it is unset.
func (r *Repo) GetRef(ctx context.Context, ref string) (object.Hash, error) {
	if err := ValidateRef(ref); err != nil {
		return "", err
	}
	data, err := r.backend.Read(ctx, ref)
	if storage.IsNotFound(err) {
		return "", nil
	}
	if cerr := refConflict(ref, err); cerr != nil {
		return "", cerr
	}
	if err != nil {
		return "", fmt.Errorf("get ref %q: %w", ref, err)
	}
	h := object.Hash(strings.TrimSpace(string(data)))
	if err := object.ValidateHash(h); err != nil {
		return "", &object.InvalidDataError{What: "ref " + ref, Err: err}
	}
	return h, nil
}

// SetRef points ref at h without touching its reflog. Most callers want
// UpdateRef.
func (r *Repo) SetRef(ctx context.Context, ref string, h object.Hash) error {
	if err := ValidateRef(ref); err != nil {
		return err
	}
	if err := object.ValidateHash(h); err != nil {
		return err
	}
	err := r.backend.Write(ctx, ref, []byte(string(h)+"\n"))
	if cerr := refConflict(ref, err); cerr != nil {
		return cerr
	}
	if err != nil {
		return fmt.Errorf("set ref %q: %w", ref, err)
	}
	return nil
}

// ListRefs returns the full names of all refs beneath prefix (for example
// "refs/remotes"), sorted.
func (r *Repo) ListRefs(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != refsDir {
		if err := ValidateRef(prefix); err != nil {
			return nil, err
		}
	}
	names, err := r.backend.List(ctx, prefix, true)
	if storage.IsNotFound(err) || errors.Is(err, storage.ErrNotDirectory) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs %q: %w", prefix, err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, prefix+"/"+n)
	}
	return out, nil
}

var ErrReflogAheadOfRef = errors.New("reflog appended but ref write failed")

// RefUpdateError indicates that UpdateRef appended the reflog entry but then
// failed to write the ref. The reflog is one entry ahead of the ref.
type RefUpdateError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateError) Error() string {
	return fmt.Sprintf("update ref %q: %s (old=%s new=%s): %v", e.Ref, ErrReflogAheadOfRef, e.OldHash, e.NewHash, e.Err)
}

func (e *RefUpdateError) Unwrap() error { return e.Err }

func (e *RefUpdateError) Is(target error) bool { return target == ErrReflogAheadOfRef }

// UpdateRef appends a reflog entry recording the move from the current value
// to h, then advances ref. The pair is not atomic.
func (r *Repo) UpdateRef(ctx context.Context, ref string, h object.Hash, who object.Person, description string) error {
	if err := object.ValidateHash(h); err != nil {
		return err
	}
	old, err := r.GetRef(ctx, ref)
	if err != nil {
		return fmt.Errorf("update ref %q: %w", ref, err)
	}
	entry := ReflogEntry{Previous: old, New: h, Person: who, Description: description}
	if err := r.AppendReflog(ctx, ref, entry); err != nil {
		return fmt.Errorf("update ref %q: %w", ref, err)
	}
	if err := r.SetRef(ctx, ref, h); err != nil {
		return &RefUpdateError{Ref: ref, OldHash: old, NewHash: h, Err: err}
	}
	r.log.WithField("ref", ref).WithField("old", old.Short()).WithField("new", h.Short()).Debug("updated ref")
	return nil
}
