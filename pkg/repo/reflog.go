package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/storage"
)

// ReflogEntry records one move of a ref.
type ReflogEntry struct {
	Previous    object.Hash // "" when the ref was unset
	New         object.Hash
	Person      object.Person
	Description string
}

func reflogPath(ref string) string {
	return logsDir + "/" + ref
}

// encodeReflogLine writes "<old> <new> <person>\t<description>\n" with the
// zero hash standing in for an unset previous value.
func encodeReflogLine(e ReflogEntry) string {
	old := e.Previous
	if old == "" {
		old = object.ZeroHash
	}
	desc := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, e.Description)
	return fmt.Sprintf("%s %s %s\t%s\n", old, e.New, e.Person, desc)
}

func parseReflogLine(line string) (ReflogEntry, error) {
	head, desc, _ := strings.Cut(line, "\t")
	if len(head) < 2*object.HashLength+2 || head[object.HashLength] != ' ' || head[2*object.HashLength+1] != ' ' {
		return ReflogEntry{}, fmt.Errorf("malformed reflog line %q", line)
	}
	old := object.Hash(head[:object.HashLength])
	newHash := object.Hash(head[object.HashLength+1 : 2*object.HashLength+1])
	if err := object.ValidateHash(old); err != nil {
		return ReflogEntry{}, err
	}
	if err := object.ValidateHash(newHash); err != nil {
		return ReflogEntry{}, err
	}
	who, err := object.ParsePerson(head[2*object.HashLength+2:])
	if err != nil {
		return ReflogEntry{}, err
	}
	if old == object.ZeroHash {
		old = ""
	}
	return ReflogEntry{Previous: old, New: newHash, Person: who, Description: desc}, nil
}

// GetReflog returns the entries of ref's reflog, oldest first. A ref with no
// reflog has no entries.
func (r *Repo) GetReflog(ctx context.Context, ref string) ([]ReflogEntry, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}
	data, err := r.backend.Read(ctx, reflogPath(ref))
	if storage.IsNotFound(err) {
		return nil, nil
	}
	if cerr := refConflict(ref, err); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		return nil, fmt.Errorf("read reflog %q: %w", ref, err)
	}

	var entries []ReflogEntry
	for i, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		e, err := parseReflogLine(line)
		if err != nil {
			return nil, &object.InvalidDataError{What: fmt.Sprintf("reflog %s line %d", ref, i+1), Err: err}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SetReflog replaces ref's whole reflog. It is not safe against concurrent
// writers of the same ref.
func (r *Repo) SetReflog(ctx context.Context, ref string, entries []ReflogEntry) error {
	if err := ValidateRef(ref); err != nil {
		return err
	}
	var b strings.Builder
	for _, e := range entries {
		if e.Previous != "" {
			if err := object.ValidateHash(e.Previous); err != nil {
				return err
			}
		}
		if err := object.ValidateHash(e.New); err != nil {
			return err
		}
		b.WriteString(encodeReflogLine(e))
	}
	err := r.backend.Write(ctx, reflogPath(ref), []byte(b.String()))
	if cerr := refConflict(ref, err); cerr != nil {
		return cerr
	}
	if err != nil {
		return fmt.Errorf("write reflog %q: %w", ref, err)
	}
	return nil
}

// AppendReflog adds e to the end of ref's reflog.
func (r *Repo) AppendReflog(ctx context.Context, ref string, e ReflogEntry) error {
	entries, err := r.GetReflog(ctx, ref)
	if err != nil {
		return err
	}
	return r.SetReflog(ctx, ref, append(entries, e))
}
