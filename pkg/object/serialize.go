package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Encode serializes obj to its full stored form "type len\0body".
func Encode(obj Object) []byte {
	body := EncodeBody(obj)
	header := fmt.Sprintf("%s %d\x00", obj.Type(), len(body))
	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header...)
	return append(out, body...)
}

// EncodeBody serializes obj without the envelope.
func EncodeBody(obj Object) []byte {
	switch o := obj.(type) {
	case *Blob:
		return MarshalBlob(o)
	case *Tree:
		return MarshalTree(o)
	case *Commit:
		return MarshalCommit(o)
	case *Tag:
		return MarshalTag(o)
	default:
		panic(fmt.Sprintf("object: cannot encode %T", obj))
	}
}

// Decode parses a full stored object, rejecting a size that disagrees with
// the envelope.
func Decode(raw []byte) (Object, error) {
	objType, body, err := SplitEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return DecodeBody(objType, body)
}

// SplitEnvelope validates the "type len\0" header and returns the body.
func SplitEnvelope(raw []byte) (ObjectType, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, invalidf("object", "no NUL after header")
	}
	header := string(raw[:nul])
	body := raw[nul+1:]

	typ, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, invalidf("object", "invalid header %q", header)
	}
	objType, err := ParseObjectType(typ)
	if err != nil {
		return "", nil, err
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil || length < 0 {
		return "", nil, invalidf("object", "invalid length %q", lenStr)
	}
	if len(body) != length {
		return "", nil, invalidf("object", "length mismatch (header=%d, actual=%d)", length, len(body))
	}
	return objType, body, nil
}

// ParseObjectType validates a type name.
func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(s); t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return t, nil
	}
	return "", invalidf("object", "unknown object type %q", s)
}

// DecodeBody parses a body of the given type.
func DecodeBody(objType ObjectType, body []byte) (Object, error) {
	switch objType {
	case TypeBlob:
		return UnmarshalBlob(body), nil
	case TypeTree:
		return UnmarshalTree(body)
	case TypeCommit:
		return UnmarshalCommit(body)
	case TypeTag:
		return UnmarshalTag(body)
	}
	return nil, invalidf("object", "unknown object type %q", objType)
}

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) *Blob {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree. Entries are written in git order
// regardless of their order in tr:
//
//	<octal mode> <name>\0<20-byte hash>
//
// Hashes are assumed valid; ValidateTree reports bad entries.
func MarshalTree(tr *Tree) []byte {
	sorted := &Tree{Entries: make([]TreeEntry, len(tr.Entries))}
	copy(sorted.Entries, tr.Entries)
	sorted.Sort()

	var buf bytes.Buffer
	for _, e := range sorted.Entries {
		buf.WriteString(strconv.FormatUint(uint64(e.Mode), 8))
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		raw, err := hashToBytes(e.Hash)
		if err != nil {
			raw = make([]byte, 20)
		}
		buf.Write(raw)
	}
	return buf.Bytes()
}

// ValidateTree checks entry names, modes and hashes.
func ValidateTree(tr *Tree) error {
	seen := make(map[string]struct{}, len(tr.Entries))
	for _, e := range tr.Entries {
		if err := ValidateEntryName(e.Name); err != nil {
			return err
		}
		if _, dup := seen[e.Name]; dup {
			return &ValidationError{Kind: "tree entry", Value: e.Name, Reason: "duplicate name"}
		}
		seen[e.Name] = struct{}{}
		if e.Mode == 0 {
			return &ValidationError{Kind: "tree entry", Value: e.Name, Reason: "zero mode"}
		}
		if err := ValidateHash(e.Hash); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEntryName rejects names that cannot appear in a tree.
func ValidateEntryName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return &ValidationError{Kind: "tree entry", Value: name, Reason: "reserved name"}
	case strings.ContainsAny(name, "/\x00"):
		return &ValidationError{Kind: "tree entry", Value: name, Reason: "contains '/' or NUL"}
	}
	return nil
}

// UnmarshalTree parses a Tree. Entries must already be in git order so that
// re-encoding reproduces the same bytes.
func UnmarshalTree(data []byte) (*Tree, error) {
	tr := &Tree{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, invalidf("tree", "entry without mode separator")
		}
		modeStr := string(data[:sp])
		if modeStr == "" || modeStr[0] == '0' {
			return nil, invalidf("tree", "non-canonical mode %q", modeStr)
		}
		mode, err := strconv.ParseUint(modeStr, 8, 32)
		if err != nil {
			return nil, invalidf("tree", "bad mode %q", modeStr)
		}
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, invalidf("tree", "entry without name terminator")
		}
		name := string(data[:nul])
		data = data[nul+1:]
		if len(data) < 20 {
			return nil, invalidf("tree", "truncated hash for %q", name)
		}
		entry := TreeEntry{Name: name, Mode: Mode(mode), Hash: hashFromBytes(data[:20])}
		data = data[20:]

		if err := ValidateEntryName(name); err != nil {
			return nil, &InvalidDataError{What: "tree", Err: err}
		}
		if n := len(tr.Entries); n > 0 && !treeEntryLess(tr.Entries[n-1], entry) {
			return nil, invalidf("tree", "entry %q out of order", name)
		}
		tr.Entries = append(tr.Entries, entry)
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit:
//
//	tree H
//	parent H     (zero or more)
//	author P
//	committer P
//	<extra headers>
//	gpgsig S     (optional)
//
//	message
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "committer %s\n", c.Committer)
	for _, h := range c.ExtraHeaders {
		writeHeader(&buf, h.Key, h.Value)
	}
	if c.Signature != "" {
		writeHeader(&buf, "gpgsig", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteByte(' ')
	buf.WriteString(strings.ReplaceAll(value, "\n", "\n "))
	buf.WriteByte('\n')
}

// UnmarshalCommit parses a Commit from its serialized form.
func UnmarshalCommit(data []byte) (*Commit, error) {
	headers, message, err := splitHeaders("commit", data)
	if err != nil {
		return nil, err
	}

	c := &Commit{Message: message}
	var sawTree, sawAuthor, sawCommitter bool
	for i, h := range headers {
		switch h.Key {
		case "tree":
			if sawTree || i != 0 {
				return nil, invalidf("commit", "unexpected tree header")
			}
			if err := ValidateHash(Hash(h.Value)); err != nil {
				return nil, &InvalidDataError{What: "commit", Err: err}
			}
			c.Tree = Hash(h.Value)
			sawTree = true
		case "parent":
			if sawAuthor {
				return nil, invalidf("commit", "parent after author")
			}
			if err := ValidateHash(Hash(h.Value)); err != nil {
				return nil, &InvalidDataError{What: "commit", Err: err}
			}
			c.Parents = append(c.Parents, Hash(h.Value))
		case "author":
			if sawAuthor {
				return nil, invalidf("commit", "duplicate author")
			}
			if c.Author, err = ParsePerson(h.Value); err != nil {
				return nil, err
			}
			sawAuthor = true
		case "committer":
			if !sawAuthor || sawCommitter {
				return nil, invalidf("commit", "unexpected committer header")
			}
			if c.Committer, err = ParsePerson(h.Value); err != nil {
				return nil, err
			}
			sawCommitter = true
		default:
			if !sawCommitter {
				return nil, invalidf("commit", "header %q before committer", h.Key)
			}
			if h.Key == "gpgsig" && i == len(headers)-1 {
				c.Signature = h.Value
				continue
			}
			c.ExtraHeaders = append(c.ExtraHeaders, h)
		}
	}
	if !sawTree || !sawCommitter {
		return nil, invalidf("commit", "missing tree, author or committer")
	}
	return c, nil
}

// splitHeaders splits "key value\n"* "\n" message. Lines beginning with a
// space continue the previous header's value.
func splitHeaders(what string, data []byte) ([]Header, string, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, "", invalidf(what, "missing header/message separator")
	}
	message := string(data[idx+2:])

	var headers []Header
	for _, line := range strings.Split(string(data[:idx]), "\n") {
		if strings.HasPrefix(line, " ") {
			if len(headers) == 0 {
				return nil, "", invalidf(what, "continuation line without header")
			}
			headers[len(headers)-1].Value += "\n" + line[1:]
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok || key == "" {
			return nil, "", invalidf(what, "malformed header line %q", line)
		}
		headers = append(headers, Header{Key: key, Value: val})
	}
	return headers, message, nil
}

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit. The payload excludes the signature field itself.
func CommitSigningPayload(c *Commit) []byte {
	if c == nil {
		return nil
	}
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}

// ---------------------------------------------------------------------------
// Tag
// ---------------------------------------------------------------------------

// MarshalTag serializes a Tag:
//
//	object H
//	type T
//	tag NAME
//	tagger P     (optional)
//
//	message
func MarshalTag(t *Tag) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Object)
	fmt.Fprintf(&buf, "type %s\n", t.ObjectType)
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	if t.Tagger != nil {
		fmt.Fprintf(&buf, "tagger %s\n", *t.Tagger)
	}
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses a Tag from its serialized form.
func UnmarshalTag(data []byte) (*Tag, error) {
	headers, message, err := splitHeaders("tag", data)
	if err != nil {
		return nil, err
	}
	t := &Tag{Message: message}
	for _, h := range headers {
		switch h.Key {
		case "object":
			if err := ValidateHash(Hash(h.Value)); err != nil {
				return nil, &InvalidDataError{What: "tag", Err: err}
			}
			t.Object = Hash(h.Value)
		case "type":
			if t.ObjectType, err = ParseObjectType(h.Value); err != nil {
				return nil, err
			}
		case "tag":
			t.Name = h.Value
		case "tagger":
			p, err := ParsePerson(h.Value)
			if err != nil {
				return nil, err
			}
			t.Tagger = &p
		default:
			return nil, invalidf("tag", "unknown header key %q", h.Key)
		}
	}
	if t.Object == "" || t.ObjectType == "" {
		return nil, invalidf("tag", "missing object or type header")
	}
	return t, nil
}

// References returns the hashes obj depends on directly. Submodule entries
// point outside the repository and are omitted.
func References(obj Object) []Hash {
	switch o := obj.(type) {
	case *Tree:
		refs := make([]Hash, 0, len(o.Entries))
		for _, e := range o.Entries {
			if e.Mode.IsSubmodule() {
				continue
			}
			refs = append(refs, e.Hash)
		}
		return refs
	case *Commit:
		refs := make([]Hash, 0, 1+len(o.Parents))
		refs = append(refs, o.Tree)
		return append(refs, o.Parents...)
	case *Tag:
		return []Hash{o.Object}
	}
	return nil
}
