package object

import (
	"sort"
	"strings"
)

// Hash is a 40-character lowercase hex-encoded SHA-1 digest.
type Hash string

// ZeroHash is written in place of an absent hash, e.g. the previous value of a
// newly created ref in its reflog.
const ZeroHash Hash = "0000000000000000000000000000000000000000"

// EmptyTreeHash is the hash of a tree with no entries.
const EmptyTreeHash Hash = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Short returns the first seven characters of h.
func (h Hash) Short() string {
	if len(h) <= 7 {
		return string(h)
	}
	return string(h[:7])
}

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

// Mode is a tree entry mode. It is encoded in octal without leading zeros.
type Mode uint32

const (
	ModeDir        Mode = 0o40000
	ModeFile       Mode = 0o100644
	ModeExecutable Mode = 0o100755
	ModeSymlink    Mode = 0o120000
	ModeSubmodule  Mode = 0o160000
)

// IsDir reports whether m refers to a subtree.
func (m Mode) IsDir() bool { return m == ModeDir }

// IsSubmodule reports whether m refers to a commit in another repository.
// Such entries are never followed.
func (m Mode) IsSubmodule() bool { return m == ModeSubmodule }

// Object is one of *Blob, *Tree, *Commit or *Tag.
type Object interface {
	Type() ObjectType
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

func (*Blob) Type() ObjectType { return TypeBlob }

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Name string
	Mode Mode
	Hash Hash
}

// Tree holds a list of entries kept in git order (see Sort).
type Tree struct {
	Entries []TreeEntry
}

func (*Tree) Type() ObjectType { return TypeTree }

// Lookup returns the entry called name.
func (t *Tree) Lookup(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Sort orders entries the way git does: bytewise by name, with directory
// names compared as if they ended in "/".
func (t *Tree) Sort() {
	sort.SliceStable(t.Entries, func(i, j int) bool {
		return treeEntryLess(t.Entries[i], t.Entries[j])
	})
}

func treeEntryLess(a, b TreeEntry) bool {
	return treeSortKey(a) < treeSortKey(b)
}

func treeSortKey(e TreeEntry) string {
	if e.Mode.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// Commit points to a tree and zero or more parent commits.
type Commit struct {
	Tree      Hash
	Parents   []Hash
	Author    Person
	Committer Person
	// ExtraHeaders holds headers other than tree/parent/author/committer/gpgsig
	// in their original order, so decoded commits re-encode identically.
	ExtraHeaders []Header
	Signature    string
	Message      string
}

func (*Commit) Type() ObjectType { return TypeCommit }

// Summary returns the first line of the message.
func (c *Commit) Summary() string {
	line, _, _ := strings.Cut(strings.TrimLeft(c.Message, "\n"), "\n")
	return strings.TrimSpace(line)
}

// Header is a commit header line. Value may span lines.
type Header struct {
	Key   string
	Value string
}

// Tag is an annotated tag.
type Tag struct {
	Object     Hash
	ObjectType ObjectType
	Name       string
	Tagger     *Person
	Message    string
}

func (*Tag) Type() ObjectType { return TypeTag }
