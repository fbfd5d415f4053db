package diff

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/braid/pkg/repo"
	"github.com/odvcencio/braid/pkg/storage/mem"
	"github.com/odvcencio/braid/pkg/worktree"
)

func newTree(t *testing.T, r *repo.Repo, files map[string]string) *worktree.FS {
	t.Helper()
	fs := worktree.New(r)
	for p, data := range files {
		if err := fs.Write(context.Background(), p, []byte(data)); err != nil {
			t.Fatalf("Write(%s): %v", p, err)
		}
	}
	return fs
}

type change struct {
	Type ChangeType
	Path string
}

func summarize(changes []Change) []change {
	out := make([]change, len(changes))
	for i, c := range changes {
		out[i] = change{c.Type, c.Path}
	}
	return out
}

func TestTrees(t *testing.T) {
	ctx := context.Background()
	r, err := repo.Init(ctx, mem.New())
	if err != nil {
		t.Fatal(err)
	}
	before := newTree(t, r, map[string]string{
		"a.txt":     "a\n",
		"dir/b.txt": "b\n",
		"dir/c.txt": "c\n",
		"f":         "file\n",
		"gone.txt":  "gone\n",
	})
	after := newTree(t, r, map[string]string{
		"a.txt":     "A\n",
		"dir/b.txt": "b\n",
		"f/x":       "x\n",
		"new.txt":   "new\n",
	})

	changes, err := Trees(ctx, before, after)
	if err != nil {
		t.Fatal(err)
	}
	want := []change{
		{Modified, "a.txt"},
		{Removed, "dir/c.txt"},
		{Removed, "f"},
		{Added, "f/x"},
		{Removed, "gone.txt"},
		{Added, "new.txt"},
	}
	if diff := cmp.Diff(want, summarize(changes)); diff != "" {
		t.Fatalf("Trees (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	FormatSummary(&buf, changes[:2])
	if got := buf.String(); got != "M a.txt\nD dir/c.txt\n" {
		t.Fatalf("FormatSummary = %q", got)
	}
}

func TestTreesFromEmpty(t *testing.T) {
	ctx := context.Background()
	r, err := repo.Init(ctx, mem.New())
	if err != nil {
		t.Fatal(err)
	}
	after := newTree(t, r, map[string]string{"x/y": "y\n", "z": "z\n"})
	changes, err := Trees(ctx, nil, after)
	if err != nil {
		t.Fatal(err)
	}
	want := []change{{Added, "x/y"}, {Added, "z"}}
	if diff := cmp.Diff(want, summarize(changes)); diff != "" {
		t.Fatalf("Trees (-want +got):\n%s", diff)
	}

	changes, err = Trees(ctx, after, after)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 0 {
		t.Fatalf("Trees(same, same) = %v, want none", changes)
	}
}

func TestUnified(t *testing.T) {
	const base = "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\n"
	tests := []struct {
		name          string
		before, after string
		context       int
		want          string
	}{
		{
			name:    "single change",
			before:  base,
			after:   "a\nb\nc\nd\nE\nf\ng\nh\ni\nj\n",
			context: 1,
			want:    "--- a/f.txt\n+++ b/f.txt\n@@ -4,3 +4,3 @@\n d\n-e\n+E\n f\n",
		},
		{
			name:    "two hunks",
			before:  base,
			after:   "a\nB\nc\nd\ne\nf\ng\nh\nI\nj\n",
			context: 1,
			want: "--- a/f.txt\n+++ b/f.txt\n" +
				"@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n" +
				"@@ -8,3 +8,3 @@\n h\n-i\n+I\n j\n",
		},
		{
			name:    "new file",
			after:   "x\n",
			context: DefaultContext,
			want:    "--- a/f.txt\n+++ b/f.txt\n@@ -0,0 +1 @@\n+x\n",
		},
		{
			name:    "unchanged",
			before:  base,
			after:   base,
			context: DefaultContext,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Unified(&buf, "f.txt", []byte(tt.before), []byte(tt.after), tt.context)
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Fatalf("Unified (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnifiedBinary(t *testing.T) {
	var buf bytes.Buffer
	Unified(&buf, "img", []byte("a\x00b"), []byte("a\x00c"), DefaultContext)
	if got, want := buf.String(), "Binary files a/img and b/img differ\n"; got != want {
		t.Fatalf("Unified = %q, want %q", got, want)
	}
}
