package diff

import (
	"fmt"
	"io"

	"github.com/odvcencio/braid/pkg/diff3"
)

// DefaultContext is the number of unchanged lines shown around each hunk.
const DefaultContext = 3

// FormatSummary writes one line per change:
//
//	A path
//	M path
//	D path
func FormatSummary(w io.Writer, changes []Change) {
	for _, c := range changes {
		fmt.Fprintf(w, "%s %s\n", c.Type, c.Path)
	}
}

// Unified writes a unified diff of one file's before and after contents.
// Identical contents produce no output.
func Unified(w io.Writer, path string, before, after []byte, context int) {
	if diff3.IsBinary(before) || diff3.IsBinary(after) {
		if string(before) != string(after) {
			fmt.Fprintf(w, "Binary files a/%s and b/%s differ\n", path, path)
		}
		return
	}
	edits := diff3.Diff(diff3.SplitLines(before), diff3.SplitLines(after))
	hunks := groupHunks(edits, context)
	if len(hunks) == 0 {
		return
	}

	fmt.Fprintf(w, "--- a/%s\n+++ b/%s\n", path, path)
	for _, h := range hunks {
		fmt.Fprintf(w, "@@ -%s +%s @@\n", span(h.oldStart, h.oldLines), span(h.newStart, h.newLines))
		for _, e := range edits[h.from:h.to] {
			switch e.Kind {
			case diff3.Equal:
				fmt.Fprintf(w, " %s\n", e.Line)
			case diff3.Delete:
				fmt.Fprintf(w, "-%s\n", e.Line)
			case diff3.Insert:
				fmt.Fprintf(w, "+%s\n", e.Line)
			}
		}
	}
}

type hunk struct {
	from, to           int // edit indexes
	oldStart, oldLines int
	newStart, newLines int
}

// groupHunks gathers changed edits into hunks, merging changes separated by
// at most 2*context unchanged lines.
func groupHunks(edits []diff3.Edit, context int) []hunk {
	var changed []int
	for i, e := range edits {
		if e.Kind != diff3.Equal {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	var hunks []hunk
	start := 0
	for i := 1; i <= len(changed); i++ {
		if i < len(changed) && changed[i]-changed[i-1]-1 <= 2*context {
			continue
		}
		from := max(0, changed[start]-context)
		to := min(len(edits), changed[i-1]+context+1)
		hunks = append(hunks, newHunk(edits, from, to))
		start = i
	}
	return hunks
}

func newHunk(edits []diff3.Edit, from, to int) hunk {
	h := hunk{from: from, to: to}
	for _, e := range edits[:from] {
		if e.Kind != diff3.Insert {
			h.oldStart++
		}
		if e.Kind != diff3.Delete {
			h.newStart++
		}
	}
	for _, e := range edits[from:to] {
		if e.Kind != diff3.Insert {
			h.oldLines++
		}
		if e.Kind != diff3.Delete {
			h.newLines++
		}
	}
	if h.oldLines > 0 {
		h.oldStart++
	}
	if h.newLines > 0 {
		h.newStart++
	}
	return h
}

func span(start, lines int) string {
	if lines == 1 {
		return fmt.Sprint(start)
	}
	return fmt.Sprintf("%d,%d", start, lines)
}
