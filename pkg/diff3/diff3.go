// Package diff3 merges two line-oriented edits of a common base.
package diff3

import (
	"bytes"
	"strings"
)

// HunkType classifies a region of merge output.
type HunkType int

const (
	HunkClean HunkType = iota
	HunkConflict
)

// Hunk is one region of the merge. Base, Ours and Theirs hold the region's
// lines on each input; Merged holds the output, which for a conflict is the
// marked-up text.
type Hunk struct {
	Type                       HunkType
	Base, Ours, Theirs, Merged []byte
}

// Result is the outcome of a three-way merge.
type Result struct {
	Merged       []byte
	HasConflicts bool
	Hunks        []Hunk
}

// Conflicts returns the number of conflicting hunks.
func (r Result) Conflicts() int {
	n := 0
	for _, h := range r.Hunks {
		if h.Type == HunkConflict {
			n++
		}
	}
	return n
}

// Labels name the sides in conflict markers. When Base is set the base text
// is included between ||||||| and ======= lines.
type Labels struct {
	Ours, Base, Theirs string
}

// DefaultLabels are used by Merge.
var DefaultLabels = Labels{Ours: "ours", Theirs: "theirs"}

// Merge merges ours and theirs against base with DefaultLabels.
func Merge(base, ours, theirs []byte) Result {
	return MergeLabeled(base, ours, theirs, DefaultLabels)
}

// MergeLabeled merges ours and theirs against base. Regions changed on one
// side take that side; regions changed identically on both take the change;
// regions changed differently are emitted between conflict markers.
//
// Output lines always end in a newline.
func MergeLabeled(base, ours, theirs []byte, labels Labels) Result {
	baseLines := SplitLines(base)
	m := merger{
		base:   baseLines,
		ours:   chunks(baseLines, SplitLines(ours)),
		theirs: chunks(baseLines, SplitLines(theirs)),
		labels: labels,
	}
	return m.run()
}

// IsBinary reports whether data looks like binary content: a NUL byte in
// the first 8000 bytes.
func IsBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// SplitLines splits data into lines without their terminators. A final
// newline does not start an empty line.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// chunk covers base lines [start, end) and holds one side's replacement for
// them. Unchanged chunks are always a single base line; changed chunks are
// a maximal run of deletes and inserts, possibly zero-width.
type chunk struct {
	start, end int
	lines      []string
	changed    bool
}

func chunks(base, side []string) []chunk {
	edits := Diff(base, side)
	var out []chunk
	pos := 0
	for i := 0; i < len(edits); {
		if edits[i].Kind == Equal {
			out = append(out, chunk{start: pos, end: pos + 1, lines: []string{edits[i].Line}})
			pos++
			i++
			continue
		}
		c := chunk{start: pos, changed: true}
		for ; i < len(edits) && edits[i].Kind != Equal; i++ {
			if edits[i].Kind == Delete {
				pos++
			} else {
				c.lines = append(c.lines, edits[i].Line)
			}
		}
		c.end = pos
		out = append(out, c)
	}
	return out
}

type merger struct {
	base         []string
	ours, theirs []chunk
	labels       Labels

	oi, ti int
	out    bytes.Buffer
	res    Result
}

// run consumes both chunk lists region by region. Both lists tile the base,
// so at the top of each iteration the next chunk of each side starts at the
// same base line.
func (m *merger) run() Result {
	for m.oi < len(m.ours) || m.ti < len(m.theirs) {
		if m.oi < len(m.ours) && m.ti < len(m.theirs) &&
			!m.ours[m.oi].changed && !m.theirs[m.ti].changed {
			c := m.ours[m.oi]
			m.clean(m.base[c.start:c.end], c.lines)
			m.oi++
			m.ti++
			continue
		}
		m.region()
	}
	m.res.Merged = m.out.Bytes()
	return m.res
}

// region gathers every chunk on either side that overlaps the span started
// by the next chunks, growing the span until neither side has a chunk that
// starts inside it, then resolves the span.
func (m *merger) region() {
	start := len(m.base)
	if m.oi < len(m.ours) {
		start = m.ours[m.oi].start
	}
	if m.ti < len(m.theirs) && m.theirs[m.ti].start < start {
		start = m.theirs[m.ti].start
	}

	end := start
	var ours, theirs []chunk
	take := func(list []chunk, i *int, into *[]chunk, first bool) bool {
		grew := false
		for *i < len(list) && (list[*i].start < end || (first && list[*i].start == start && len(*into) == 0)) {
			c := list[*i]
			*into = append(*into, c)
			end = max(end, c.end)
			*i++
			grew = true
		}
		return grew
	}
	take(m.ours, &m.oi, &ours, true)
	take(m.theirs, &m.ti, &theirs, true)
	for take(m.ours, &m.oi, &ours, false) || take(m.theirs, &m.ti, &theirs, false) {
	}

	base := m.base[start:end]
	o, oChanged := assemble(ours, base)
	t, tChanged := assemble(theirs, base)
	switch {
	case !tChanged:
		m.clean(base, o)
	case !oChanged:
		m.clean(base, t)
	case equalLines(o, t):
		m.clean(base, o)
	default:
		m.conflict(base, o, t)
	}
}

// assemble returns a side's text over a region. A side with no chunks in
// the region left it as base.
func assemble(cs []chunk, base []string) ([]string, bool) {
	if len(cs) == 0 {
		return base, false
	}
	var lines []string
	changed := false
	for _, c := range cs {
		lines = append(lines, c.lines...)
		changed = changed || c.changed
	}
	return lines, changed
}

func (m *merger) clean(base, merged []string) {
	writeLines(&m.out, merged)
	m.res.Hunks = append(m.res.Hunks, Hunk{Type: HunkClean, Base: joinLines(base), Merged: joinLines(merged)})
}

func (m *merger) conflict(base, ours, theirs []string) {
	var b bytes.Buffer
	marker(&b, "<<<<<<<", m.labels.Ours)
	writeLines(&b, ours)
	if m.labels.Base != "" {
		marker(&b, "|||||||", m.labels.Base)
		writeLines(&b, base)
	}
	b.WriteString("=======\n")
	writeLines(&b, theirs)
	marker(&b, ">>>>>>>", m.labels.Theirs)

	m.out.Write(b.Bytes())
	m.res.HasConflicts = true
	m.res.Hunks = append(m.res.Hunks, Hunk{
		Type:   HunkConflict,
		Base:   joinLines(base),
		Ours:   joinLines(ours),
		Theirs: joinLines(theirs),
		Merged: b.Bytes(),
	})
}

func marker(b *bytes.Buffer, m, label string) {
	b.WriteString(m)
	if label != "" {
		b.WriteByte(' ')
		b.WriteString(label)
	}
	b.WriteByte('\n')
}

func writeLines(b *bytes.Buffer, lines []string) {
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var b bytes.Buffer
	writeLines(&b, lines)
	return b.Bytes()
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
