package diff3

// EditKind classifies one line of an edit script.
type EditKind int

const (
	Equal  EditKind = iota // present in both inputs
	Insert                 // present only in the second input
	Delete                 // present only in the first input
)

func (k EditKind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Edit is one line of an edit script.
type Edit struct {
	Kind EditKind
	Line string
}

// Diff returns a shortest edit script turning a into b, computed with the
// Myers algorithm over whole lines. Where a line is both deleted and
// inserted at the same position the delete comes first.
//
// It runs in O((N+M)·D) time and keeps one V array per edit distance for
// the backtrack.
func Diff(a, b []string) []Edit {
	n, m := len(a), len(b)
	switch {
	case n == 0 && m == 0:
		return nil
	case n == 0:
		return uniform(Insert, b)
	case m == 0:
		return uniform(Delete, a)
	}

	offset := n + m
	v := make([]int, 2*offset+1)
	var trace [][]int
	for d := 0; d <= offset; d++ {
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				trace = append(trace, append([]int(nil), v...))
				return backtrack(trace, a, b)
			}
		}
		trace = append(trace, append([]int(nil), v...))
	}
	return nil
}

func uniform(kind EditKind, lines []string) []Edit {
	out := make([]Edit, len(lines))
	for i, l := range lines {
		out[i] = Edit{Kind: kind, Line: l}
	}
	return out
}

// backtrack walks trace from the final edit distance back to zero,
// emitting the script in reverse, then flips it.
func backtrack(trace [][]int, a, b []string) []Edit {
	offset := len(a) + len(b)
	x, y := len(a), len(b)
	var out []Edit

	for d := len(trace) - 1; d > 0; d-- {
		prev := trace[d-1]
		k := x - y
		var pk int
		if k == -d || (k != d && prev[offset+k-1] < prev[offset+k+1]) {
			pk = k + 1
		} else {
			pk = k - 1
		}
		px := prev[offset+pk]
		py := px - pk

		for x > px && y > py {
			x--
			y--
			out = append(out, Edit{Kind: Equal, Line: a[x]})
		}
		if pk == k-1 {
			x--
			out = append(out, Edit{Kind: Delete, Line: a[x]})
		} else {
			y--
			out = append(out, Edit{Kind: Insert, Line: b[y]})
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		out = append(out, Edit{Kind: Equal, Line: a[x]})
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
