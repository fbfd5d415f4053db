package diff3

import (
	"fmt"
	"strings"
	"testing"
)

func numberedLines(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("line-%04d", i)
	}
	return out
}

func withLine(lines []string, i int, s string) []byte {
	c := append([]string(nil), lines...)
	c[i] = s
	return []byte(strings.Join(c, "\n") + "\n")
}

func benchmarkMerge(b *testing.B, n int) {
	lines := numberedLines(n)
	base := []byte(strings.Join(lines, "\n") + "\n")
	ours := withLine(lines, n/20, "ours")
	theirs := withLine(lines, n-n/20, "theirs")

	b.SetBytes(int64(len(base)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if Merge(base, ours, theirs).HasConflicts {
			b.Fatal("unexpected conflict")
		}
	}
}

func BenchmarkMergeSmall(b *testing.B) { benchmarkMerge(b, 50) }

func BenchmarkMergeLarge(b *testing.B) { benchmarkMerge(b, 1000) }

func BenchmarkMergeConflict(b *testing.B) {
	base := []byte("a\nb\nc\nd\n")
	ours := []byte("a\nb ours\nc\nd\n")
	theirs := []byte("a\nb theirs\nc\nd\n")
	for i := 0; i < b.N; i++ {
		if !Merge(base, ours, theirs).HasConflicts {
			b.Fatal("expected conflict")
		}
	}
}

func BenchmarkDiff(b *testing.B) {
	a := numberedLines(500)
	c := append([]string(nil), a...)
	c[250] = "modified"

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if len(Diff(a, c)) == 0 {
			b.Fatal("empty diff")
		}
	}
}
