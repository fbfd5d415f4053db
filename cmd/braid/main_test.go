package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// writeClientConfig writes a configuration for client id in dir/id, sharing
// a disk store at dir/shared, and returns its path.
func writeClientConfig(t *testing.T, dir, id, extra string) string {
	t.Helper()
	path := filepath.Join(dir, id, "braid.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	body := fmt.Sprintf(configTemplate, id, id, id+"@example.com", filepath.Join(dir, "shared")) + extra
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, config, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", config}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("braid %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestTwoClientsConverge(t *testing.T) {
	dir := t.TempDir()
	alice := writeClientConfig(t, dir, "alice", "")
	bob := writeClientConfig(t, dir, "bob", "")

	run(t, alice, "hello\n", "put", "greeting.txt")
	run(t, alice, "", "sync")
	run(t, bob, "", "sync")
	if got := run(t, bob, "", "get", "greeting.txt"); got != "hello\n" {
		t.Fatalf("bob greeting.txt = %q, want %q", got, "hello\n")
	}

	run(t, alice, "from alice\n", "put", "a.txt")
	run(t, bob, "from bob\n", "put", "dir/b.txt")
	run(t, alice, "", "sync")
	run(t, bob, "", "sync")
	run(t, alice, "", "sync")

	for _, config := range []string{alice, bob} {
		if got := run(t, config, "", "get", "a.txt"); got != "from alice\n" {
			t.Fatalf("%s a.txt = %q", config, got)
		}
		if got := run(t, config, "", "get", "dir/b.txt"); got != "from bob\n" {
			t.Fatalf("%s dir/b.txt = %q", config, got)
		}
	}

	aliceHead := strings.Fields(run(t, alice, "", "log", "--oneline", "-n", "1"))[0]
	bobHead := strings.Fields(run(t, bob, "", "log", "--oneline", "-n", "1"))[0]
	if aliceHead != bobHead {
		t.Fatalf("heads differ after sync: alice %s, bob %s", aliceHead, bobHead)
	}
}

func TestHeadsMatchesWholeBranchName(t *testing.T) {
	dir := t.TempDir()
	alice := writeClientConfig(t, dir, "alice", "")
	bob := writeClientConfig(t, dir, "bob", "")

	t.Setenv("BRAID_BRANCH", "feature/main")
	run(t, alice, "a\n", "put", "a.txt")
	run(t, alice, "", "sync")
	run(t, bob, "", "sync")
	if got := run(t, bob, "", "heads"); !strings.Contains(got, "refs/remotes/alice/feature/main") {
		t.Fatalf("heads on feature/main = %q", got)
	}

	t.Setenv("BRAID_BRANCH", "main")
	got := run(t, bob, "", "heads")
	if strings.Contains(got, "refs/remotes/alice/") {
		t.Fatalf("heads on main lists another branch:\n%s", got)
	}
	if !strings.Contains(got, "refs/heads/main") {
		t.Fatalf("heads on main = %q", got)
	}
}

func TestSyncWithNothingCommitted(t *testing.T) {
	dir := t.TempDir()
	alice := writeClientConfig(t, dir, "alice", "")
	out := run(t, alice, "", "sync")
	if !strings.Contains(out, "nothing committed yet") {
		t.Fatalf("sync output = %q", out)
	}
}

func TestPutDeleteAndList(t *testing.T) {
	dir := t.TempDir()
	alice := writeClientConfig(t, dir, "alice", "")
	run(t, alice, "x\n", "put", "keep/x.txt")
	run(t, alice, "y\n", "put", "--executable", "drop/y.sh")
	run(t, alice, "", "put", "--delete", "drop")

	got := run(t, alice, "", "ls", "-R")
	if !strings.Contains(got, "keep/x.txt") || strings.Contains(got, "drop") {
		t.Fatalf("ls -R = %q", got)
	}
	if got := run(t, alice, "", "reflog", "-n", "1"); !strings.Contains(got, "commit: Remove drop") {
		t.Fatalf("reflog = %q", got)
	}
}

func TestConflictingEditsReported(t *testing.T) {
	dir := t.TempDir()
	alice := writeClientConfig(t, dir, "alice", "")
	bob := writeClientConfig(t, dir, "bob", "")

	run(t, alice, "line\n", "put", "f.txt")
	run(t, alice, "", "sync")
	run(t, bob, "", "sync")
	run(t, alice, "alice\n", "put", "f.txt")
	run(t, bob, "bob\n", "put", "f.txt")
	run(t, bob, "", "sync")

	out := run(t, alice, "", "sync")
	if !strings.Contains(out, "conflict: f.txt") {
		t.Fatalf("sync output = %q, want a conflict on f.txt", out)
	}
	got := run(t, alice, "", "get", "f.txt")
	if !strings.Contains(got, "<<<<<<<") || !strings.Contains(got, "alice\n") || !strings.Contains(got, "bob\n") {
		t.Fatalf("f.txt = %q, want conflict markers", got)
	}
}

func TestDiffHeadCommit(t *testing.T) {
	alice := writeClientConfig(t, t.TempDir(), "alice", "")
	run(t, alice, "one\ntwo\n", "put", "notes.txt")
	if got := run(t, alice, "", "diff", "--name-status"); got != "A notes.txt\n" {
		t.Fatalf("diff of first commit = %q", got)
	}
	run(t, alice, "one\nTWO\n", "put", "notes.txt")
	got := run(t, alice, "", "diff")
	if !strings.Contains(got, "-two\n+TWO\n") {
		t.Fatalf("diff = %q", got)
	}
}
