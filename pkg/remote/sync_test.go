package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/repo"
	"github.com/odvcencio/braid/pkg/storage"
	"github.com/odvcencio/braid/pkg/storage/mem"
	"github.com/odvcencio/braid/pkg/worktree"
)

var testWhen int64 = 1_700_000_000

func testPerson(name string) object.Person {
	testWhen++
	return object.Person{Name: name, Email: name + "@example.com", When: object.Date{Seconds: testWhen}}
}

func newTestRepo(t *testing.T) (*repo.Repo, storage.Backend) {
	t.Helper()

	backend := mem.New()
	r, err := repo.Init(context.Background(), backend, repo.WithCommitCacheSize(0))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r, backend
}

func objectPath(h object.Hash) string {
	return "objects/" + string(h[:2]) + "/" + string(h[2:])
}

func commitFiles(t *testing.T, r *repo.Repo, files map[string]string, message string, parents ...object.Hash) object.Hash {
	t.Helper()
	ctx := context.Background()

	fs := worktree.New(r)
	for path, data := range files {
		if err := fs.Write(ctx, path, []byte(data)); err != nil {
			t.Fatalf("Write(%s): %v", path, err)
		}
	}
	tree, err := fs.Save(ctx)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	who := testPerson("tester")
	h, err := r.SaveObject(ctx, &object.Commit{Tree: tree, Parents: parents, Author: who, Committer: who, Message: message + "\n"})
	if err != nil {
		t.Fatalf("SaveObject(commit): %v", err)
	}
	return h
}

// storedObjects lists every object hash in backend.
func storedObjects(t *testing.T, backend storage.Backend) []object.Hash {
	t.Helper()
	paths, err := backend.List(context.Background(), "objects", true)
	if err != nil {
		t.Fatalf("List(objects): %v", err)
	}
	out := make([]object.Hash, 0, len(paths))
	for _, p := range paths {
		out = append(out, object.Hash(p[:2]+p[3:]))
	}
	return out
}

// assertConnected checks that every stored object's references are stored,
// except parents of commits listed in shallow.
func assertConnected(t *testing.T, r *repo.Repo, backend storage.Backend, shallow ...object.Hash) {
	t.Helper()
	ctx := context.Background()
	boundary := make(map[object.Hash]bool)
	for _, h := range shallow {
		boundary[h] = true
	}
	for _, h := range storedObjects(t, backend) {
		obj, err := r.LoadObject(ctx, h)
		if err != nil {
			t.Fatalf("LoadObject(%s): %v", h, err)
		}
		for _, ref := range object.References(obj) {
			ok, err := r.HasObject(ctx, ref)
			if err != nil {
				t.Fatalf("HasObject: %v", err)
			}
			if ok || boundary[ref] {
				continue
			}
			t.Fatalf("%s %s references absent %s", obj.Type(), h.Short(), ref.Short())
		}
	}
}

func TestSyncCommitCopiesHistory(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestRepo(t)
	dst, dstBackend := newTestRepo(t)

	c1 := commitFiles(t, src, map[string]string{"a.txt": "one", "dir/b.txt": "two"}, "first")
	c2 := commitFiles(t, src, map[string]string{"a.txt": "one", "dir/b.txt": "three"}, "second", c1)

	stats, err := SyncCommit(ctx, src, dst, c2, StrategyFast)
	if err != nil {
		t.Fatalf("SyncCommit: %v", err)
	}
	if stats.CommitsWritten != 2 || stats.BlobsWritten != 3 || stats.TreesWritten != 4 {
		t.Fatalf("stats = %+v, want 2 commits, 3 blobs, 4 trees", stats)
	}
	assertConnected(t, dst, dstBackend)
	for _, h := range []object.Hash{c1, c2} {
		if ok, _ := dst.HasObject(ctx, h); !ok {
			t.Fatalf("commit %s not copied", h.Short())
		}
	}

	again, err := SyncCommit(ctx, src, dst, c2, StrategyFast)
	if err != nil {
		t.Fatalf("second SyncCommit: %v", err)
	}
	if again.CommitsWritten+again.TreesWritten+again.BlobsWritten != 0 {
		t.Fatalf("second sync wrote objects: %+v", again)
	}
}

type recordingStore struct {
	ObjectStore
	writes    []object.Hash
	failAfter int
}

func (s *recordingStore) SaveRawObject(ctx context.Context, raw []byte) (object.Hash, error) {
	if s.failAfter > 0 && len(s.writes) >= s.failAfter {
		return "", errors.New("injected write failure")
	}
	h, err := s.ObjectStore.SaveRawObject(ctx, raw)
	if err == nil {
		s.writes = append(s.writes, h)
	}
	return h, err
}

func TestSyncCommitWritesParentsFirst(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestRepo(t)
	dst, _ := newTestRepo(t)

	//     base
	//    /  |  \
	//   l   |   r
	//   |   |   |
	//   l2  |   |
	//    \  |  /
	//     merge
	base := commitFiles(t, src, map[string]string{"f": "0"}, "base")
	l := commitFiles(t, src, map[string]string{"f": "l"}, "l", base)
	l2 := commitFiles(t, src, map[string]string{"f": "l2"}, "l2", l)
	r := commitFiles(t, src, map[string]string{"f": "r"}, "r", base)
	merge := commitFiles(t, src, map[string]string{"f": "m"}, "merge", l2, base, r)

	rec := &recordingStore{ObjectStore: dst}
	if _, err := SyncCommit(ctx, src, rec, merge, StrategyFast); err != nil {
		t.Fatalf("SyncCommit: %v", err)
	}
	pos := make(map[object.Hash]int)
	for i, h := range rec.writes {
		if _, dup := pos[h]; dup {
			t.Fatalf("object %s written twice", h.Short())
		}
		pos[h] = i
	}
	edges := [][2]object.Hash{{base, l}, {l, l2}, {base, r}, {l2, merge}, {base, merge}, {r, merge}}
	for _, e := range edges {
		if pos[e[0]] >= pos[e[1]] {
			t.Fatalf("parent %s written at %d, child %s at %d", e[0].Short(), pos[e[0]], e[1].Short(), pos[e[1]])
		}
	}
}

func TestInterruptedSyncLeavesDestinationConnected(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestRepo(t)

	var tip object.Hash
	for i := 0; i < 4; i++ {
		files := map[string]string{"n": fmt.Sprint(i), fmt.Sprintf("d%d/x", i): "x"}
		if tip == "" {
			tip = commitFiles(t, src, files, "c")
		} else {
			tip = commitFiles(t, src, files, "c", tip)
		}
	}

	for failAfter := 1; failAfter < 20; failAfter++ {
		dst, dstBackend := newTestRepo(t)
		rec := &recordingStore{ObjectStore: dst, failAfter: failAfter}
		_, err := SyncCommit(ctx, src, rec, tip, StrategyFast)
		assertConnected(t, dst, dstBackend)
		if err == nil {
			// Resuming after an interruption completes the copy.
			break
		}
		if _, err := SyncCommit(ctx, src, dst, tip, StrategyFast); err != nil {
			t.Fatalf("resume after %d writes: %v", failAfter, err)
		}
		assertConnected(t, dst, dstBackend)
	}
}

func TestShallowTruncation(t *testing.T) {
	ctx := context.Background()
	src, srcBackend := newTestRepo(t)
	c1 := commitFiles(t, src, map[string]string{"f": "1"}, "one")
	c2 := commitFiles(t, src, map[string]string{"f": "2"}, "two", c1)
	c3 := commitFiles(t, src, map[string]string{"f": "3"}, "three", c2)
	if err := srcBackend.Delete(ctx, objectPath(c1)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	dst, dstBackend := newTestRepo(t)
	stats, err := SyncCommit(ctx, src, dst, c3, StrategyFast)
	if err != nil {
		t.Fatalf("shallow SyncCommit: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{c1}, stats.Truncated); diff != "" {
		t.Fatalf("Truncated (-want +got):\n%s", diff)
	}
	assertConnected(t, dst, dstBackend, c1)

	strict, _ := newTestRepo(t)
	_, err = SyncCommit(ctx, src, strict, c3, StrategyVerify)
	if got, ok := object.IsMissing(err); !ok || got != c1 {
		t.Fatalf("strict SyncCommit = %v, want missing %s", err, c1.Short())
	}
	if ok, _ := strict.HasObject(ctx, c3); ok {
		t.Fatal("failed sync wrote the top commit")
	}
}

func TestMissingTopIsFatal(t *testing.T) {
	ctx := context.Background()
	src, srcBackend := newTestRepo(t)
	c1 := commitFiles(t, src, map[string]string{"big": "data"}, "one")
	blob := object.HashObject(object.TypeBlob, []byte("data"))
	if err := srcBackend.Delete(ctx, objectPath(blob)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	dst, _ := newTestRepo(t)
	_, err := SyncCommit(ctx, src, dst, c1, StrategyShallowTop)
	if got, ok := object.IsMissing(err); !ok || got != blob {
		t.Fatalf("SyncCommit = %v, want missing blob", err)
	}
}

func TestShallowTopThenDeepen(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestRepo(t)
	c1 := commitFiles(t, src, map[string]string{"f": "1"}, "one")
	c2 := commitFiles(t, src, map[string]string{"f": "2"}, "two", c1)

	dst, dstBackend := newTestRepo(t)
	if _, err := SyncCommit(ctx, src, dst, c2, StrategyShallowTop); err != nil {
		t.Fatalf("shallow-top: %v", err)
	}
	if ok, _ := dst.HasObject(ctx, c1); ok {
		t.Fatal("shallow-top copied the parent")
	}
	assertConnected(t, dst, dstBackend, c1)

	if _, err := SyncCommit(ctx, src, dst, c2, StrategyFast); err != nil {
		t.Fatalf("fast: %v", err)
	}
	if ok, _ := dst.HasObject(ctx, c1); ok {
		t.Fatal("fast sync walked past a present commit")
	}

	stats, err := SyncCommit(ctx, src, dst, c2, StrategyDeepen)
	if err != nil {
		t.Fatalf("deepen: %v", err)
	}
	if stats.CommitsWritten != 1 {
		t.Fatalf("deepen wrote %d commits, want 1", stats.CommitsWritten)
	}
	assertConnected(t, dst, dstBackend)
}

func TestStrongerStrategiesRepairCorruption(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestRepo(t)
	c1 := commitFiles(t, src, map[string]string{"f": "payload"}, "one")
	blob := object.HashObject(object.TypeBlob, []byte("payload"))

	for _, strategy := range []Strategy{StrategyVerify, StrategyRepair} {
		dst, dstBackend := newTestRepo(t)
		if _, err := SyncCommit(ctx, src, dst, c1, StrategyFast); err != nil {
			t.Fatalf("SyncCommit: %v", err)
		}
		if err := dstBackend.Write(ctx, objectPath(blob), []byte("corrupt")); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if _, err := SyncCommit(ctx, src, dst, c1, StrategyFast); err != nil {
			t.Fatalf("fast resync: %v", err)
		}
		if _, err := dst.LoadRawObject(ctx, blob); !errors.Is(err, object.ErrInvalidData) {
			t.Fatalf("fast resync touched the blob: %v", err)
		}
		if _, err := SyncCommit(ctx, src, dst, c1, strategy); err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
		if _, err := dst.LoadRawObject(ctx, blob); err != nil {
			t.Fatalf("%s left corrupt blob: %v", strategy, err)
		}
	}
}

func TestSubmodulesAreNotFollowed(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestRepo(t)
	tree, err := src.SaveObject(ctx, &object.Tree{Entries: []object.TreeEntry{
		{Name: "vendor", Mode: object.ModeSubmodule, Hash: "5555555555555555555555555555555555555555"},
	}})
	if err != nil {
		t.Fatalf("SaveObject: %v", err)
	}
	who := testPerson("x")
	c, err := src.SaveObject(ctx, &object.Commit{Tree: tree, Author: who, Committer: who, Message: "sub\n"})
	if err != nil {
		t.Fatalf("SaveObject: %v", err)
	}

	dst, _ := newTestRepo(t)
	if _, err := SyncCommit(ctx, src, dst, c, StrategyVerify); err != nil {
		t.Fatalf("SyncCommit: %v", err)
	}
}

func TestStrategyValidation(t *testing.T) {
	bad := []Strategy{
		{Top: Skip, Ancestors: Skip, AllowShallow: true},
		{Top: AssumeTotalConnectivity, Ancestors: Pessimistic},
		{Top: AssumeObjectIntegrity, Ancestors: Skip},
		{Top: Pessimistic + 1, Ancestors: Skip, AllowShallow: true},
	}
	for _, s := range bad {
		if _, err := NewStrategy(s.Top, s.Ancestors, s.AllowShallow); !errors.Is(err, ErrInvalidStrategy) {
			t.Fatalf("NewStrategy(%s) = %v, want ErrInvalidStrategy", s, err)
		}
	}
	if _, err := NewStrategy(Pessimistic, AssumeTotalConnectivity, false); err != nil {
		t.Fatalf("NewStrategy(pessimistic/total): %v", err)
	}

	names := make([]string, 0, len(namedStrategies))
	for name := range namedStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s, err := ParseStrategy(name)
		if err != nil {
			t.Fatalf("ParseStrategy(%s): %v", name, err)
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("strategy %s invalid: %v", name, err)
		}
	}
	if _, err := ParseStrategy("yolo"); !errors.Is(err, ErrInvalidStrategy) {
		t.Fatalf("ParseStrategy(yolo) = %v", err)
	}
	if _, err := SyncCommit(context.Background(), nil, nil, object.EmptyTreeHash, Strategy{}); !errors.Is(err, ErrInvalidStrategy) {
		t.Fatalf("SyncCommit(zero strategy) = %v, want ErrInvalidStrategy", err)
	}
}

func TestWriteOrderParentsFirst(t *testing.T) {
	// T merges L and R; both reach B, R through a longer chain. Root is
	// outside the collected set.
	commits := map[object.Hash]*collected{
		"T":  {parents: []object.Hash{"L", "R"}},
		"L":  {parents: []object.Hash{"B"}},
		"R":  {parents: []object.Hash{"R2"}},
		"R2": {parents: []object.Hash{"B"}},
		"B":  {parents: []object.Hash{"Root"}},
	}
	got := writeOrder("T", commits)
	want := []object.Hash{"B", "L", "R2", "R", "T"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("writeOrder (-want +got):\n%s", diff)
	}
	if got := writeOrder("Root", commits); got != nil {
		t.Fatalf("writeOrder(uncollected top) = %v, want nil", got)
	}
}
