package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/imyousuf/PackEagle/internal/graph"
	"github.com/imyousuf/PackEagle/internal/graph/embedded"
	"github.com/imyousuf/PackEagle/internal/modcache"
	"github.com/imyousuf/PackEagle/internal/textpos"
	"github.com/imyousuf/PackEagle/internal/webpack"
)

// testBundle: 1 requires 2 and lazily 3; 2 re-exports 4, which is not in
// the directory; 5 uses 1's export A.
var testBundle = map[string]string{
	"1": `function (e, t, n) {
    n.d(t, { A: () => r });
    var o = n(2);
    var p = n.bind(n, 3);
    function r() {}
}`,
	"2": `function (e, t, n) { e.exports = n(4); }`,
	"3": `function (e) { e.exports = 1; }`,
	"5": `function (e, t, n) {
    var a = n(1);
    a.A();
}`,
}

func writeBundle(t *testing.T, dir string, modules map[string]string) {
	t.Helper()
	for id, text := range modules {
		if err := os.WriteFile(filepath.Join(dir, id+".js"), []byte(webpack.FormatModule(text, id)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func setupTestIndexer(t *testing.T) (*Indexer, graph.Store, string) {
	t.Helper()

	store, err := embedded.NewStore(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	writeBundle(t, dir, testBundle)
	idx := New(Config{Store: store, Dir: dir, Exclude: []string{"stale"}, Workers: 2})
	return idx, store, dir
}

func mustDeps(t *testing.T, idx webpack.DependencyIndex, id string) webpack.Deps {
	t.Helper()
	d, err := idx.Deps(context.Background(), id)
	if err != nil {
		t.Fatalf("Deps(%s): %v", id, err)
	}
	return d
}

func TestIndexDirectory(t *testing.T) {
	idx, store, dir := setupTestIndexer(t)
	ctx := context.Background()

	stale := filepath.Join(dir, "stale")
	if err := os.Mkdir(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	writeBundle(t, stale, map[string]string{"9": `function (e, t, n) { n(1); }`})

	if err := idx.IndexDirectory(ctx); err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}

	n1, err := store.GetNode(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if n1.Type != graph.NodeModule || n1.FilePath != filepath.Join(dir, "1.js") {
		t.Errorf("node 1 = %+v", n1)
	}
	if diff := cmp.Diff([]string{"A"}, n1.Exports); diff != "" {
		t.Errorf("node 1 exports (-want +got):\n%s", diff)
	}
	n4, err := store.GetNode(ctx, "4")
	if err != nil {
		t.Fatal(err)
	}
	if n4.Type != graph.NodeExternal {
		t.Errorf("node 4 type = %s, want External", n4.Type)
	}
	if _, err := store.GetNode(ctx, "9"); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("excluded module 9 was indexed: %v", err)
	}

	tests := []struct {
		id   string
		want webpack.Deps
	}{
		{"1", webpack.Deps{Sync: []string{"5"}}},
		{"2", webpack.Deps{Sync: []string{"1"}}},
		{"3", webpack.Deps{Lazy: []string{"1"}}},
		{"4", webpack.Deps{Sync: []string{"2"}}},
		{"5", webpack.Deps{}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, mustDeps(t, idx, tt.id)); diff != "" {
			t.Errorf("Deps(%s) mismatch (-want +got):\n%s", tt.id, diff)
		}
	}

	reexports, err := store.GetEdges(ctx, "2", graph.EdgeReExports, graph.Outgoing)
	if err != nil {
		t.Fatal(err)
	}
	if len(reexports) != 1 || reexports[0].TargetID != "4" {
		t.Errorf("ReExports edges of 2 = %+v", reexports)
	}

	text, err := store.ModuleText(ctx, "3")
	if err != nil {
		t.Fatal(err)
	}
	if !webpack.IsWebpackModule(text) {
		t.Errorf("stored text has no header: %q", text)
	}

	stats := idx.Stats(ctx)
	if stats.FilesIndexed != 4 || stats.NodesTotal != 5 || stats.TextsTotal != 4 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestIndexFileBareModule(t *testing.T) {
	idx, store, dir := setupTestIndexer(t)
	ctx := context.Background()

	path := filepath.Join(dir, "42.js")
	if err := os.WriteFile(path, []byte(`function (e, t, n) { n(1); }`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := idx.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if _, err := store.GetNode(ctx, "42"); err != nil {
		t.Errorf("module id should come from the file name: %v", err)
	}
	if _, err := store.GetNode(ctx, "1"); err != nil {
		t.Errorf("required module should be recorded as external: %v", err)
	}

	if err := idx.IndexFile(ctx, filepath.Join(dir, "missing.js")); err == nil {
		t.Error("IndexFile of a missing file should fail")
	}
}

func TestIndexFileReplacesEdges(t *testing.T) {
	idx, _, dir := setupTestIndexer(t)
	ctx := context.Background()
	if err := idx.IndexDirectory(ctx); err != nil {
		t.Fatal(err)
	}

	writeBundle(t, dir, map[string]string{"1": `function (e, t, n) { n(3); }`})
	if err := idx.IndexFile(ctx, filepath.Join(dir, "1.js")); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(webpack.Deps{}, mustDeps(t, idx, "2")); diff != "" {
		t.Errorf("stale edge 1->2 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(webpack.Deps{Sync: []string{"1"}}, mustDeps(t, idx, "3")); diff != "" {
		t.Errorf("Deps(3) mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveFile(t *testing.T) {
	idx, store, dir := setupTestIndexer(t)
	ctx := context.Background()
	if err := idx.IndexDirectory(ctx); err != nil {
		t.Fatal(err)
	}

	// 2 is still required by 1: it stays as an external node.
	if err := idx.RemoveFile(ctx, filepath.Join(dir, "2.js")); err != nil {
		t.Fatal(err)
	}
	n2, err := store.GetNode(ctx, "2")
	if err != nil {
		t.Fatal(err)
	}
	if n2.Type != graph.NodeExternal {
		t.Errorf("node 2 type = %s, want External", n2.Type)
	}
	if _, err := store.ModuleText(ctx, "2"); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("text of removed module survived: %v", err)
	}
	if diff := cmp.Diff(webpack.Deps{Sync: []string{"1"}}, mustDeps(t, idx, "2")); diff != "" {
		t.Errorf("Deps(2) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(webpack.Deps{}, mustDeps(t, idx, "4")); diff != "" {
		t.Errorf("Deps(4) mismatch (-want +got):\n%s", diff)
	}

	// Nothing requires 5.
	if err := idx.RemoveFile(ctx, filepath.Join(dir, "5.js")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetNode(ctx, "5"); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("node 5 should be deleted: %v", err)
	}
}

func TestReferencesThroughIndex(t *testing.T) {
	idx, _, dir := setupTestIndexer(t)
	ctx := context.Background()
	if err := idx.IndexDirectory(ctx); err != nil {
		t.Fatal(err)
	}

	cache := modcache.NewDir(dir)
	text, err := cache.LatestModule(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	m, err := webpack.Parse(text, webpack.Options{Cache: cache, Deps: idx})
	if err != nil {
		t.Fatal(err)
	}
	doc := textpos.NewDocument(text)
	pos := doc.PositionAt(strings.Index(text, "A: () => r"))

	got, err := m.References(ctx, pos)
	if err != nil {
		t.Fatalf("References: %v", err)
	}

	consumer := webpack.FormatModule(testBundle["5"], "5")
	at := strings.Index(consumer, "a.A") + len("a.")
	want := []webpack.Location{{
		ModuleID: "5",
		FilePath: filepath.Join(dir, "5.js"),
		Range:    textpos.NewDocument(consumer).RangeAt(at, at+1),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("References mismatch (-want +got):\n%s", diff)
	}
}

func TestSync(t *testing.T) {
	idx, store, dir := setupTestIndexer(t)
	ctx := context.Background()
	statePath := filepath.Join(t.TempDir(), SyncStateFile)

	res, err := idx.Sync(ctx, statePath, false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(SyncResult{Indexed: 4, Full: true}, res); diff != "" {
		t.Errorf("first sync (-want +got):\n%s", diff)
	}

	res, err = idx.Sync(ctx, statePath, false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(SyncResult{Unchanged: 4}, res); diff != "" {
		t.Errorf("second sync (-want +got):\n%s", diff)
	}

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "3.js"), later, later); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "5.js")); err != nil {
		t.Fatal(err)
	}
	res, err = idx.Sync(ctx, statePath, false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(SyncResult{Indexed: 1, Removed: 1, Unchanged: 2}, res); diff != "" {
		t.Errorf("third sync (-want +got):\n%s", diff)
	}
	if _, err := store.GetNode(ctx, "5"); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("removed module 5 still indexed: %v", err)
	}

	res, err = idx.Sync(ctx, statePath, true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Full || res.Indexed != 3 {
		t.Errorf("full sync = %+v", res)
	}
}

func TestSyncStateMissingFile(t *testing.T) {
	state, err := LoadSyncState(filepath.Join(t.TempDir(), "none"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if state.FileTimes != nil || state.Dir != "" {
		t.Errorf("state = %+v, want empty", state)
	}
}

func TestMemoryIndex(t *testing.T) {
	var modules []*webpack.Module
	for id, text := range testBundle {
		m, err := webpack.Parse(webpack.FormatModule(text, id), webpack.Options{})
		if err != nil {
			t.Fatal(err)
		}
		modules = append(modules, m)
	}
	bare, err := webpack.Parse(`function (e, t, n) { n(2); }`, webpack.Options{})
	if err != nil {
		t.Fatal(err)
	}
	idx := NewMemoryIndex(append(modules, bare)...)

	tests := []struct {
		id   string
		want webpack.Deps
	}{
		{"2", webpack.Deps{Sync: []string{"1"}}},
		{"3", webpack.Deps{Lazy: []string{"1"}}},
		{"1", webpack.Deps{Sync: []string{"5"}}},
		{"unknown", webpack.Deps{}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, mustDeps(t, idx, tt.id)); diff != "" {
			t.Errorf("Deps(%s) mismatch (-want +got):\n%s", tt.id, diff)
		}
	}
}
