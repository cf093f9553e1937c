package modcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/imyousuf/PackEagle/internal/graph"
	"github.com/imyousuf/PackEagle/internal/graph/embedded"
	"github.com/imyousuf/PackEagle/internal/textpos"
	"github.com/imyousuf/PackEagle/internal/webpack"
)

func writeModule(t *testing.T, dir, id, text string) string {
	t.Helper()
	p := filepath.Join(dir, id+Ext)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDir(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := writeModule(t, root, "42", "module 42")
	d := NewDir(root)

	for _, get := range []func(context.Context, string) (string, error){d.LatestModule, d.CachedModule} {
		got, err := get(ctx, "42")
		if err != nil {
			t.Fatal(err)
		}
		if got != "module 42" {
			t.Errorf("got %q, want %q", got, "module 42")
		}
	}
	if got, ok := d.ModuleFilePath("42"); !ok || got != p {
		t.Errorf("ModuleFilePath = %q, %v; want %q", got, ok, p)
	}
	if _, ok := d.ModuleFilePath("43"); ok {
		t.Error("ModuleFilePath(43) should be unknown")
	}
	if _, err := d.LatestModule(ctx, "43"); !errors.Is(err, ErrNotCached) {
		t.Errorf("LatestModule(43) error = %v, want ErrNotCached", err)
	}
	if _, err := d.LatestModule(ctx, "../42"); err == nil {
		t.Error("path traversal id should be rejected")
	}
}

func TestIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/b/123.js", "123", true},
		{"abc.js", "abc", true},
		{"/b/.js", "", false},
		{"/b/123.ts", "", false},
	}
	for _, tt := range tests {
		got, ok := IDFromPath(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("IDFromPath(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	store, err := embedded.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.PutModuleText(ctx, "7", "seven"); err != nil {
		t.Fatal(err)
	}

	s := NewSnapshot(store)
	got, err := s.CachedModule(ctx, "7")
	if err != nil {
		t.Fatal(err)
	}
	if got != "seven" {
		t.Errorf("CachedModule = %q", got)
	}
	_, err = s.CachedModule(ctx, "8")
	if !errors.Is(err, ErrNotCached) || !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("CachedModule(8) error = %v, want ErrNotCached wrapping ErrNotFound", err)
	}
	if _, err := s.LatestModule(ctx, "7"); err == nil {
		t.Error("snapshot LatestModule should fail")
	}
	if _, ok := s.ModuleFilePath("7"); ok {
		t.Error("snapshot knows no file paths")
	}
}

func TestLayered(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeModule(t, root, "1", "disk 1")
	writeModule(t, root, "2", "disk 2")
	primary := NewDir(root)
	fallback := NewMemory(map[string]string{"1": "stored 1", "3": "stored 3"})
	l := NewLayered(primary, fallback)

	tests := []struct {
		name    string
		get     func(context.Context, string) (string, error)
		id      string
		want    string
		wantErr bool
	}{
		{"latest from primary", l.LatestModule, "1", "disk 1", false},
		{"cached prefers fallback", l.CachedModule, "1", "stored 1", false},
		{"cached falls back to primary", l.CachedModule, "2", "disk 2", false},
		{"cached from fallback only", l.CachedModule, "3", "stored 3", false},
		{"latest missing from primary", l.LatestModule, "3", "", true},
		{"cached missing everywhere", l.CachedModule, "4", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.get(ctx, tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
	if _, ok := l.ModuleFilePath("2"); !ok {
		t.Error("file path should come from the primary")
	}
}

func TestMemoryPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	m.Put("1", "one", "/x/1.js")

	got, err := m.LatestModule(ctx, "1")
	if err != nil || got != "one" {
		t.Errorf("LatestModule = %q, %v", got, err)
	}
	if p, ok := m.ModuleFilePath("1"); !ok || p != "/x/1.js" {
		t.Errorf("ModuleFilePath = %q, %v", p, ok)
	}
	m.Put("1", "uno", "")
	if _, ok := m.ModuleFilePath("1"); ok {
		t.Error("path should be cleared")
	}
}

type importers map[string]webpack.Deps

func (i importers) Deps(_ context.Context, id string) (webpack.Deps, error) { return i[id], nil }

func TestReferencesInBareModuleFiles(t *testing.T) {
	const (
		exporter = "function (e, t, n) {\n    n.d(t, { A: () => f });\n    function f() {}\n}"
		user     = "function (e, t, n) {\n    var r = n(1);\n    r.A();\n}"
	)
	root := t.TempDir()
	writeModule(t, root, "1", exporter)
	userPath := writeModule(t, root, "2", user)

	stored := NewMemory(nil)
	stored.Put("1", webpack.FormatModule(exporter, "1"), "")
	stored.Put("2", webpack.FormatModule(user, "2"), "")

	caches := map[string]webpack.ModuleCache{
		"dir":     NewDir(root),
		"layered": NewLayered(NewDir(root), stored),
	}
	for name, cache := range caches {
		t.Run(name, func(t *testing.T) {
			opts := webpack.Options{Cache: cache, Deps: importers{"1": {Sync: []string{"2"}}}}
			m, err := webpack.Parse(webpack.FormatModule(exporter, "1"), opts)
			if err != nil {
				t.Fatal(err)
			}
			// "A" of the getter, below the two header lines.
			got, err := m.References(context.Background(), textpos.Pos(3, 13))
			if err != nil {
				t.Fatalf("References: %v", err)
			}
			want := webpack.Location{ModuleID: "2", FilePath: userPath, Range: textpos.RangeFromCoords(2, 6, 2, 7)}
			if len(got) != 1 || got[0] != want {
				t.Errorf("References = %+v, want [%+v]", got, want)
			}
		})
	}
}
