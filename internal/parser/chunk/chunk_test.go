package chunk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/imyousuf/PackEagle/internal/webpack"
)

func TestSplitPushChunk(t *testing.T) {
	text := `"use strict";
(self.webpackChunkapp = self.webpackChunkapp || []).push([[4821], {
    100: function (e, t, n) { n.d(t, { A: () => r }); function r() {} },
    "abc12": (e, t, n) => { e.exports = n(100); },
    xyz: function (e) { e.exports = 1; }
}, e => { e.O(0, [1], () => e(100)); }]);`

	got, err := Split(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	var ids []string
	for _, m := range got {
		ids = append(ids, m.ID)
		if !webpack.IsWebpackModule(m.Text) {
			t.Errorf("module %s has no header: %q", m.ID, m.Text)
		}
	}
	if diff := cmp.Diff([]string{"100", "abc12", "xyz"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	want := webpack.FormatModule("function (e) { e.exports = 1; }", "xyz")
	if got[2].Text != want {
		t.Errorf("module xyz = %q, want %q", got[2].Text, want)
	}

	m, err := webpack.Parse(got[1].Text, webpack.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if id, ok := m.ReExportsWholeModule(); !ok || id != "100" {
		t.Errorf("split module lost its meaning: ReExportsWholeModule = %q, %v", id, ok)
	}
}

func TestSplitBareObject(t *testing.T) {
	got, err := Split(context.Background(), `({ 1: function (e) {}, 2: function (e) {} })`, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Errorf("Split = %+v", got)
	}
}

func TestSplitNoModules(t *testing.T) {
	for _, text := range []string{
		`var a = 1;`,
		`({ a: 1, b: function () {} })`,
	} {
		if _, err := Split(context.Background(), text, nil); !errors.Is(err, ErrNoModules) {
			t.Errorf("Split(%q) error = %v, want ErrNoModules", text, err)
		}
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "modules")
	mods := []Module{{ID: "1", Text: "one"}, {ID: "2", Text: "two"}}
	paths, err := Write(dir, mods)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "1.js"), filepath.Join(dir, "2.js")}, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	data, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("2.js = %q", data)
	}

	if _, err := Write(dir, []Module{{ID: "../x", Text: ""}}); err == nil {
		t.Error("Write should reject ids that are paths")
	}
}
