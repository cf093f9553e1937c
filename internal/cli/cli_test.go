package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/imyousuf/PackEagle/internal/graph"
	"github.com/imyousuf/PackEagle/internal/textpos"
	"github.com/imyousuf/PackEagle/internal/webpack"
)

// bundle: 1 requires 2 and lazily 3; 2 re-exports 4, which is missing;
// 5 uses 1's export A.
var bundle = map[string]string{
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

type testEnv struct {
	root    string
	modules string
	config  string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	env := &testEnv{
		root:    root,
		modules: filepath.Join(root, "modules"),
		config:  filepath.Join(root, "packeagle.yaml"),
	}
	if err := os.MkdirAll(env.modules, 0o755); err != nil {
		t.Fatal(err)
	}
	for id, text := range bundle {
		p := filepath.Join(env.modules, id+".js")
		if err := os.WriteFile(p, []byte(webpack.FormatModule(text, id)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := "modules:\n  dir: " + env.modules + "\n" +
		"store:\n  db_path: " + filepath.Join(root, "db", "graph.db") + "\n  bundle: test\n" +
		"log:\n  level: error\n"
	if err := os.WriteFile(env.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

// run executes the CLI with a fresh command tree and returns its stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("packeagle %s: %v", strings.Join(args, " "), err)
	}
	return out
}

type statusJSON struct {
	Bundle  string           `json:"bundle"`
	Stats   graph.GraphStats `json:"stats"`
	Bundles []string         `json:"bundles"`
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    textpos.Position
		wantErr bool
	}{
		{"0:0", textpos.Pos(0, 0), false},
		{"12:4", textpos.Pos(12, 4), false},
		{"12", textpos.Position{}, true},
		{"a:1", textpos.Position{}, true},
		{"1:-1", textpos.Position{}, true},
	}
	for _, tt := range tests {
		got, err := parsePosition(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePosition(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePosition(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" *.js, ,vendor/** ,")
	if diff := cmp.Diff([]string{"*.js", "vendor/**"}, got); diff != "" {
		t.Errorf("splitList mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexAndQuery(t *testing.T) {
	env := setupEnv(t)

	out := env.mustRun(t, "index")
	if !strings.Contains(out, "Indexed:   4") {
		t.Errorf("index output missing count:\n%s", out)
	}

	importers := decode[webpack.Deps](t, env.mustRun(t, "importers", "1", "--json"))
	if diff := cmp.Diff(webpack.Deps{Sync: []string{"5"}}, importers, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("importers mismatch (-want +got):\n%s", diff)
	}

	req := decode[requiresResult](t, env.mustRun(t, "requires", "1", "--json"))
	want := requiresResult{Module: "1", Requires: webpack.Deps{Sync: []string{"2"}, Lazy: []string{"3"}}}
	if diff := cmp.Diff(want, req, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("requires mismatch (-want +got):\n%s", diff)
	}

	req = decode[requiresResult](t, env.mustRun(t, "requires", "2", "--json"))
	if req.ReExportsOf != "4" {
		t.Errorf("requires 2: ReExportsOf = %q, want 4", req.ReExportsOf)
	}

	exports := decode[map[string]json.RawMessage](t, env.mustRun(t, "exports", "1", "--json"))
	if _, ok := exports["A"]; !ok || len(exports) != 1 {
		t.Errorf("exports of 1 = %v, want only A", exports)
	}

	externals := env.mustRun(t, "modules", "--type", string(graph.NodeExternal))
	if !strings.Contains(externals, "1 result(s)") || !strings.Contains(externals, "4 ") {
		t.Errorf("modules --type External:\n%s", externals)
	}

	status := decode[statusJSON](t, env.mustRun(t, "status", "--json"))
	if status.Bundle != "test" || status.Stats.NodeCount != 5 || status.Stats.TextCount != 4 {
		t.Errorf("status = %+v", status)
	}
	if diff := cmp.Diff([]string{"test"}, status.Bundles); diff != "" {
		t.Errorf("bundles mismatch (-want +got):\n%s", diff)
	}
}

func TestReferencesAndDefinitions(t *testing.T) {
	env := setupEnv(t)
	env.mustRun(t, "index")

	refs := decode[[]webpack.Location](t, env.mustRun(t, "references", "1", "--export", "A", "--json"))
	if len(refs) != 1 || refs[0].ModuleID != "5" || refs[0].FilePath != filepath.Join(env.modules, "5.js") {
		t.Fatalf("references = %+v, want one use in module 5", refs)
	}

	consumer := webpack.FormatModule(bundle["5"], "5")
	at := textpos.NewDocument(consumer).PositionAt(strings.Index(consumer, "a.A") + len("a."))
	if refs[0].Range.Start != at {
		t.Errorf("reference starts at %v, want %v", refs[0].Range.Start, at)
	}

	defs := decode[[]webpack.Location](t, env.mustRun(t, "definitions", "5", at.String(), "--json"))
	if len(defs) == 0 || defs[0].ModuleID != "1" {
		t.Errorf("definitions = %+v, want a location in module 1", defs)
	}

	if _, err := env.run(t, "references", "1"); err == nil {
		t.Error("references without position or --export should fail")
	}
	if _, err := env.run(t, "references", "1", "--export", "Missing"); err == nil {
		t.Error("references of an unknown export should fail")
	}
}

func TestBareModuleFiles(t *testing.T) {
	env := setupEnv(t)
	for id, text := range bundle {
		if err := os.WriteFile(filepath.Join(env.modules, id+".js"), []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	env.mustRun(t, "index")

	// Positions are those of the files on disk, which have no header.
	posIn := func(text, word string, skip int) textpos.Position {
		return textpos.NewDocument(text).PositionAt(strings.Index(text, word) + skip)
	}
	use := posIn(bundle["5"], "a.A", len("a."))
	def := posIn(bundle["1"], "r() {}", 0)

	refs := decode[[]webpack.Location](t, env.mustRun(t, "references", "1", "--export", "A", "--json"))
	if len(refs) != 1 || refs[0].FilePath != filepath.Join(env.modules, "5.js") || refs[0].Range.Start != use {
		t.Errorf("references = %+v, want 5.js at %v", refs, use)
	}

	file1 := filepath.Join(env.modules, "1.js")
	for _, arg := range []string{"5", filepath.Join(env.modules, "5.js")} {
		defs := decode[[]webpack.Location](t, env.mustRun(t, "definitions", arg, use.String(), "--json"))
		if len(defs) != 1 || defs[0].FilePath != file1 || defs[0].Range.Start != def {
			t.Errorf("definitions %s = %+v, want 1.js at %v", arg, defs, def)
		}
	}

	exports := decode[map[string][]textpos.Range](t, env.mustRun(t, "exports", file1, "--json"))
	if a := exports["A"]; len(a) == 0 || a[len(a)-1].Start != def {
		t.Errorf("exports A = %v, want it to end at %v", a, def)
	}
}

func TestIndexExportImport(t *testing.T) {
	env := setupEnv(t)
	env.mustRun(t, "index")

	dump := filepath.Join(env.root, "graph.jsonl")
	env.mustRun(t, "index", "--export", dump)
	if fi, err := os.Stat(dump); err != nil || fi.Size() == 0 {
		t.Fatalf("export file missing or empty: %v", err)
	}

	env.mustRun(t, "index", "--import", dump)
	importers := decode[webpack.Deps](t, env.mustRun(t, "importers", "1", "--json"))
	if diff := cmp.Diff([]string{"5"}, importers.Sync); diff != "" {
		t.Errorf("importers after import mismatch (-want +got):\n%s", diff)
	}

	if _, err := env.run(t, "index", "--export", dump, "--import", dump); err == nil {
		t.Error("--export with --import should fail")
	}
}

func TestEnvCommand(t *testing.T) {
	env := setupEnv(t)
	script := filepath.Join(env.root, "env.js")
	src := `window.GLOBAL_ENV = {API_VERSION: 9, SENTRY_TAGS: {buildId: "7ea92cf"}};`
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	out := env.mustRun(t, "env", script, "--key", "SENTRY_TAGS.buildId")
	if strings.TrimSpace(out) != `"7ea92cf"` {
		t.Errorf("env --key = %q", out)
	}

	all := decode[map[string]any](t, env.mustRun(t, "env", script))
	if all["API_VERSION"] != float64(9) {
		t.Errorf("API_VERSION = %v", all["API_VERSION"])
	}

	if _, err := env.run(t, "env", script, "--key", "API_VERSION.x"); err == nil {
		t.Error("descending into a number should fail")
	}
}

func TestScanPageCommand(t *testing.T) {
	env := setupEnv(t)
	page := filepath.Join(env.root, "index.html")
	html := `<html><head><script>window.GLOBAL_ENV = {SENTRY_TAGS: {buildId: "b1"}};</script></head>
<body><script src="/assets/web.0e1a.js"></script></body></html>`
	if err := os.WriteFile(page, []byte(html), 0o644); err != nil {
		t.Fatal(err)
	}

	got := decode[struct {
		BuildID      string   `json:"build_id"`
		EntryScripts []string `json:"entry_scripts"`
	}](t, env.mustRun(t, "scan-page", page, "--json"))
	if got.BuildID != "b1" {
		t.Errorf("BuildID = %q, want b1", got.BuildID)
	}
	if diff := cmp.Diff([]string{"web.0e1a.js"}, got.EntryScripts); diff != "" {
		t.Errorf("entry scripts mismatch (-want +got):\n%s", diff)
	}

	env.mustRun(t, "index", "--env-script", page)
	registry, err := os.ReadFile(filepath.Join(os.Getenv("HOME"), ".packeagle.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(registry), "b1") {
		t.Errorf("registry lacks build id:\n%s", registry)
	}
	if status := env.mustRun(t, "status"); !strings.Contains(status, "b1") {
		t.Errorf("status lacks build id:\n%s", status)
	}
}

func TestSplitCommand(t *testing.T) {
	env := setupEnv(t)
	chunkFile := filepath.Join(env.root, "chunk.js")
	src := `(self.webpackChunkapp = self.webpackChunkapp || []).push([[7], {
    10: function (e, t, n) { e.exports = n(11); },
    11: function (e) { e.exports = 1; }
}]);`
	if err := os.WriteFile(chunkFile, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	summary := decode[[]chunkModule](t, env.mustRun(t, "split", chunkFile, "--dry-run", "--json"))
	if len(summary) != 2 || summary[1].ID != "11" {
		t.Fatalf("dry run summary = %+v", summary)
	}
	if diff := cmp.Diff([]string{"10"}, summary[1].Importers.Sync); diff != "" {
		t.Errorf("importers of 11 mismatch (-want +got):\n%s", diff)
	}

	outDir := filepath.Join(env.root, "split")
	out := env.mustRun(t, "split", chunkFile, "--out", outDir)
	if !strings.Contains(out, "Wrote 2 module(s)") {
		t.Errorf("split output = %q", out)
	}
	for _, id := range []string{"10", "11"} {
		data, err := os.ReadFile(filepath.Join(outDir, id+".js"))
		if err != nil {
			t.Fatal(err)
		}
		if !webpack.IsWebpackModule(string(data)) {
			t.Errorf("module %s has no header", id)
		}
	}

	// A split module file can be queried by path.
	req := decode[requiresResult](t, env.mustRun(t, "requires", filepath.Join(outDir, "10.js"), "--json"))
	if diff := cmp.Diff([]string{"11"}, req.Requires.Sync); diff != "" {
		t.Errorf("requires mismatch (-want +got):\n%s", diff)
	}
}

func TestInitAndConfigView(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	env := &testEnv{config: filepath.Join(t.TempDir(), "conf.yaml")}

	out := env.mustRun(t, "init", "--dir", "bundle-modules", "--bundle", "b42")
	if !strings.Contains(out, "Created "+env.config) {
		t.Errorf("init output = %q", out)
	}
	if _, err := env.run(t, "init"); err == nil {
		t.Error("init over an existing file should fail without --force")
	}
	env.mustRun(t, "init", "--force", "--bundle", "b43")

	view := env.mustRun(t, "config")
	for _, want := range []string{"modules", "b43", "10000"} {
		if !strings.Contains(view, want) {
			t.Errorf("config view lacks %q:\n%s", want, view)
		}
	}

	tomlPath := filepath.Join(filepath.Dir(env.config), "conf.toml")
	env.mustRun(t, "init", "-o", tomlPath, "--bundle", "tb")
	tomlEnv := &testEnv{config: tomlPath}
	if view := tomlEnv.mustRun(t, "config"); !strings.Contains(view, "tb") {
		t.Errorf("TOML config not read back:\n%s", view)
	}
}

func TestVersion(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "packeagle version "+Version) {
		t.Errorf("version output = %q", out.String())
	}
}
