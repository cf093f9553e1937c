package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Errorf("failed to restore working directory: %v", err)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load without file mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `modules:
  dir: /data/build-7ea92cf
  include: ["*.js", "*.mjs"]
  exclude: ["old/"]
store:
  db_path: /data/graph.db
  bundle: 7ea92cf
analysis:
  visit_budget: 500
index:
  workers: 4
log:
  level: debug
`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile+".yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := &Config{
		Modules:   ModulesConfig{Dir: "/data/build-7ea92cf", Include: []string{"*.js", "*.mjs"}, Exclude: []string{"old/"}},
		Store:     StoreConfig{DBPath: "/data/graph.db", Bundle: "7ea92cf"},
		Analysis:  AnalysisConfig{VisitBudget: 500},
		Index:     IndexConfig{Workers: 4},
		GlobalEnv: GlobalEnvConfig{Path: "window.GLOBAL_ENV"},
		Log:       LogConfig{Level: "debug"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PACKEAGLE_MODULES_DIR", "/env/modules")
	t.Setenv("PACKEAGLE_ANALYSIS_VISIT_BUDGET", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Modules.Dir != "/env/modules" || cfg.Analysis.VisitBudget != 42 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte("[modules]\ndir = \"chunks\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.Set("config_file", path)
	t.Cleanup(func() { viper.Set("config_file", "") })

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Modules.Dir != "chunks" {
		t.Errorf("Modules.Dir = %q, want chunks", cfg.Modules.Dir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no dir", func(c *Config) { c.Modules.Dir = "" }, "modules.dir"},
		{"bad pattern", func(c *Config) { c.Modules.Include = []string{"["} }, "invalid pattern"},
		{"no db", func(c *Config) { c.Store.DBPath = "" }, "store.db_path"},
		{"bundle with colon", func(c *Config) { c.Store.Bundle = "a:b" }, "store.bundle"},
		{"zero budget", func(c *Config) { c.Analysis.VisitBudget = 0 }, "visit_budget"},
		{"negative workers", func(c *Config) { c.Index.Workers = -1 }, "index.workers"},
		{"no env path", func(c *Config) { c.GlobalEnv.Path = "" }, "globalenv.path"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteConfigRoundTrip(t *testing.T) {
	for _, ext := range []string{".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			chdir(t, dir)
			cfg := Default()
			cfg.Modules.Dir = "/data/modules"
			cfg.Store.Bundle = "b1"

			path := filepath.Join(dir, DefaultConfigFile+ext)
			if err := WriteConfig(cfg, path); err != nil {
				t.Fatalf("WriteConfig: %v", err)
			}
			got, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if diff := cmp.Diff(cfg, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), registryFileName)
	orig := registryPath
	registryPath = func() string { return path }
	t.Cleanup(func() { registryPath = orig })

	dir := t.TempDir()
	if err := RegisterBundle(BundleEntry{Bundle: "a", Dir: dir, DBPath: "/db"}); err != nil {
		t.Fatal(err)
	}
	if err := RegisterBundle(BundleEntry{Bundle: "b", Dir: dir, DBPath: "/db"}); err != nil {
		t.Fatal(err)
	}
	if got := ListBundles(); len(got) != 1 || got[0].Bundle != "b" {
		t.Errorf("ListBundles = %+v, want one updated entry", got)
	}
	entry, ok := LookupBundle(dir)
	if !ok || entry.Bundle != "b" {
		t.Errorf("LookupBundle = %+v, %v", entry, ok)
	}
	if _, ok := LookupBundle(t.TempDir()); ok {
		t.Error("LookupBundle of an unknown dir should fail")
	}
}
