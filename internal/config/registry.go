package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.yaml.in/yaml/v3"
)

const registryFileName = ".packeagle.conf"

// BundleEntry records one indexed module directory in the global registry.
type BundleEntry struct {
	Bundle    string    `yaml:"bundle"`
	Dir       string    `yaml:"dir"`
	DBPath    string    `yaml:"db_path"`
	BuildID   string    `yaml:"build_id,omitempty"`
	IndexedAt time.Time `yaml:"indexed_at"`
}

type registryFile struct {
	Bundles []BundleEntry `yaml:"bundles"`
}

// registryPath is a variable so tests can redirect it.
var registryPath = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, registryFileName)
}

// RegistryPath returns the path to the global bundle registry file
// (~/.packeagle.conf).
func RegistryPath() string { return registryPath() }

// RegisterBundle adds or updates the entry for a module directory.
func RegisterBundle(entry BundleEntry) error {
	if abs, err := filepath.Abs(entry.Dir); err == nil {
		entry.Dir = abs
	}
	entries := ListBundles()
	i := slices.IndexFunc(entries, func(e BundleEntry) bool { return e.Dir == entry.Dir })
	if i >= 0 {
		entries[i] = entry
	} else {
		entries = append(entries, entry)
	}
	return writeRegistry(entries)
}

// LookupBundle finds the registry entry of a module directory.
func LookupBundle(dir string) (*BundleEntry, bool) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		absPath = dir
	}
	for _, entry := range ListBundles() {
		if entry.Dir == absPath {
			return &entry, true
		}
	}
	return nil, false
}

// ListBundles returns all registered bundles from the global registry.
func ListBundles() []BundleEntry {
	regPath := RegistryPath()
	if regPath == "" {
		return nil
	}

	data, err := os.ReadFile(regPath)
	if err != nil {
		return nil
	}

	var reg registryFile
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil
	}

	return reg.Bundles
}

func writeRegistry(entries []BundleEntry) error {
	regPath := RegistryPath()
	if regPath == "" {
		return nil
	}

	reg := registryFile{Bundles: entries}
	data, err := yaml.Marshal(&reg)
	if err != nil {
		return err
	}

	return os.WriteFile(regPath, data, 0o644)
}
