// Package modcache provides webpack.ModuleCache implementations backed by a
// module directory, the graph store, or memory.
package modcache

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/imyousuf/PackEagle/internal/webpack"
)

// ErrNotCached is returned when a module text is not available.
var ErrNotCached = errors.New("module not cached")

// Ext is the file extension of module files in a module directory.
const Ext = ".js"

var (
	_ webpack.ModuleCache = (*Dir)(nil)
	_ webpack.ModuleCache = (*Snapshot)(nil)
	_ webpack.ModuleCache = (*Layered)(nil)
	_ webpack.ModuleCache = (*Memory)(nil)
)

// Dir serves modules stored as <id>.js files in one directory.
type Dir struct {
	root string
}

// NewDir returns a cache over the module files in root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the module directory.
func (d *Dir) Root() string { return d.root }

// Path returns the file a module with the given id is stored in.
func (d *Dir) Path(id string) string {
	return filepath.Join(d.root, id+Ext)
}

// IDFromPath returns the module id of a module file path.
func IDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, Ext) || len(base) == len(Ext) {
		return "", false
	}
	return strings.TrimSuffix(base, Ext), true
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

func (d *Dir) read(id string) (string, error) {
	if !validID(id) {
		return "", fmt.Errorf("module %q: invalid id", id)
	}
	data, err := os.ReadFile(d.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("module %s: %w", id, ErrNotCached)
	}
	if err != nil {
		return "", fmt.Errorf("read module %s: %w", id, err)
	}
	return string(data), nil
}

func (d *Dir) LatestModule(_ context.Context, id string) (string, error) { return d.read(id) }

func (d *Dir) CachedModule(_ context.Context, id string) (string, error) { return d.read(id) }

func (d *Dir) ModuleFilePath(id string) (string, bool) {
	if !validID(id) {
		return "", false
	}
	p := d.Path(id)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// TextStore is the part of graph.Store a Snapshot reads from.
type TextStore interface {
	ModuleText(ctx context.Context, id string) (string, error)
}

// Snapshot serves module texts persisted by the indexer. It has no latest
// source and knows no file paths.
type Snapshot struct {
	store TextStore
}

// NewSnapshot returns a cache reading module texts from store.
func NewSnapshot(store TextStore) *Snapshot {
	return &Snapshot{store: store}
}

func (s *Snapshot) LatestModule(_ context.Context, id string) (string, error) {
	return "", fmt.Errorf("module %s: snapshot has no latest source: %w", id, ErrNotCached)
}

func (s *Snapshot) CachedModule(ctx context.Context, id string) (string, error) {
	text, err := s.store.ModuleText(ctx, id)
	if err != nil {
		return "", fmt.Errorf("module %s: %w: %w", id, ErrNotCached, err)
	}
	return text, nil
}

func (s *Snapshot) ModuleFilePath(string) (string, bool) { return "", false }

// Layered reads the latest text from a primary cache and the cached text
// from a fallback, then the primary.
type Layered struct {
	primary  webpack.ModuleCache
	fallback webpack.ModuleCache
}

// NewLayered combines a primary and a fallback cache.
func NewLayered(primary, fallback webpack.ModuleCache) *Layered {
	return &Layered{primary: primary, fallback: fallback}
}

func (l *Layered) LatestModule(ctx context.Context, id string) (string, error) {
	return l.primary.LatestModule(ctx, id)
}

func (l *Layered) CachedModule(ctx context.Context, id string) (string, error) {
	text, err := l.fallback.CachedModule(ctx, id)
	if err == nil {
		return text, nil
	}
	text, perr := l.primary.CachedModule(ctx, id)
	if perr != nil {
		return "", errors.Join(err, perr)
	}
	return text, nil
}

func (l *Layered) ModuleFilePath(id string) (string, bool) {
	return l.primary.ModuleFilePath(id)
}

// Memory is a map-backed cache. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	modules map[string]string
	paths   map[string]string
}

// NewMemory returns a cache holding the given module texts by id.
func NewMemory(modules map[string]string) *Memory {
	m := &Memory{modules: make(map[string]string, len(modules)), paths: make(map[string]string)}
	maps.Copy(m.modules, modules)
	return m
}

// Put stores a module text. A non-empty path is reported by ModuleFilePath.
func (m *Memory) Put(id, text, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[id] = text
	if path != "" {
		m.paths[id] = path
	} else {
		delete(m.paths, id)
	}
}

func (m *Memory) get(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.modules[id]
	if !ok {
		return "", fmt.Errorf("module %s: %w", id, ErrNotCached)
	}
	return text, nil
}

func (m *Memory) LatestModule(_ context.Context, id string) (string, error) { return m.get(id) }

func (m *Memory) CachedModule(_ context.Context, id string) (string, error) { return m.get(id) }

func (m *Memory) ModuleFilePath(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.paths[id]
	return p, ok
}
