package indexer

import (
	"context"
	"slices"
	"sync"

	"github.com/imyousuf/PackEagle/internal/webpack"
)

// MemoryIndex inverts the require graphs of a set of parsed modules without
// a store. It is safe for concurrent use.
type MemoryIndex struct {
	mu        sync.RWMutex
	importers map[string]*webpack.Deps
}

var _ webpack.DependencyIndex = (*MemoryIndex)(nil)

// NewMemoryIndex builds an index over the given modules. Modules without an
// id are skipped.
func NewMemoryIndex(modules ...*webpack.Module) *MemoryIndex {
	idx := &MemoryIndex{importers: make(map[string]*webpack.Deps)}
	for _, m := range modules {
		idx.Add(m)
	}
	return idx
}

// entry returns the importers of id, creating an empty entry first.
func (idx *MemoryIndex) entry(id string) *webpack.Deps {
	d, ok := idx.importers[id]
	if !ok {
		d = &webpack.Deps{}
		idx.importers[id] = d
	}
	return d
}

// Add records the requires of one module.
func (idx *MemoryIndex) Add(m *webpack.Module) {
	id, ok := m.ID()
	if !ok {
		return
	}
	deps := m.Requires()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, target := range deps.Sync {
		e := idx.entry(target)
		if !slices.Contains(e.Sync, id) {
			e.Sync = append(e.Sync, id)
		}
	}
	for _, target := range deps.Lazy {
		e := idx.entry(target)
		if !slices.Contains(e.Lazy, id) {
			e.Lazy = append(e.Lazy, id)
		}
	}
}

// Deps returns the modules that require id. An unknown id has no importers.
func (idx *MemoryIndex) Deps(_ context.Context, id string) (webpack.Deps, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	d, ok := idx.importers[id]
	if !ok {
		return webpack.Deps{}, nil
	}
	return webpack.Deps{Sync: slices.Clone(d.Sync), Lazy: slices.Clone(d.Lazy)}, nil
}
