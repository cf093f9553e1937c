// Package indexer builds the module dependency graph of a bundle directory
// and answers which modules require a module.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imyousuf/PackEagle/internal/graph"
	"github.com/imyousuf/PackEagle/internal/modcache"
	"github.com/imyousuf/PackEagle/internal/watcher"
	"github.com/imyousuf/PackEagle/internal/webpack"
)

// Config holds configuration for the Indexer.
type Config struct {
	Store   graph.Store
	Dir     string   // module directory
	Include []string // base name globs; empty means *.js
	Exclude []string // .gitignore syntax
	Workers int      // parse parallelism; 0 means GOMAXPROCS
	Logger  *slog.Logger
}

// IndexStats holds statistics about the indexing state.
type IndexStats struct {
	FilesIndexed  int       `json:"files_indexed"`
	NodesTotal    int64     `json:"nodes_total"`
	EdgesTotal    int64     `json:"edges_total"`
	TextsTotal    int64     `json:"texts_total"`
	LastIndexTime time.Time `json:"last_index_time"`
	Errors        []string  `json:"errors,omitempty"`
}

// Indexer parses module files and keeps the dependency graph in the store
// current. It implements webpack.DependencyIndex over the stored graph.
type Indexer struct {
	store   graph.Store
	cfg     Config
	matcher *watcher.Matcher
	workers int
	log     *slog.Logger

	mu           sync.Mutex
	filesIndexed int
	errors       []string
	lastIndex    time.Time
}

var _ webpack.DependencyIndex = (*Indexer)(nil)

// New creates a new Indexer with the given configuration.
func New(cfg Config) *Indexer {
	matcher := watcher.NewMatcher([]string{cfg.Dir}, cfg.Include, cfg.Exclude)
	_ = matcher.LoadPatterns()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Indexer{
		store:   cfg.Store,
		cfg:     cfg,
		matcher: matcher,
		workers: workers,
		log:     logger,
	}
}

// Store returns the underlying graph store used by this Indexer.
func (idx *Indexer) Store() graph.Store {
	return idx.store
}

func (idx *Indexer) recordError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	idx.mu.Lock()
	idx.errors = append(idx.errors, msg)
	idx.mu.Unlock()
}

// readModule reads a module file and gives it a header when it has none,
// taking the id from the file name.
func readModule(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file %s: %w", path, err)
	}
	text := string(content)
	if webpack.IsWebpackModule(text) {
		return text, nil
	}
	id, ok := modcache.IDFromPath(path)
	if !ok {
		return "", fmt.Errorf("file %s: no module header and no id in the file name", path)
	}
	return webpack.FormatModule(text, id), nil
}

// IndexFile parses one module file and replaces its node, outgoing edges and
// text in the graph. Required modules that have no node yet are recorded as
// external.
func (idx *Indexer) IndexFile(ctx context.Context, path string) error {
	targets, err := idx.indexFile(ctx, path)
	if err != nil {
		return err
	}
	return idx.markExternal(ctx, targets)
}

func (idx *Indexer) indexFile(ctx context.Context, path string) ([]string, error) {
	text, err := readModule(path)
	if err != nil {
		return nil, err
	}
	m, err := webpack.ParseContext(ctx, text, webpack.Options{Logger: idx.log})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	id, ok := m.ID()
	if !ok {
		return nil, fmt.Errorf("parse %s: %w", path, webpack.ErrNoModuleID)
	}

	node := &graph.Node{
		ID:       id,
		Type:     graph.NodeModule,
		FilePath: path,
		Size:     len(text),
	}
	for _, k := range m.Exports().Keys() {
		node.Exports = append(node.Exports, k.String())
	}
	if name, ok := m.FluxDispatcherExport(); ok {
		node.Flux = true
		node.Properties = map[string]string{graph.PropFluxName: name}
	}

	deps := m.Requires()
	var edges []*graph.Edge
	addEdge := func(typ graph.EdgeType, target string) {
		edges = append(edges, &graph.Edge{
			ID:       graph.NewEdgeID(typ, id, target),
			Type:     typ,
			SourceID: id,
			TargetID: target,
		})
	}
	for _, t := range deps.Sync {
		addEdge(graph.EdgeRequiresSync, t)
	}
	for _, t := range deps.Lazy {
		addEdge(graph.EdgeRequiresLazy, t)
	}
	if target, ok := m.ReExportsWholeModule(); ok {
		addEdge(graph.EdgeReExports, target)
	}

	if err := idx.store.DeleteEdges(ctx, id, ""); err != nil {
		return nil, fmt.Errorf("delete old edges of %s: %w", id, err)
	}
	if err := idx.store.PutNode(ctx, node); err != nil {
		return nil, fmt.Errorf("put node %s: %w", id, err)
	}
	if err := idx.store.PutModuleText(ctx, id, text); err != nil {
		return nil, fmt.Errorf("put text %s: %w", id, err)
	}
	targets := make([]string, 0, len(edges))
	for _, e := range edges {
		if err := idx.store.AddEdge(ctx, e); err != nil {
			return nil, fmt.Errorf("add edge %s: %w", e.ID, err)
		}
		targets = append(targets, e.TargetID)
	}

	idx.mu.Lock()
	idx.filesIndexed++
	idx.lastIndex = time.Now()
	idx.mu.Unlock()

	idx.log.Debug("indexed module", "module", id, "exports", len(node.Exports),
		"sync", len(deps.Sync), "lazy", len(deps.Lazy))
	return targets, nil
}

// markExternal adds external nodes for required modules that are not in the
// graph.
func (idx *Indexer) markExternal(ctx context.Context, ids []string) error {
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		_, err := idx.store.GetNode(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, graph.ErrNotFound) {
			return err
		}
		if err := idx.store.PutNode(ctx, &graph.Node{ID: id, Type: graph.NodeExternal}); err != nil {
			return fmt.Errorf("put external node %s: %w", id, err)
		}
	}
	return nil
}

// RemoveFile removes the module stored for a file. A module other modules
// still require stays in the graph as an external node.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) error {
	nodes, err := idx.store.QueryNodes(ctx, graph.NodeFilter{FilePath: path})
	if err != nil {
		return fmt.Errorf("find modules of %s: %w", path, err)
	}
	for _, n := range nodes {
		importers, err := idx.store.GetEdges(ctx, n.ID, "", graph.Incoming)
		if err != nil {
			return fmt.Errorf("importers of %s: %w", n.ID, err)
		}
		if len(importers) == 0 {
			if err := idx.store.DeleteNode(ctx, n.ID); err != nil {
				return fmt.Errorf("delete module %s: %w", n.ID, err)
			}
			continue
		}
		if err := idx.store.DeleteEdges(ctx, n.ID, ""); err != nil {
			return fmt.Errorf("delete edges of %s: %w", n.ID, err)
		}
		if err := idx.store.PutNode(ctx, &graph.Node{ID: n.ID, Type: graph.NodeExternal}); err != nil {
			return fmt.Errorf("mark %s external: %w", n.ID, err)
		}
		if err := idx.store.DeleteModuleText(ctx, n.ID); err != nil {
			return fmt.Errorf("clear text of %s: %w", n.ID, err)
		}
		idx.log.Debug("module removed, kept as external", "module", n.ID, "importers", len(importers))
	}
	return nil
}

// ModuleFiles lists the module files of the directory that are not excluded.
func (idx *Indexer) ModuleFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.Walk(idx.cfg.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			if path != idx.cfg.Dir && idx.matcher.Match(path) {
				idx.log.Debug("skipping directory", "path", path)
				return filepath.SkipDir
			}
			return nil
		}
		if idx.matcher.Included(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// IndexFiles indexes the given files with bounded parallelism and returns
// how many were indexed. A file that fails is recorded and skipped.
func (idx *Indexer) IndexFiles(ctx context.Context, files []string) (int, error) {
	var mu sync.Mutex
	var targets []string
	indexed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for _, path := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			ts, err := idx.indexFile(gctx, path)
			if err != nil {
				idx.log.Warn("index file", "path", path, "err", err)
				idx.recordError("%s: %v", path, err)
				return nil
			}
			mu.Lock()
			targets = append(targets, ts...)
			indexed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return indexed, err
	}
	return indexed, idx.markExternal(ctx, targets)
}

// IndexDirectory indexes every module file of the directory.
func (idx *Indexer) IndexDirectory(ctx context.Context) error {
	start := time.Now()
	files, err := idx.ModuleFiles(ctx)
	if err != nil {
		return fmt.Errorf("scan %s: %w", idx.cfg.Dir, err)
	}
	idx.log.Info("indexing modules", "dir", idx.cfg.Dir, "files", len(files), "workers", idx.workers)
	n, err := idx.IndexFiles(ctx, files)
	if err != nil {
		return err
	}
	idx.log.Info("indexing complete", "dir", idx.cfg.Dir, "indexed", n, "elapsed", time.Since(start))
	return nil
}

// Deps returns the modules that require id, from the reverse edges of the
// graph, sorted.
func (idx *Indexer) Deps(ctx context.Context, id string) (webpack.Deps, error) {
	edges, err := idx.store.GetEdges(ctx, id, "", graph.Incoming)
	if err != nil {
		return webpack.Deps{}, fmt.Errorf("importers of %s: %w", id, err)
	}
	var deps webpack.Deps
	for _, e := range edges {
		switch e.Type {
		case graph.EdgeRequiresSync:
			deps.Sync = append(deps.Sync, e.SourceID)
		case graph.EdgeRequiresLazy:
			deps.Lazy = append(deps.Lazy, e.SourceID)
		}
	}
	slices.Sort(deps.Sync)
	slices.Sort(deps.Lazy)
	return deps, nil
}

// Watch reindexes module files as they change until ctx is cancelled. It
// does not perform an initial index.
func (idx *Indexer) Watch(ctx context.Context) error {
	w, err := watcher.New(watcher.Config{
		Paths:   []string{idx.cfg.Dir},
		Include: idx.cfg.Include,
		Exclude: idx.cfg.Exclude,
		Logger:  idx.log,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	events, err := w.Start(ctx)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			idx.handleEvent(ctx, evt)
		}
	}
}

func (idx *Indexer) handleEvent(ctx context.Context, evt watcher.Event) {
	switch evt.Op {
	case watcher.Create, watcher.Write:
		if err := idx.IndexFile(ctx, evt.Path); err != nil {
			idx.log.Warn("reindex module", "path", evt.Path, "err", err)
			idx.recordError("index %s: %v", evt.Path, err)
			return
		}
		idx.log.Info("reindexed", "path", evt.Path)
	case watcher.Remove, watcher.Rename:
		if err := idx.RemoveFile(ctx, evt.Path); err != nil {
			idx.log.Warn("remove module", "path", evt.Path, "err", err)
			idx.recordError("remove %s: %v", evt.Path, err)
			return
		}
		idx.log.Info("removed", "path", evt.Path)
	}
}

// Stats returns current indexing statistics.
func (idx *Indexer) Stats(ctx context.Context) IndexStats {
	idx.mu.Lock()
	stats := IndexStats{
		FilesIndexed:  idx.filesIndexed,
		LastIndexTime: idx.lastIndex,
		Errors:        slices.Clone(idx.errors),
	}
	idx.mu.Unlock()

	if gs, err := idx.store.Stats(ctx); err == nil {
		stats.NodesTotal = gs.NodeCount
		stats.EdgesTotal = gs.EdgeCount
		stats.TextsTotal = gs.TextCount
	}
	return stats
}
