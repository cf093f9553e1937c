package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/PackEagle/internal/config"
	"github.com/imyousuf/PackEagle/internal/graph/embedded"
	"github.com/imyousuf/PackEagle/internal/indexer"
	"github.com/imyousuf/PackEagle/internal/modcache"
	"github.com/imyousuf/PackEagle/internal/webpack"
)

// workspace bundles what a command needs to answer module queries: the
// graph store, the indexer over the module directory and the module cache.
type workspace struct {
	cfg   *config.Config
	log   *slog.Logger
	store *embedded.BundleStore
	index *indexer.Indexer
	dir   *modcache.Dir
	cache webpack.ModuleCache
}

// openBundleStore opens a BundleStore for the configured bundle. Bundles
// given with --fallback-bundle are read after it.
func openBundleStore(cfg *config.Config) (*embedded.BundleStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	read := []string{cfg.Store.Bundle}
	for _, b := range readBundles {
		if b != cfg.Store.Bundle {
			read = append(read, b)
		}
	}
	store, err := embedded.NewBundleStore(cfg.Store.DBPath, cfg.Store.Bundle, read)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	return store, nil
}

func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger(cmd, cfg)

	store, err := openBundleStore(cfg)
	if err != nil {
		return nil, err
	}

	dir := modcache.NewDir(cfg.Modules.Dir)
	idx := indexer.New(indexer.Config{
		Store:   store,
		Dir:     cfg.Modules.Dir,
		Include: cfg.Modules.Include,
		Exclude: cfg.Modules.Exclude,
		Workers: cfg.Index.Workers,
		Logger:  log,
	})

	return &workspace{
		cfg:   cfg,
		log:   log,
		store: store,
		index: idx,
		dir:   dir,
		cache: modcache.NewLayered(dir, modcache.NewSnapshot(store)),
	}, nil
}

func (w *workspace) Close() error {
	return w.store.Close()
}

// statePath is where the sync state of the configured bundle is kept.
func (w *workspace) statePath() string {
	return filepath.Join(filepath.Dir(w.cfg.Store.DBPath), w.cfg.Store.Bundle+"."+indexer.SyncStateFile)
}

func (w *workspace) options() webpack.Options {
	return webpack.Options{
		Cache:       w.cache,
		Deps:        w.index,
		Logger:      w.log,
		VisitBudget: w.cfg.Analysis.VisitBudget,
	}
}

// module parses the module named by arg, which is either a module id or
// the path of a module file. A bare module function is parsed with a header
// in front; header is its line count, 0 when the text had one.
func (w *workspace) module(ctx context.Context, arg string) (m *webpack.Module, header int, err error) {
	text, err := w.moduleText(ctx, arg)
	if err != nil {
		return nil, 0, err
	}
	header = webpack.HeaderLines(text)
	id := arg
	if isFileArg(arg) && header > 0 {
		var ok bool
		if id, ok = modcache.IDFromPath(arg); !ok {
			return nil, 0, fmt.Errorf("file %s: no module header and no id in the file name", arg)
		}
	}
	m, err = webpack.ParseContext(ctx, webpack.FormatModule(text, id), w.options())
	if err != nil {
		return nil, 0, fmt.Errorf("parse module %s: %w", arg, err)
	}
	return m, header, nil
}

// moduleText returns the text of a module as found, without adding a header.
func (w *workspace) moduleText(ctx context.Context, arg string) (string, error) {
	if isFileArg(arg) {
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", fmt.Errorf("read module file: %w", err)
		}
		return string(data), nil
	}

	text, err := w.cache.LatestModule(ctx, arg)
	if err != nil {
		cached, cerr := w.cache.CachedModule(ctx, arg)
		if cerr != nil {
			return "", errors.Join(err, cerr)
		}
		w.log.Debug("using stored module text", "module", arg, "err", err)
		text = cached
	}
	return text, nil
}

func isFileArg(arg string) bool {
	if strings.ContainsAny(arg, `/\`) || strings.HasSuffix(arg, modcache.Ext) {
		_, err := os.Stat(arg)
		return err == nil
	}
	return false
}
