// Package webpack analyzes individual webpack modules: it recovers what a
// module exports and requires, and resolves references and definitions of
// exported values across the modules of a bundle.
package webpack

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/imyousuf/PackEagle/internal/textpos"
)

// DefaultVisitBudget bounds the worklist pops of one cross-module query.
const DefaultVisitBudget = 10000

var (
	// ErrNoRequire is returned by queries that need the module's require
	// function when the module function has none.
	ErrNoRequire = errors.New("module does not use a require function")

	// ErrNoModuleID is returned by cross-module queries on text without a
	// "// Webpack Module <id>" header.
	ErrNoModuleID = errors.New("module has no module id")

	// ErrAmbiguousReExport means more than one export of a module re-exports
	// the same import, which the export model does not allow.
	ErrAmbiguousReExport = errors.New("more than one re-export of the same import")

	// ErrVisitBudgetExceeded is returned together with partial results when
	// a cross-module walk hits the visit budget.
	ErrVisitBudgetExceeded = errors.New("visit budget exceeded")

	// ErrMissingCollaborator is returned by cross-module queries on a module
	// parsed without a cache or dependency index.
	ErrMissingCollaborator = errors.New("module cache or dependency index not configured")

	// ErrUnknownExport is returned when a query names an export the module
	// does not have.
	ErrUnknownExport = errors.New("unknown export")
)

// ModuleCache supplies module texts by module id.
type ModuleCache interface {
	// LatestModule fetches the freshest text of a module, which may involve
	// I/O that fails.
	LatestModule(ctx context.Context, id string) (string, error)
	// CachedModule returns a previously stored text, or an error when the
	// module is not stored.
	CachedModule(ctx context.Context, id string) (string, error)
	// ModuleFilePath returns a stable path for the module's text, if any.
	ModuleFilePath(id string) (string, bool)
}

// Deps lists module ids split by how they are required.
type Deps struct {
	Sync []string `json:"sync"`
	Lazy []string `json:"lazy"`
}

// DependencyIndex answers which modules require a module. It is built once
// per bundle by inverting every module's own require graph.
type DependencyIndex interface {
	Deps(ctx context.Context, id string) (Deps, error)
}

// Options holds the collaborators of a Module. Cache and Deps are only
// needed for cross-module queries.
type Options struct {
	Cache       ModuleCache
	Deps        DependencyIndex
	Logger      *slog.Logger
	VisitBudget int
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o Options) budget() int {
	if o.VisitBudget > 0 {
		return o.VisitBudget
	}
	return DefaultVisitBudget
}

// Location is a range inside one module, given either by the module's file
// path or, when the cache has none, by the module text itself.
type Location struct {
	ModuleID string        `json:"module_id"`
	FilePath string        `json:"file_path,omitempty"`
	Content  string        `json:"-"`
	Range    textpos.Range `json:"range"`
}

// Inline reports whether the location carries the module text instead of
// a file path.
func (l Location) Inline() bool { return l.FilePath == "" }

// ReExport names a module that re-exports a value and the export name it
// uses for it.
type ReExport struct {
	ModuleID string `json:"module_id"`
	Name     Key    `json:"name"`
}
