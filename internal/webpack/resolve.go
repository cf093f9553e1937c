package webpack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/creachadair/mds/mapset"

	"github.com/imyousuf/PackEagle/internal/parser/javascript"
	"github.com/imyousuf/PackEagle/internal/textpos"
)

// pending is one worklist item: does importer use name of owner?
type pending struct {
	importer string
	owner    string
	name     Key
}

// visited tracks which importers were checked per exporting module.
type visited map[string]mapset.Set[string]

func (v visited) mark(owner, importer string) bool {
	set, ok := v[owner]
	if !ok {
		set = mapset.New[string]()
		v[owner] = set
	}
	if set.Has(importer) {
		return false
	}
	set.Add(importer)
	return true
}

func (m *Module) crossModule() error {
	if m.opts.Cache == nil || m.opts.Deps == nil {
		return ErrMissingCollaborator
	}
	return nil
}

// fetch returns a module text, trying the cached copy first when cachedFirst
// is set and the latest copy first otherwise.
func (m *Module) fetch(ctx context.Context, id string, cachedFirst bool) (string, error) {
	first, second := m.opts.Cache.LatestModule, m.opts.Cache.CachedModule
	if cachedFirst {
		first, second = second, first
	}
	text, err1 := first(ctx, id)
	if err1 == nil {
		return text, nil
	}
	text, err2 := second(ctx, id)
	if err2 == nil {
		return text, nil
	}
	return "", fmt.Errorf("fetch module %s: %w", id, errors.Join(err1, err2))
}

func (m *Module) open(ctx context.Context, id string, cachedFirst bool) (*Module, error) {
	text, err := m.fetch(ctx, id, cachedFirst)
	if err != nil {
		return nil, err
	}
	return ParseContext(ctx, FormatModule(text, id), m.opts)
}

// References returns every location, across the bundle, that uses the
// export containing pos. It follows re-exports through intermediate modules
// so a use of a re-exported name is found too. When the visit budget runs
// out the locations found so far are returned with ErrVisitBudgetExceeded.
func (m *Module) References(ctx context.Context, pos textpos.Position) ([]Location, error) {
	id, ok := m.ID()
	if !ok {
		return nil, ErrNoModuleID
	}
	if err := m.crossModule(); err != nil {
		return nil, err
	}
	importers, err := m.opts.Deps.Deps(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("importers of %s: %w", id, err)
	}

	type locKey struct {
		module string
		r      textpos.Range
	}
	var out []Location
	seenLoc := mapset.New[locKey]()
	budget := m.opts.budget()

	exports := m.Exports()
	for _, key := range exports.Keys() {
		if !exports[key].contains(pos, func(r textpos.Range) textpos.Range { return r }) {
			continue
		}
		seen := make(visited)
		var stack []pending
		for _, imp := range importers.Sync {
			stack = append(stack, pending{importer: imp, owner: id, name: key})
		}
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			if budget--; budget < 0 {
				return out, fmt.Errorf("references of %s in module %s: %w", key, id, ErrVisitBudgetExceeded)
			}
			item := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !seen.mark(item.owner, item.importer) {
				continue
			}

			other, err := m.open(ctx, item.importer, true)
			if err != nil {
				m.logger.Warn("skipping importer", "importer", item.importer, "error", err)
				continue
			}
			uses, err := other.UsesOfImport(item.owner, item.name)
			if err != nil {
				m.logger.Debug("importer has no require function", "importer", item.importer)
				continue
			}
			newName, reexported, err := other.ReExportFromImport(item.owner, item.name)
			if err != nil {
				return out, err
			}
			if reexported {
				next, err := m.opts.Deps.Deps(ctx, item.importer)
				if err != nil {
					m.logger.Warn("cannot list importers", "module", item.importer, "error", err)
				}
				for _, imp := range next.Sync {
					stack = append(stack, pending{importer: imp, owner: item.importer, name: newName})
				}
			}
			var locate func(textpos.Range) Location
			for _, r := range uses {
				k := locKey{module: item.importer, r: r}
				if seenLoc.Has(k) {
					continue
				}
				seenLoc.Add(k)
				if locate == nil {
					locate = m.locator(ctx, item.importer, other)
				}
				out = append(out, locate(r))
			}
		}
	}
	return out, nil
}

// Definitions resolves the member access at pos, such as `r.foo.bar` where
// `r = n(123)`, to the place the accessed export is defined. Re-exports are
// followed through as many modules as needed.
func (m *Module) Definitions(ctx context.Context, pos textpos.Position) ([]Location, error) {
	if !m.HasRequire() || len(m.paramUses(paramRequire)) == 0 {
		return nil, ErrNoRequire
	}
	if m.opts.Cache == nil {
		return nil, ErrMissingCollaborator
	}
	tok := m.src.TokenAt(pos)
	chain := javascript.FlattenMember(javascript.FindParent(tok, javascript.IsMember))
	if chain == nil {
		return nil, nil
	}
	modID, ok := m.requiredModuleID(chain[0])
	if !ok || m.src.BindingOfUse(chain[0]) == nil {
		return nil, nil
	}
	names := make([]string, 0, len(chain)-1)
	for _, p := range chain[1:] {
		names = append(names, m.text(p))
	}

	cur, err := m.open(ctx, modID, false)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []Location{m.locator(ctx, modID, cur)(textpos.ZeroRange)}, nil
	}

	seen := mapset.New[string]()
	for budget := m.opts.budget(); ; budget-- {
		if budget < 0 {
			return nil, fmt.Errorf("definition of %s: %w", strings.Join(names, "."), ErrVisitBudgetExceeded)
		}
		step := modID + ":" + strings.Join(names, ".")
		if seen.Has(step) {
			m.logger.Warn("re-export cycle", "module", modID, "names", names)
			break
		}
		seen.Add(step)

		if next, rest, ok := cur.ReExportFromExport(names); ok {
			nextMod, err := m.open(ctx, next, false)
			if err != nil {
				return nil, err
			}
			cur, modID, names = nextMod, next, rest
			continue
		}
		if next, ok := cur.ReExportsWholeModule(); ok {
			nextMod, err := m.open(ctx, next, false)
			if err != nil {
				m.logger.Warn("cannot open re-exported module", "module", next, "error", err)
				break
			}
			cur, modID = nextMod, next
			continue
		}
		break
	}
	return []Location{m.locator(ctx, modID, cur)(cur.FindExportLocation(names...))}, nil
}

// FindExportLocation returns where the export reached by names is defined:
// the last location of the entry names lead to, or ZeroRange.
func (m *Module) FindExportLocation(names ...string) textpos.Range {
	cur := m.Exports()
	r := textpos.ZeroRange
	for _, name := range names {
		e, ok := cur[Named(name)]
		if !ok {
			break
		}
		if !e.Nested() {
			if len(e.Locs) > 0 {
				r = e.Locs[len(e.Locs)-1]
			}
			break
		}
		if d, ok := e.Members[DefaultKey]; ok && !d.Nested() && len(d.Locs) > 0 {
			r = d.Locs[len(d.Locs)-1]
		}
		cur = e.Members
	}
	return r
}

// ReExportsOf lists every module that re-exports export name of this
// module, directly or through other re-exporting modules.
func (m *Module) ReExportsOf(ctx context.Context, name Key) ([]ReExport, error) {
	id, ok := m.ID()
	if !ok {
		return nil, ErrNoModuleID
	}
	if err := m.crossModule(); err != nil {
		return nil, err
	}
	if _, ok := m.rawExports()[name]; !ok {
		return nil, fmt.Errorf("%w: %s in module %s", ErrUnknownExport, name, id)
	}
	importers, err := m.opts.Deps.Deps(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("importers of %s: %w", id, err)
	}

	var stack []pending
	for _, imp := range importers.Sync {
		stack = append(stack, pending{importer: imp, owner: id, name: name})
	}
	var out []ReExport
	seen := make(visited)
	budget := m.opts.budget()
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if budget--; budget < 0 {
			return out, fmt.Errorf("re-exports of %s in module %s: %w", name, id, ErrVisitBudgetExceeded)
		}
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !seen.mark(item.owner, item.importer) {
			continue
		}
		other, err := m.open(ctx, item.importer, true)
		if err != nil {
			m.logger.Warn("skipping importer", "importer", item.importer, "error", err)
			continue
		}
		newName, ok, err := other.ReExportFromImport(item.owner, item.name)
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		out = append(out, ReExport{ModuleID: item.importer, Name: newName})
		next, err := m.opts.Deps.Deps(ctx, item.importer)
		if err != nil {
			m.logger.Warn("cannot list importers", "module", item.importer, "error", err)
			continue
		}
		for _, imp := range next.Sync {
			stack = append(stack, pending{importer: imp, owner: item.importer, name: newName})
		}
	}
	return out, nil
}
