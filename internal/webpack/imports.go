package webpack

import (
	"fmt"
	"slices"
	"strings"

	"github.com/imyousuf/PackEagle/internal/parser/javascript"
	"github.com/imyousuf/PackEagle/internal/textpos"
)

// Requires returns the ids of the modules this module requires, in source
// order. Sync requires are `n(123)`; lazy ones are `n.bind(n, 123)`.
func (m *Module) Requires() Deps { return m.requires() }

func (m *Module) findRequires() Deps {
	var deps Deps
	for _, use := range m.paramUses(paramRequire) {
		if call := use.Parent; javascript.IsCall(call) && use.Field == "function" {
			if args := m.args(call); len(args) == 1 && args[0].Is(javascript.KindNumber) {
				deps.Sync = appendUnique(deps.Sync, m.text(args[0]))
			}
			continue
		}
		if _, prop := javascript.LeadingIdentifier(use); m.text(prop) != "bind" {
			continue
		}
		call := javascript.FindParent(use, javascript.IsCall)
		if call == nil {
			continue
		}
		if args := m.args(call); len(args) == 2 && args[1].Is(javascript.KindNumber) {
			deps.Lazy = appendUnique(deps.Lazy, m.text(args[1]))
		}
	}
	return deps
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

// ReExportsWholeModule returns the id of the module this one re-exports in
// full through `module.exports = require(id)`.
func (m *Module) ReExportsWholeModule() (string, bool) { return m.wholeReExport() }

func (m *Module) findWholeReExport() (string, bool) {
	module := m.param(paramModule)
	for _, use := range m.paramUses(paramRequire) {
		call := use.Parent
		if !javascript.IsCall(call) || use.Field != "function" || call.Field != "right" {
			continue
		}
		assign := call.Parent
		if !assign.Is(javascript.KindAssignment) {
			continue
		}
		chain := javascript.FlattenMember(assign.ChildByField("left"))
		if len(chain) != 2 || !m.src.IsUseOf(chain[0], module) || m.text(chain[1]) != "exports" {
			continue
		}
		if args := m.args(call); len(args) == 1 && args[0].Is(javascript.KindNumber) {
			return m.text(args[0]), true
		}
	}
	return "", false
}

// UsesOfImport returns the ranges in this module that use export name of
// module moduleID. It understands direct property access on the required
// module, access through a variable holding it, and the `n.n` default
// interop wrapper. It fails with ErrNoRequire when the module function has
// no require parameter.
func (m *Module) UsesOfImport(moduleID string, name Key) ([]textpos.Range, error) {
	if !m.HasRequire() {
		return nil, ErrNoRequire
	}
	requireDecl := m.param(paramRequire)
	var out []textpos.Range
	for _, use := range m.paramUses(paramRequire) {
		call := use.Parent
		if !javascript.IsCall(call) || use.Field != "function" {
			continue
		}
		args := m.args(call)
		if len(args) == 0 || m.text(args[0]) != moduleID {
			continue
		}

		if decl := call.Parent; decl.Is(javascript.KindVariableDeclarator) && call.Field == "value" {
			ident := decl.ChildByField("name")
			if !javascript.IsIdentifier(ident) {
				continue
			}
			b := m.src.BindingOfDeclaration(ident)
			if b == nil {
				continue
			}
			if len(b.Uses) == 1 {
				out = append(out, m.interopUses(b.Uses[0], requireDecl, name)...)
			}
			if name.IsDefault() {
				continue
			}
			for _, u := range b.Uses {
				if r, ok := m.propertyAccess(u, name); ok {
					out = append(out, r)
				}
			}
			continue
		}

		if r, ok := m.propertyAccess(call, name); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// propertyAccess returns the range of name when n is the object of `n.name`.
func (m *Module) propertyAccess(n *javascript.Node, name Key) (textpos.Range, bool) {
	if name.IsDefault() || n.Field != "object" || !javascript.IsMember(n.Parent) {
		return textpos.Range{}, false
	}
	prop := n.Parent.ChildByField("property")
	if m.text(prop) != name.Name() {
		return textpos.Range{}, false
	}
	return m.src.RangeOf(prop), true
}

// interopUses handles `var r = n(1), o = n.n(r);` where o() yields the
// default export: `o()` uses the default and `o().x` uses x.
func (m *Module) interopUses(use, requireDecl *javascript.Node, name Key) []textpos.Range {
	call := javascript.FindParent(use, javascript.IsCall)
	if call == nil {
		return nil
	}
	if args := m.args(call); len(args) != 1 || args[0] != use {
		return nil
	}
	fn := call.ChildByField("function")
	if !javascript.IsMember(fn) || m.text(fn.ChildByField("property")) != "n" {
		return nil
	}
	if obj := fn.ChildByField("object"); !javascript.IsIdentifier(obj) || !m.src.IsUseOf(obj, requireDecl) {
		return nil
	}
	decl := call.Parent
	if !decl.Is(javascript.KindVariableDeclarator) || call.Field != "value" {
		return nil
	}
	b := m.src.BindingOfDeclaration(decl.ChildByField("name"))
	if b == nil {
		return nil
	}
	var out []textpos.Range
	for _, u := range b.Uses {
		called := u.Parent
		if !javascript.IsCall(called) || u.Field != "function" {
			continue
		}
		if name.IsDefault() {
			if javascript.IsCall(called.Parent) && called.Field == "function" {
				out = append(out, m.src.RangeOf(called))
			}
			continue
		}
		if r, ok := m.propertyAccess(called, name); ok {
			out = append(out, r)
		}
	}
	return out
}

// importedVar returns the declaring identifier of `var x = n(moduleID)`.
func (m *Module) importedVar(moduleID string) *javascript.Node {
	for _, use := range m.paramUses(paramRequire) {
		call := use.Parent
		if !javascript.IsCall(call) || use.Field != "function" {
			continue
		}
		if args := m.args(call); len(args) != 1 || m.text(args[0]) != moduleID {
			continue
		}
		if decl := call.Parent; decl.Is(javascript.KindVariableDeclarator) && call.Field == "value" {
			if ident := decl.ChildByField("name"); javascript.IsIdentifier(ident) {
				return ident
			}
		}
	}
	return nil
}

// requiredModuleID returns the module id a variable was initialized from,
// when ident is declared once as `x = n(<id>)` with n the require function.
func (m *Module) requiredModuleID(ident *javascript.Node) (string, bool) {
	b := m.src.BindingOf(ident)
	if b == nil || len(b.Declarations) != 1 {
		return "", false
	}
	init := javascript.VariableInitializer(b.Declarations[0])
	if !javascript.IsCall(init) {
		return "", false
	}
	if fn := init.ChildByField("function"); !m.src.IsUseOf(fn, m.param(paramRequire)) {
		return "", false
	}
	args := m.args(init)
	if len(args) != 1 || !javascript.IsLiteral(args[0]) {
		return "", false
	}
	return strings.Trim(m.text(args[0]), "\"'`"), true
}

// ReExportFromImport reports under which name, if any, this module
// re-exports export name of module moduleID. A whole-module re-export keeps
// the name.
func (m *Module) ReExportFromImport(moduleID string, name Key) (Key, bool, error) {
	if !m.HasRequire() {
		return Key{}, false, nil
	}
	if _, ok := m.ID(); !ok {
		return Key{}, false, nil
	}
	if id, ok := m.ReExportsWholeModule(); ok && id == moduleID {
		return name, true, nil
	}
	decl := m.importedVar(moduleID)
	if decl == nil {
		return Key{}, false, nil
	}

	var matches []Key
	for _, key := range m.rawExports().Keys() {
		e := m.rawExports()[key]
		if e.Nested() || len(e.Locs) == 0 {
			continue
		}
		first := e.Locs[0]
		switch {
		case javascript.IsIdentifier(first):
			if m.src.IsUseOf(first, decl) {
				matches = append(matches, key)
			}
		case javascript.IsMember(first):
			root, prop := javascript.LeadingIdentifier(first)
			if root != nil && prop != nil && m.src.IsUseOf(root, decl) && !name.IsDefault() && m.text(prop) == name.Name() {
				matches = append(matches, key)
			}
		}
	}
	switch len(matches) {
	case 0:
		return Key{}, false, nil
	case 1:
		return matches[0], true, nil
	}
	return Key{}, false, fmt.Errorf("%w: %s of module %s re-exported as %v", ErrAmbiguousReExport, name, moduleID, matches)
}

// ReExportFromExport reports whether the export reached by names is taken
// from another module, as in `Z: () => r.foo.bar` with `r = n(123)`. It
// returns that module's id and the property chain to follow there.
func (m *Module) ReExportFromExport(names []string) (string, []string, bool) {
	locs := m.rawExports().Lookup(names...)
	if len(locs) == 0 {
		return "", nil, false
	}
	chain := javascript.FlattenMember(locs[len(locs)-1])
	if len(chain) < 2 {
		return "", nil, false
	}
	id, ok := m.requiredModuleID(chain[0])
	if !ok {
		return "", nil, false
	}
	rest := make([]string, 0, len(chain)-1)
	for _, p := range chain[1:] {
		rest = append(rest, m.text(p))
	}
	return id, rest, true
}
