package webpack

import (
	"maps"

	"github.com/imyousuf/PackEagle/internal/parser/javascript"
	"github.com/imyousuf/PackEagle/internal/textpos"
)

// maxExportDepth stops export recursion through self-referencing objects
// such as `var a = {b: a}`.
const maxExportDepth = 64

// Exports returns the export map of the module with source ranges. It
// merges the three export idioms: getters registered with `require.d`,
// assignments to the exports parameter and assignments to module.exports.
// Later idioms win on key collisions.
func (m *Module) Exports() Map[textpos.Range] { return m.exports() }

// RawExports is Exports with syntax nodes instead of ranges, before class
// and store expansion.
func (m *Module) RawExports() Map[*javascript.Node] { return m.rawExports() }

func (m *Module) buildExports() Map[textpos.Range] {
	out := make(Map[textpos.Range])
	maps.Copy(out, m.exportsFromGetters())
	maps.Copy(out, m.exportsFromExportsParam())
	maps.Copy(out, m.exportsFromModuleExports())
	return out
}

func (m *Module) buildRawExports() Map[*javascript.Node] {
	out := make(Map[*javascript.Node])
	maps.Copy(out, m.rawExportsFromGetters())
	maps.Copy(out, m.rawExportsFromExportsParam())
	maps.Copy(out, m.rawExportsFromModuleExports())
	return out
}

// getterDefinition finds `n.d(t, {...})`, webpack's export getter
// registration.
func (m *Module) getterDefinition() *javascript.Node {
	for _, use := range m.paramUses(paramRequire) {
		if _, prop := javascript.LeadingIdentifier(use); m.text(prop) != "d" {
			continue
		}
		member := use.Parent
		call := member.Parent
		if !javascript.IsCall(call) || member.Field != "function" {
			return nil
		}
		args := m.args(call)
		if len(args) != 2 || !javascript.IsIdentifier(args[0]) || !args[1].Is(javascript.KindObject) {
			return nil
		}
		return args[1]
	}
	return nil
}

// getters yields each getter pair of the require.d object whose value is a
// function, with the node the getter returns.
func (m *Module) getters(yield func(key, getter, returned *javascript.Node)) {
	obj := m.getterDefinition()
	if obj == nil {
		return
	}
	for _, prop := range obj.NamedChildren() {
		if prop.Kind != javascript.KindPair {
			continue
		}
		value := prop.ChildByField("value")
		if !value.Is(javascript.KindArrowFunction, javascript.KindFunction) {
			continue
		}
		returned := javascript.FindReturnIdentifier(value)
		if returned == nil {
			returned = javascript.FindReturnMember(value)
		}
		yield(prop.ChildByField("key"), prop, returned)
	}
}

func (m *Module) exportsFromGetters() Map[textpos.Range] {
	out := make(Map[textpos.Range])
	m.getters(func(key, pair, returned *javascript.Node) {
		if returned == nil {
			return
		}
		name := Named(m.keyText(key))
		var e Entry[textpos.Range]
		if store, ok := m.storeExports(returned, []textpos.Range{m.src.RangeOf(key)}); ok {
			e = Entry[textpos.Range]{Members: store}
		} else if class, ok := m.classExports(returned, []*javascript.Node{key}); ok {
			e = Entry[textpos.Range]{Members: m.toRangeMap(class)}
		} else {
			e = m.toRanges(m.rawExport(pair, 0))
		}
		out[name] = collapse(name, e)
	})
	return out
}

func (m *Module) rawExportsFromGetters() Map[*javascript.Node] {
	out := make(Map[*javascript.Node])
	m.getters(func(key, _, returned *javascript.Node) {
		if returned == nil {
			return
		}
		if _, ok := m.storeExports(returned, nil); ok {
			m.logger.Warn("store exported through a getter; raw export map does not expand stores", "export", m.keyText(key))
		}
		if class, ok := m.classExports(returned, []*javascript.Node{key}); ok {
			out[Named(m.keyText(key))] = Entry[*javascript.Node]{Members: class}
			return
		}
		out[Named(m.keyText(key))] = m.rawExport(returned, 0)
	})
	return out
}

// exportAssignments yields `<param>.name = value` statements of a module
// function parameter, where chain is [param, name, ...].
func (m *Module) exportAssignments(param int, yield func(chain []*javascript.Node, member, value *javascript.Node)) {
	for _, use := range m.paramUses(param) {
		member := javascript.LastParent(use, javascript.IsMember)
		if member == nil || use.Field != "object" {
			continue
		}
		assign := member.Parent
		if !assign.Is(javascript.KindAssignment) || member.Field != "left" {
			continue
		}
		chain := javascript.FlattenMember(member)
		if len(chain) < 2 || chain[0] != use {
			continue
		}
		yield(chain, member, assign.ChildByField("right"))
	}
}

func (m *Module) exportsFromExportsParam() Map[textpos.Range] {
	out := make(Map[textpos.Range])
	m.exportAssignments(paramExports, func(chain []*javascript.Node, _, value *javascript.Node) {
		if len(chain) != 2 {
			return
		}
		out[Named(m.text(chain[1]))] = Entry[textpos.Range]{Locs: m.assignedRanges(chain[1], value)}
	})
	return out
}

// assignedRanges returns the export location of `exports.prop = value`:
// prop, followed by value or, for an identifier naming a function, value
// and the function's declaration.
func (m *Module) assignedRanges(prop, value *javascript.Node) []textpos.Range {
	locs := []textpos.Range{m.src.RangeOf(prop)}
	switch {
	case javascript.IsIdentifier(value):
		locs = append(locs, m.src.RangeOf(value))
		if def, ok := m.src.RangeOfFunctionDef(value); ok {
			locs = append(locs, def)
		}
	case javascript.IsFunctionLike(value) && value.ChildByField("name") == nil:
		locs = append(locs, m.src.RangeOfAnonFunction(value))
	default:
		locs = append(locs, m.src.RangeOf(value))
	}
	return locs
}

func (m *Module) rawExportsFromExportsParam() Map[*javascript.Node] {
	out := make(Map[*javascript.Node])
	m.exportAssignments(paramExports, func(chain []*javascript.Node, _, value *javascript.Node) {
		if len(chain) != 2 {
			return
		}
		out[Named(m.text(chain[1]))] = Entry[*javascript.Node]{Locs: []*javascript.Node{value}}
	})
	return out
}

func (m *Module) exportsFromModuleExports() Map[textpos.Range] {
	out := make(Map[textpos.Range])
	var whole *javascript.Node
	m.exportAssignments(paramModule, func(chain []*javascript.Node, _, value *javascript.Node) {
		if m.text(chain[1]) != "exports" {
			return
		}
		switch {
		case len(chain) == 2 && whole == nil:
			whole = value
		case len(chain) == 3:
			out[Named(m.text(chain[2]))] = Entry[textpos.Range]{Locs: m.assignedRanges(chain[2], value)}
		}
	})
	if whole == nil {
		return out
	}

	var result Map[textpos.Range]
	if class, ok := m.classExports(whole, nil); ok {
		result = Map[textpos.Range]{DefaultKey: {Members: m.toRangeMap(class)}}
	} else if store, ok := m.storeExports(whole, nil); ok {
		result = Map[textpos.Range]{DefaultKey: {Members: store}}
	} else if e := m.toRanges(m.rawExport(whole, 0)); e.Nested() {
		result = e.Members
	} else {
		result = Map[textpos.Range]{DefaultKey: e}
	}
	// `e.exports.X = v` next to `e.exports = value` adds X to the value.
	for k, e := range out {
		if _, ok := result[k]; ok {
			m.logger.Debug("named export replaces a member of the exported value", "export", k.String())
		}
		result[k] = e
	}
	return result
}

func (m *Module) rawExportsFromModuleExports() Map[*javascript.Node] {
	out := make(Map[*javascript.Node])
	m.exportAssignments(paramModule, func(chain []*javascript.Node, _, value *javascript.Node) {
		if m.text(chain[1]) != "exports" {
			return
		}
		name := DefaultKey
		if len(chain) > 2 {
			name = Named(m.text(chain[2]))
		}
		out[name] = Entry[*javascript.Node]{Locs: []*javascript.Node{value}}
	})
	return out
}

// rawExport follows an exported expression to the nodes that define it.
// Objects become nested maps with the object's "{" as their default; other
// expressions become a flat list.
func (m *Module) rawExport(n *javascript.Node, depth int) Entry[*javascript.Node] {
	flat := func(nodes ...*javascript.Node) Entry[*javascript.Node] {
		return Entry[*javascript.Node]{Locs: nodes}
	}
	if depth > maxExportDepth {
		m.logger.Warn("export nesting too deep", "at", m.src.RangeOf(n).String())
		return flat(n)
	}
	switch {
	case n.Is(javascript.KindObject):
		return m.rawObjectExport(n, depth)

	case javascript.IsLiteral(n):
		return flat(n)

	case n.Is(javascript.KindPair):
		key := n.ChildByField("key")
		value := m.rawExport(n.ChildByField("value"), depth+1)
		if value.Nested() {
			return Entry[*javascript.Node]{Members: Map[*javascript.Node]{Named(m.keyText(key)): value}}
		}
		return flat(append([]*javascript.Node{key}, value.Locs...)...)

	case javascript.IsFunctionLike(n):
		body := n.ChildByField("body")
		if javascript.IsIdentifier(body) || javascript.IsMember(body) {
			if e := m.rawExport(body, depth+1); !e.empty() {
				return e
			}
		} else if len(javascript.Statements(n)) == 1 {
			if ret := javascript.FindReturnIdentifier(n); ret != nil {
				if e := m.rawExport(ret, depth+1); !e.empty() {
					return e
				}
			}
		}
		if name := n.ChildByField("name"); name != nil {
			return flat(name)
		}
		return flat(n)

	case javascript.IsCall(n):
		return flat(n)

	case javascript.IsIdentifier(n):
		trail := m.src.UnwrapVariableDeclaration(n)
		if len(trail) == 0 {
			m.logger.Warn("cannot resolve exported identifier", "name", m.text(n))
			return Entry[*javascript.Node]{}
		}
		last := trail[len(trail)-1]
		init := javascript.VariableInitializer(last)
		if init == nil {
			return flat(last)
		}
		return m.rawExport(init, depth+1)
	}
	return flat(n)
}

func (m *Module) rawObjectExport(obj *javascript.Node, depth int) Entry[*javascript.Node] {
	members := make(Map[*javascript.Node])
	for _, prop := range obj.NamedChildren() {
		switch prop.Kind {
		case javascript.KindSpread:
			inner := prop.NamedChildren()
			if len(inner) == 0 {
				continue
			}
			if !javascript.IsIdentifier(inner[0]) {
				m.logger.Warn("spread of a non-identifier in export object", "text", m.text(inner[0]))
			}
			spread := m.rawExport(inner[0], depth+1)
			if !spread.Nested() {
				m.logger.Warn("spread does not resolve to an object", "text", m.text(inner[0]))
				continue
			}
			for k, v := range spread.Members {
				if !k.IsDefault() {
					members[k] = v
				}
			}
		case javascript.KindPair:
			members[Named(m.keyText(prop.ChildByField("key")))] = m.rawExport(prop, depth+1)
		case javascript.KindShorthandProperty:
			members[Named(m.text(prop))] = Entry[*javascript.Node]{Locs: []*javascript.Node{prop}}
		case javascript.KindMethodDefinition:
			members[Named(m.keyText(prop.ChildByField("name")))] = m.rawExport(prop, depth+1)
		}
	}
	if len(members) > 0 {
		members[DefaultKey] = Entry[*javascript.Node]{Locs: []*javascript.Node{obj.FirstToken()}}
	}
	return Entry[*javascript.Node]{Members: members}
}

func (m *Module) rangeOfExport(n *javascript.Node) textpos.Range {
	if javascript.IsFunctionLike(n) && n.ChildByField("name") == nil {
		return m.src.RangeOfAnonFunction(n)
	}
	return m.src.RangeOf(n)
}

func (m *Module) toRanges(e Entry[*javascript.Node]) Entry[textpos.Range] {
	if e.Nested() {
		return Entry[textpos.Range]{Members: m.toRangeMap(e.Members)}
	}
	locs := make([]textpos.Range, 0, len(e.Locs))
	for _, n := range e.Locs {
		locs = append(locs, m.rangeOfExport(n))
	}
	return Entry[textpos.Range]{Locs: locs}
}

func (m *Module) toRangeMap(raw Map[*javascript.Node]) Map[textpos.Range] {
	out := make(Map[textpos.Range], len(raw))
	for k, v := range raw {
		out[k] = m.toRanges(v)
	}
	return out
}
