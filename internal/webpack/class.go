package webpack

import (
	"github.com/imyousuf/PackEagle/internal/parser/javascript"
	"github.com/imyousuf/PackEagle/internal/textpos"
)

// classExports expands an exported identifier that names a class
// declaration into its members. The default entry is extra followed by
// the class name and the constructor.
func (m *Module) classExports(n *javascript.Node, extra []*javascript.Node) (Map[*javascript.Node], bool) {
	if !javascript.IsIdentifier(n) {
		return nil, false
	}
	b := m.src.BindingOf(n)
	if b == nil || len(b.Declarations) == 0 {
		return nil, false
	}
	if len(b.Declarations) > 1 {
		m.logger.Warn("exported class has more than one declaration", "name", m.text(n))
		return nil, false
	}
	decl := b.Declarations[0]
	if decl.Field != "name" || !decl.Parent.Is(javascript.KindClassDeclaration) {
		return nil, false
	}
	return m.classMembers(decl.Parent, extra), true
}

func (m *Module) classMembers(class *javascript.Node, extra []*javascript.Node) Map[*javascript.Node] {
	def := append([]*javascript.Node(nil), extra...)
	if name := class.ChildByField("name"); name != nil {
		def = append(def, name)
	} else {
		def = append(def, class.FirstToken())
	}
	out := make(Map[*javascript.Node])
	for _, member := range class.ChildByField("body").NamedChildren() {
		switch member.Kind {
		case javascript.KindMethodDefinition:
			name := member.ChildByField("name")
			if m.text(name) == "constructor" {
				def = append(def, name)
				continue
			}
			if member.ChildByField("body") != nil {
				out[Named(m.keyText(name))] = Entry[*javascript.Node]{Locs: []*javascript.Node{name}}
			}
		case javascript.KindFieldDefinition:
			prop := member.ChildByField("property")
			out[Named(m.keyText(prop))] = Entry[*javascript.Node]{Locs: []*javascript.Node{prop}}
		case javascript.KindStaticBlock:
		default:
			m.logger.Debug("skipping class member", "type", member.Type)
		}
	}
	out[DefaultKey] = Entry[*javascript.Node]{Locs: def}
	return out
}

// store is a Flux store instance: `x = new S(dispatcher, {EVENT: handler})`
// where S is a class extending a store base class.
type store struct {
	// instance is the `new` callee, then the class name, then the
	// constructor if the class declares one.
	instance []*javascript.Node
	methods  map[string]*javascript.Node
	props    map[string]*javascript.Node
	events   map[string][]*javascript.Node
}

// storeExports expands an exported identifier holding a store instance. The
// default entry is extra followed by the store's instance nodes; methods
// and properties map to their own exports.
func (m *Module) storeExports(n *javascript.Node, extra []textpos.Range) (Map[textpos.Range], bool) {
	s, ok := m.storeInstance(n)
	if !ok {
		return nil, false
	}

	def := append([]textpos.Range(nil), extra...)
	for _, node := range s.instance {
		def = append(def, m.src.RangeOf(node))
	}
	out := Map[textpos.Range]{DefaultKey: {Locs: def}}
	for name, method := range s.methods {
		out[Named(name)] = m.toRanges(m.rawExport(method, 0))
	}
	for name, value := range s.props {
		out[Named(name)] = m.toRanges(m.rawExport(value, 0))
	}
	return out, true
}

// storeInstance parses the store held by identifier n, which must be
// assigned exactly once.
func (m *Module) storeInstance(n *javascript.Node) (*store, bool) {
	if !javascript.IsIdentifier(n) {
		return nil, false
	}
	b := m.src.BindingOf(n)
	if b == nil {
		return nil, false
	}
	var assigned []*javascript.Node
	for _, id := range append(append([]*javascript.Node(nil), b.Uses...), b.Declarations...) {
		if javascript.AssignedValue(id) != nil {
			assigned = append(assigned, id)
		}
	}
	switch len(assigned) {
	case 0:
		return nil, false
	case 1:
	default:
		m.logger.Warn("store variable assigned more than once", "name", m.text(n))
		return nil, false
	}
	init := javascript.AssignedValue(assigned[0])
	if !init.Is(javascript.KindNew) {
		return nil, false
	}
	return m.parseStore(init)
}

func (m *Module) parseStore(newExpr *javascript.Node) (*store, bool) {
	s := &store{
		methods: make(map[string]*javascript.Node),
		props:   make(map[string]*javascript.Node),
		events:  make(map[string][]*javascript.Node),
	}
	if args := m.args(newExpr); len(args) == 2 {
		m.parseStoreEvents(args[1], s)
	} else if len(args) != 0 {
		m.logger.Debug("store constructed without an event object", "args", len(args))
	}

	callee := newExpr.ChildByField("constructor")
	if !javascript.IsIdentifier(callee) {
		return nil, false
	}
	s.instance = append(s.instance, callee)
	b := m.src.BindingOf(callee)
	if b == nil || len(b.Declarations) == 0 {
		return nil, false
	}
	if len(b.Declarations) > 1 {
		m.logger.Warn("store class has more than one declaration", "name", m.text(callee))
		return nil, false
	}
	decl := b.Declarations[0]
	class := decl.Parent
	if decl.Field != "name" || !class.Is(javascript.KindClassDeclaration) || !hasHeritage(class) {
		return nil, false
	}
	s.instance = append(s.instance, decl)

	for _, member := range class.ChildByField("body").NamedChildren() {
		switch member.Kind {
		case javascript.KindMethodDefinition:
			name := m.keyText(member.ChildByField("name"))
			if name == "constructor" {
				s.instance = append(s.instance, member)
				continue
			}
			if member.ChildByField("body") != nil {
				s.methods[name] = member
			}
		case javascript.KindFieldDefinition:
			name := m.keyText(member.ChildByField("property"))
			value := member.ChildByField("value")
			if value == nil {
				m.logger.Warn("store property without initializer", "name", name)
				continue
			}
			s.props[name] = value
		default:
			m.logger.Debug("skipping store member", "type", member.Type)
		}
	}
	return s, true
}

// parseStoreEvents records each event handler of a store together with the
// declarations it aliases, outermost first.
func (m *Module) parseStoreEvents(obj *javascript.Node, s *store) {
	if !obj.Is(javascript.KindObject) {
		m.logger.Warn("store events are not an object literal", "text", m.text(obj))
		return
	}
	for _, prop := range obj.NamedChildren() {
		if prop.Kind != javascript.KindPair {
			m.logger.Debug("skipping store event", "type", prop.Type)
			continue
		}
		handler := prop.ChildByField("value")
		nodes := []*javascript.Node{handler}
		if javascript.IsIdentifier(handler) {
			trail := m.src.UnwrapVariableDeclaration(handler)
			for i := len(trail) - 1; i >= 0; i-- {
				nodes = append(nodes, trail[i])
			}
		}
		s.events[m.keyText(prop.ChildByField("key"))] = nodes
	}
}

func hasHeritage(class *javascript.Node) bool {
	for _, c := range class.Children {
		if c.Kind == javascript.KindClassHeritage {
			return true
		}
	}
	return false
}

// StoreEvents returns, for each store exported by the module, the event
// names it handles and the range of each handler.
func (m *Module) StoreEvents() map[string]map[string][]textpos.Range {
	out := make(map[string]map[string][]textpos.Range)
	m.getters(func(key, _, returned *javascript.Node) {
		s, ok := m.storeInstance(returned)
		if !ok || len(s.events) == 0 {
			return
		}
		events := make(map[string][]textpos.Range, len(s.events))
		for name, nodes := range s.events {
			for _, n := range nodes {
				events[name] = append(events[name], m.rangeOfExport(n))
			}
		}
		out[m.keyText(key)] = events
	})
	return out
}
