package javascript

// Binding ties together every identifier that refers to one variable: the
// identifiers that declare it and the identifiers that read or write it.
// A binding with no declarations is an implicit global.
type Binding struct {
	Name         string
	Declarations []*Node
	Uses         []*Node
}

// Ambiguous reports whether the binding has more than one declaration site.
func (b *Binding) Ambiguous() bool { return len(b.Declarations) > 1 }

type scope struct {
	parent   *scope
	function bool
	names    map[string]*Binding
}

func (s *scope) functionScope() *scope {
	for s.parent != nil && !s.function {
		s = s.parent
	}
	return s
}

func (s *scope) lookup(name string) *Binding {
	for ; s != nil; s = s.parent {
		if b, ok := s.names[name]; ok {
			return b
		}
	}
	return nil
}

type bindingIndex struct {
	src     *Source
	all     []*Binding
	globals map[string]*Binding
	scopes  map[*Node]*scope
	useOf   map[*Node]*Binding
	declOf  map[*Node]*Binding
}

func (s *Source) index() *bindingIndex {
	s.bindOnce.Do(func() {
		idx := &bindingIndex{
			src:     s,
			globals: make(map[string]*Binding),
			scopes:  make(map[*Node]*scope),
			useOf:   make(map[*Node]*Binding),
			declOf:  make(map[*Node]*Binding),
		}
		top := idx.newScope(s.root, nil, true)
		idx.declareIn(s.root, top)
		idx.resolveIn(s.root, top)
		s.bindings = idx
	})
	return s.bindings
}

// Bindings returns every binding of the source, declared ones in order of
// their first declaration followed by implicit globals in order of first use.
func (s *Source) Bindings() []*Binding { return s.index().all }

// BindingOfUse returns the binding an identifier use refers to.
func (s *Source) BindingOfUse(ident *Node) *Binding { return s.index().useOf[ident] }

// BindingOfDeclaration returns the binding an identifier declares.
func (s *Source) BindingOfDeclaration(ident *Node) *Binding { return s.index().declOf[ident] }

// BindingOf returns the binding of an identifier that is either a use or a
// declaration.
func (s *Source) BindingOf(ident *Node) *Binding {
	if ident == nil {
		return nil
	}
	idx := s.index()
	if b, ok := idx.useOf[ident]; ok {
		return b
	}
	return idx.declOf[ident]
}

// IsUseOf reports whether use refers to the same binding decl belongs to.
// It is false whenever either side is nil or unknown.
func (s *Source) IsUseOf(use, decl *Node) bool {
	if use == nil || decl == nil {
		return false
	}
	bu := s.BindingOfUse(use)
	bd := s.BindingOf(decl)
	return bu != nil && bu == bd
}

func (idx *bindingIndex) newScope(n *Node, parent *scope, function bool) *scope {
	sc := &scope{parent: parent, function: function, names: make(map[string]*Binding)}
	idx.scopes[n] = sc
	return sc
}

func (idx *bindingIndex) declare(sc *scope, ident *Node) {
	name := idx.src.NodeText(ident)
	b, ok := sc.names[name]
	if !ok {
		b = &Binding{Name: name}
		sc.names[name] = b
		idx.all = append(idx.all, b)
	}
	b.Declarations = append(b.Declarations, ident)
	idx.declOf[ident] = b
}

// declarePattern declares every identifier bound by a parameter or
// destructuring pattern. Default values are left for resolution.
func (idx *bindingIndex) declarePattern(n *Node, sc *scope) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindIdentifier, KindShorthandPropertyPattern:
		idx.declare(sc, n)
	case KindObjectPattern, KindArrayPattern, KindRestPattern:
		for _, c := range n.NamedChildren() {
			idx.declarePattern(c, sc)
		}
	case KindPairPattern:
		idx.declarePattern(n.ChildByField("value"), sc)
	case KindAssignmentPattern, KindObjectAssignmentPattern:
		idx.declarePattern(n.ChildByField("left"), sc)
	}
}

func (idx *bindingIndex) declareParams(fn *Node, sc *scope) {
	if p := fn.ChildByField("parameter"); p != nil {
		idx.declarePattern(p, sc)
	}
	if ps := fn.ChildByField("parameters"); ps != nil {
		for _, p := range ps.NamedChildren() {
			idx.declarePattern(p, sc)
		}
	}
}

// declareIn is the first pass: it creates scopes and declares every binding,
// so hoisted names are known before any use is resolved.
func (idx *bindingIndex) declareIn(n *Node, sc *scope) {
	switch n.Kind {
	case KindFunctionDeclaration:
		if name := n.ChildByField("name"); name.Is(KindIdentifier) {
			idx.declare(sc, name)
		}
		sc = idx.newScope(n, sc, true)
		idx.declareParams(n, sc)
	case KindFunction, KindGeneratorFunction:
		sc = idx.newScope(n, sc, true)
		if name := n.ChildByField("name"); name.Is(KindIdentifier) {
			idx.declare(sc, name)
		}
		idx.declareParams(n, sc)
	case KindArrowFunction, KindMethodDefinition:
		sc = idx.newScope(n, sc, true)
		idx.declareParams(n, sc)
	case KindClassDeclaration:
		if name := n.ChildByField("name"); name.Is(KindIdentifier) {
			idx.declare(sc, name)
		}
	case KindClass:
		if name := n.ChildByField("name"); name.Is(KindIdentifier) {
			sc = idx.newScope(n, sc, false)
			idx.declare(sc, name)
		}
	case KindStatementBlock:
		if !IsFunctionLike(n.Parent) {
			sc = idx.newScope(n, sc, false)
		}
	case KindFor, KindSwitchBody:
		sc = idx.newScope(n, sc, false)
	case KindCatchClause:
		sc = idx.newScope(n, sc, false)
		idx.declarePattern(n.ChildByField("parameter"), sc)
	case KindForIn:
		sc = idx.newScope(n, sc, false)
		switch kind := n.ChildByField("kind"); {
		case kind == nil:
		case kind.Type == "var":
			idx.declarePattern(n.ChildByField("left"), sc.functionScope())
		default:
			idx.declarePattern(n.ChildByField("left"), sc)
		}
	case KindVariableDeclaration:
		fs := sc.functionScope()
		for _, d := range n.NamedChildren() {
			if d.Kind == KindVariableDeclarator {
				idx.declarePattern(d.ChildByField("name"), fs)
			}
		}
	case KindLexicalDeclaration:
		for _, d := range n.NamedChildren() {
			if d.Kind == KindVariableDeclarator {
				idx.declarePattern(d.ChildByField("name"), sc)
			}
		}
	}
	for _, c := range n.Children {
		idx.declareIn(c, sc)
	}
}

// resolveIn is the second pass: every identifier that is not a declaration
// is a use of the innermost visible binding of its name.
func (idx *bindingIndex) resolveIn(n *Node, sc *scope) {
	if inner, ok := idx.scopes[n]; ok {
		sc = inner
	}
	switch n.Kind {
	case KindIdentifier, KindShorthandProperty, KindShorthandPropertyPattern:
		if _, declared := idx.declOf[n]; !declared {
			idx.use(sc, n)
		}
		return
	}
	for _, c := range n.Children {
		idx.resolveIn(c, sc)
	}
}

func (idx *bindingIndex) use(sc *scope, ident *Node) {
	name := idx.src.NodeText(ident)
	b := sc.lookup(name)
	if b == nil {
		b = idx.globals[name]
		if b == nil {
			b = &Binding{Name: name}
			idx.globals[name] = b
			idx.all = append(idx.all, b)
		}
	}
	b.Uses = append(b.Uses, ident)
	idx.useOf[ident] = b
}
