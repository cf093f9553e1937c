package javascript

// IsCall reports whether n is a call expression.
func IsCall(n *Node) bool { return n.Is(KindCall) }

// IsIdentifier reports whether n is a plain identifier.
func IsIdentifier(n *Node) bool { return n.Is(KindIdentifier) }

// IsMember reports whether n is a dotted property access.
func IsMember(n *Node) bool { return n.Is(KindMember) }

// IsFunctionLike reports whether n introduces a function body: function
// expressions and declarations, arrows, and class methods and accessors.
func IsFunctionLike(n *Node) bool {
	return n.Is(KindFunction, KindGeneratorFunction, KindArrowFunction, KindFunctionDeclaration, KindMethodDefinition)
}

// IsLiteral reports whether n is a string, number, bigint, regex or
// substitution-free template literal.
func IsLiteral(n *Node) bool {
	switch {
	case n == nil:
		return false
	case n.Kind == KindString, n.Kind == KindNumber, n.Kind == KindRegex:
		return true
	case n.Kind == KindTemplateString:
		for _, c := range n.Children {
			if c.Kind == KindTemplateSubstitution {
				return false
			}
		}
		return true
	}
	return false
}

// IsAssignment reports whether n is an assignment with any of the plain,
// arithmetic, bitwise or logical assignment operators.
func IsAssignment(n *Node) bool { return n.Is(KindAssignment, KindAugmentedAssignment) }

// IsVariableAssignmentLike reports whether n is a declarator that binds an
// identifier to an initializer, or an assignment expression.
func IsVariableAssignmentLike(n *Node) bool {
	if n.Is(KindVariableDeclarator) {
		return n.ChildByField("name").Is(KindIdentifier) && n.ChildByField("value") != nil
	}
	return IsAssignment(n)
}

// AssignedValue returns the value ident receives when it is the name of an
// initialized declarator or the left side of an assignment, and nil
// otherwise.
func AssignedValue(ident *Node) *Node {
	if ident == nil || ident.Parent == nil {
		return nil
	}
	p := ident.Parent
	switch {
	case p.Kind == KindVariableDeclarator && ident.Field == "name":
		return p.ChildByField("value")
	case IsAssignment(p) && ident.Field == "left":
		return p.ChildByField("right")
	}
	return nil
}

// VariableInitializer returns the initializer of a declarator whose name is
// decl. decl must be the declaring identifier itself, not a use.
func VariableInitializer(decl *Node) *Node {
	if decl == nil || decl.Field != "name" || !decl.Parent.Is(KindVariableDeclarator) {
		return nil
	}
	return decl.Parent.ChildByField("value")
}

// FindParent returns the first of n and its ancestors that satisfies pred.
func FindParent(n *Node, pred func(*Node) bool) *Node {
	for ; n != nil; n = n.Parent {
		if pred(n) {
			return n
		}
	}
	return nil
}

// LastParent climbs from n through consecutive ancestors that satisfy pred
// and returns the topmost one. It returns n itself when only n matches, and
// nil when n does not match or has no parent.
func LastParent(n *Node, pred func(*Node) bool) *Node {
	if n == nil || n.Parent == nil {
		return nil
	}
	for n.Parent != nil && pred(n.Parent) {
		n = n.Parent
	}
	if !pred(n) {
		return nil
	}
	return n
}

// FlattenMember turns a.b.c into [a, b, c]. It returns nil when n is not a
// member expression or the chain is not rooted at an identifier.
func FlattenMember(n *Node) []*Node {
	if !IsMember(n) {
		return nil
	}
	var props []*Node
	cur := n
	for IsMember(cur) {
		props = append(props, cur.ChildByField("property"))
		cur = cur.ChildByField("object")
	}
	if !IsIdentifier(cur) {
		return nil
	}
	out := make([]*Node, 0, len(props)+1)
	out = append(out, cur)
	for i := len(props) - 1; i >= 0; i-- {
		out = append(out, props[i])
	}
	return out
}

// LeadingIdentifier returns, for any node of an access chain like
// one.b.three, the root identifier and the first property: (one, b). The
// property is nil when the root has none, and both are nil when the chain
// is not rooted at an identifier.
func LeadingIdentifier(n *Node) (root, prop *Node) {
	top := LastParent(n, IsMember)
	if top == nil {
		return nil, nil
	}
	inner := top
	for IsMember(inner.ChildByField("object")) {
		inner = inner.ChildByField("object")
	}
	obj := inner.ChildByField("object")
	if !IsIdentifier(obj) {
		return nil, nil
	}
	if p := inner.ChildByField("property"); p.Is(KindPropertyIdentifier) {
		return obj, p
	}
	return obj, nil
}

// FindReturnIdentifier returns the identifier a function returns, either as
// an arrow's expression body or as the last statement of its block.
func FindReturnIdentifier(fn *Node) *Node {
	if r := returnedExpression(fn); IsIdentifier(r) {
		return r
	}
	return nil
}

// FindReturnMember is FindReturnIdentifier for returned property accesses
// such as a.b or a.b.c.
func FindReturnMember(fn *Node) *Node {
	if r := returnedExpression(fn); IsMember(r) {
		return r
	}
	return nil
}

func returnedExpression(fn *Node) *Node {
	body := fn.ChildByField("body")
	if body == nil {
		return nil
	}
	if body.Kind != KindStatementBlock {
		return body
	}
	stmts := body.NamedChildren()
	if len(stmts) == 0 {
		return nil
	}
	last := stmts[len(stmts)-1]
	if last.Kind != KindReturn {
		return nil
	}
	exprs := last.NamedChildren()
	if len(exprs) == 0 {
		return nil
	}
	return exprs[0]
}

// Statements returns the statements of a function's block body, or nil for
// an expression-bodied arrow.
func Statements(fn *Node) []*Node {
	body := fn.ChildByField("body")
	if !body.Is(KindStatementBlock) {
		return nil
	}
	return body.NamedChildren()
}

// UnwrapVariableDeclaration follows straight-line aliasing such as
// `const b = a; const c = b;` from ident back to the ultimate declaration.
// The chain starts at ident's own declaration and ends at the declaration
// whose initializer is not a bare identifier. It returns nil, dropping any
// partial chain, when a hop has zero or more than one declaration.
func (s *Source) UnwrapVariableDeclaration(ident *Node) []*Node {
	var chain []*Node
	seen := make(map[*Node]bool)
	cur := ident
	for {
		b := s.BindingOf(cur)
		if b == nil || len(b.Declarations) != 1 {
			return nil
		}
		decl := b.Declarations[0]
		if seen[decl] {
			break
		}
		seen[decl] = true
		chain = append(chain, decl)
		init := VariableInitializer(decl)
		if !IsIdentifier(init) {
			break
		}
		cur = init
	}
	return chain
}
