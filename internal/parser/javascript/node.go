package javascript

// Kind is the closed set of syntax node kinds the analyzers match on. Node
// types the grammar produces that are not listed here map to KindOther and
// keep their raw tree-sitter type in Node.Type.
type Kind uint8

const (
	KindOther Kind = iota
	KindToken      // anonymous token: punctuation, keywords, operators
	KindComment
	KindProgram
	KindExpressionStatement
	KindSequence
	KindParenthesized
	KindBinary
	KindUnary
	KindTernary
	KindFunction
	KindGeneratorFunction
	KindArrowFunction
	KindFunctionDeclaration
	KindCall
	KindNew
	KindMember
	KindSubscript
	KindAssignment
	KindAugmentedAssignment
	KindVariableDeclarator
	KindLexicalDeclaration
	KindVariableDeclaration
	KindClassDeclaration
	KindClass
	KindClassHeritage
	KindClassBody
	KindMethodDefinition
	KindFieldDefinition
	KindStaticBlock
	KindObject
	KindPair
	KindShorthandProperty
	KindSpread
	KindArray
	KindObjectPattern
	KindArrayPattern
	KindPairPattern
	KindAssignmentPattern
	KindObjectAssignmentPattern
	KindRestPattern
	KindShorthandPropertyPattern
	KindIdentifier
	KindPropertyIdentifier
	KindPrivatePropertyIdentifier
	KindComputedPropertyName
	KindNumber
	KindString
	KindTemplateString
	KindTemplateSubstitution
	KindRegex
	KindTrue
	KindFalse
	KindNull
	KindUndefined
	KindThis
	KindSuper
	KindStatementBlock
	KindReturn
	KindArguments
	KindFormalParameters
	KindFor
	KindForIn
	KindCatchClause
	KindSwitchBody
)

var kindNames = map[string]Kind{
	"comment":                              KindComment,
	"program":                              KindProgram,
	"expression_statement":                 KindExpressionStatement,
	"sequence_expression":                  KindSequence,
	"parenthesized_expression":             KindParenthesized,
	"binary_expression":                    KindBinary,
	"unary_expression":                     KindUnary,
	"ternary_expression":                   KindTernary,
	"function":                             KindFunction,
	"function_expression":                  KindFunction,
	"generator_function":                   KindGeneratorFunction,
	"arrow_function":                       KindArrowFunction,
	"function_declaration":                 KindFunctionDeclaration,
	"generator_function_declaration":       KindFunctionDeclaration,
	"call_expression":                      KindCall,
	"new_expression":                       KindNew,
	"member_expression":                    KindMember,
	"subscript_expression":                 KindSubscript,
	"assignment_expression":                KindAssignment,
	"augmented_assignment_expression":      KindAugmentedAssignment,
	"variable_declarator":                  KindVariableDeclarator,
	"lexical_declaration":                  KindLexicalDeclaration,
	"variable_declaration":                 KindVariableDeclaration,
	"class_declaration":                    KindClassDeclaration,
	"class":                                KindClass,
	"class_heritage":                       KindClassHeritage,
	"class_body":                           KindClassBody,
	"method_definition":                    KindMethodDefinition,
	"field_definition":                     KindFieldDefinition,
	"class_static_block":                   KindStaticBlock,
	"object":                               KindObject,
	"pair":                                 KindPair,
	"shorthand_property_identifier":        KindShorthandProperty,
	"spread_element":                       KindSpread,
	"array":                                KindArray,
	"object_pattern":                       KindObjectPattern,
	"array_pattern":                        KindArrayPattern,
	"pair_pattern":                         KindPairPattern,
	"assignment_pattern":                   KindAssignmentPattern,
	"object_assignment_pattern":            KindObjectAssignmentPattern,
	"rest_pattern":                         KindRestPattern,
	"shorthand_property_identifier_pattern": KindShorthandPropertyPattern,
	"identifier":                           KindIdentifier,
	"property_identifier":                  KindPropertyIdentifier,
	"private_property_identifier":          KindPrivatePropertyIdentifier,
	"computed_property_name":               KindComputedPropertyName,
	"number":                               KindNumber,
	"string":                               KindString,
	"template_string":                      KindTemplateString,
	"template_substitution":                KindTemplateSubstitution,
	"regex":                                KindRegex,
	"true":                                 KindTrue,
	"false":                                KindFalse,
	"null":                                 KindNull,
	"undefined":                            KindUndefined,
	"this":                                 KindThis,
	"super":                                KindSuper,
	"statement_block":                      KindStatementBlock,
	"return_statement":                     KindReturn,
	"arguments":                            KindArguments,
	"formal_parameters":                    KindFormalParameters,
	"for_statement":                        KindFor,
	"for_in_statement":                     KindForIn,
	"catch_clause":                         KindCatchClause,
	"switch_body":                          KindSwitchBody,
}

func kindOf(nodeType string, named bool) Kind {
	if !named {
		return KindToken
	}
	if k, ok := kindNames[nodeType]; ok {
		return k
	}
	return KindOther
}

// Node is one syntax node of a parsed module. Nodes are owned Go values with
// stable identity, so they can be used as map keys.
type Node struct {
	Kind     Kind
	Type     string // raw tree-sitter node type
	Field    string // field name in the parent, if any
	Start    int    // byte offset
	End      int    // byte offset, exclusive
	Parent   *Node
	Children []*Node
}

// ChildByField returns the first child stored under the given field name.
func (n *Node) ChildByField(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// ChildrenByField returns every child stored under the given field name.
func (n *Node) ChildrenByField(field string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildren returns the children that are neither anonymous tokens nor
// comments.
func (n *Node) NamedChildren() []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Kind != KindToken && c.Kind != KindComment {
			out = append(out, c)
		}
	}
	return out
}

// FirstToken returns the first anonymous child token, e.g. the "{" of an
// object literal or the "class" keyword of a class.
func (n *Node) FirstToken() *Node {
	for _, c := range n.Children {
		if c.Kind == KindToken {
			return c
		}
	}
	return nil
}

// Is reports whether n is non-nil and of one of the given kinds.
func (n *Node) Is(kinds ...Kind) bool {
	if n == nil {
		return false
	}
	for _, k := range kinds {
		if n.Kind == k {
			return true
		}
	}
	return false
}

// Walk calls fn for n and every descendant in source order. Returning false
// from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}
