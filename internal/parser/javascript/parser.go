// Package javascript parses one JavaScript source text with tree-sitter and
// exposes the syntax tree, a variable binding index and the structural
// queries the webpack analyzer is built on.
package javascript

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	jsgrammar "github.com/smacker/go-tree-sitter/javascript"

	"github.com/imyousuf/PackEagle/internal/textpos"
)

// Source is a parsed JavaScript text. The tree is built eagerly; the binding
// index is computed on first use. A Source never changes after Parse returns,
// so a new Source is the only way to see different text.
type Source struct {
	text string
	doc  *textpos.Document
	root *Node

	bindOnce sync.Once
	bindings *bindingIndex
}

// Parse parses text as a JavaScript program.
func Parse(text string) (*Source, error) {
	return ParseContext(context.Background(), text)
}

// ParseContext is Parse with a context that can cancel a long parse.
func ParseContext(ctx context.Context, text string) (*Source, error) {
	psr := sitter.NewParser()
	defer psr.Close()
	psr.SetLanguage(jsgrammar.GetLanguage())

	tree, err := psr.ParseCtx(ctx, nil, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("parsing javascript: %w", err)
	}
	defer tree.Close()

	cursor := sitter.NewTreeCursor(tree.RootNode())
	defer cursor.Close()

	return &Source{
		text: text,
		doc:  textpos.NewDocument(text),
		root: convert(cursor, nil),
	}, nil
}

// convert copies the node under the cursor and all its descendants into an
// owned tree, so the tree-sitter tree can be released right away.
func convert(c *sitter.TreeCursor, parent *Node) *Node {
	sn := c.CurrentNode()
	n := &Node{
		Type:   sn.Type(),
		Field:  c.CurrentFieldName(),
		Start:  int(sn.StartByte()),
		End:    int(sn.EndByte()),
		Parent: parent,
	}
	n.Kind = kindOf(n.Type, sn.IsNamed())
	if c.GoToFirstChild() {
		for {
			n.Children = append(n.Children, convert(c, n))
			if !c.GoToNextSibling() {
				break
			}
		}
		c.GoToParent()
	}
	return n
}

// Root returns the program node.
func (s *Source) Root() *Node { return s.root }

// Text returns the source text.
func (s *Source) Text() string { return s.text }

// Document returns the position table of the source text.
func (s *Source) Document() *textpos.Document { return s.doc }

// NodeText returns the source text spanned by n.
func (s *Source) NodeText(n *Node) string {
	if n == nil {
		return ""
	}
	return s.text[n.Start:n.End]
}

// OffsetAt converts a position in the source to a byte offset.
func (s *Source) OffsetAt(p textpos.Position) int { return s.doc.OffsetAt(p) }

// PositionAt converts a byte offset in the source to a position.
func (s *Source) PositionAt(offset int) textpos.Position { return s.doc.PositionAt(offset) }

// RangeFromOffsets converts raw byte offsets to a range. Use RangeOf for
// nodes.
func (s *Source) RangeFromOffsets(start, end int) textpos.Range {
	return s.doc.RangeAt(start, end)
}

// RangeOf returns the range a node spans. Node offsets never include
// leading whitespace or comments.
func (s *Source) RangeOf(n *Node) textpos.Range {
	return s.doc.RangeAt(n.Start, n.End)
}

// RangeOfAnonFunction returns the header of a function: from its start up to
// the end of the token preceding its body.
func (s *Source) RangeOfAnonFunction(fn *Node) textpos.Range {
	end := fn.End
	var prev *Node
	for _, c := range fn.Children {
		if c.Field == "body" {
			if prev != nil {
				end = prev.End
			} else {
				end = c.Start
			}
			break
		}
		if c.Kind != KindComment {
			prev = c
		}
	}
	return s.doc.RangeAt(fn.Start, end)
}

// RangeOfFunctionDef returns the range of the single declaration of a
// function binding. The boolean is false when ident does not resolve to
// exactly one declaration, or that declaration does not name a function.
func (s *Source) RangeOfFunctionDef(ident *Node) (textpos.Range, bool) {
	b := s.BindingOf(ident)
	if b == nil || len(b.Declarations) != 1 {
		return textpos.Range{}, false
	}
	decl := b.Declarations[0]
	if decl.Field != "name" || !IsFunctionLike(decl.Parent) {
		return textpos.Range{}, false
	}
	return s.RangeOf(decl), true
}

// TokenAt returns the token at or following a position.
func (s *Source) TokenAt(p textpos.Position) *Node {
	return s.TokenAtOffset(s.doc.OffsetAt(p))
}

// TokenAtOffset returns the deepest lexical token that contains or follows
// offset, or nil when nothing follows it. String, template and regex
// literals count as one token.
func (s *Source) TokenAtOffset(offset int) *Node {
	if offset < 0 || offset >= s.root.End {
		return nil
	}
	return tokenAfter(s.root, offset)
}

// tokenAfter searches the children of n in order. A child that holds only
// comments past offset yields nothing and the search goes on with its next
// sibling.
func tokenAfter(n *Node, offset int) *Node {
	for _, c := range n.Children {
		if c.End <= offset || c.Kind == KindComment {
			continue
		}
		if isToken(c) {
			return c
		}
		if tok := tokenAfter(c, offset); tok != nil {
			return tok
		}
	}
	return nil
}

func isToken(n *Node) bool {
	if len(n.Children) == 0 {
		return true
	}
	switch n.Kind {
	case KindString, KindTemplateString, KindRegex:
		return true
	}
	return false
}
