// Package globalenv decodes the environment object an application page
// assigns to a global, e.g. `window.GLOBAL_ENV = {...}`, into plain values
// without evaluating any code.
package globalenv

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/imyousuf/PackEagle/internal/parser/javascript"
)

// DefaultPath is the global the environment object is assigned to.
const DefaultPath = "window.GLOBAL_ENV"

// ErrNotFound is returned when the text has no assignment of an object
// literal to the configured global path.
var ErrNotFound = errors.New("global environment object not found")

// Env is a decoded environment object.
type Env struct {
	*Object
	// Unreadable lists keys that could not be decoded at any depth: computed
	// keys, spreads, shorthand properties and methods.
	Unreadable []string
}

// BuildID returns SENTRY_TAGS.buildId when it is a string.
func (e *Env) BuildID() (string, bool) {
	tags, ok := e.Get("SENTRY_TAGS")
	if !ok {
		return "", false
	}
	obj, ok := tags.(*Object)
	if !ok {
		return "", false
	}
	id, ok := obj.Get("buildId")
	if !ok {
		return "", false
	}
	s, ok := id.(String)
	return string(s), ok
}

type options struct {
	path   string
	logger *slog.Logger
}

// Option configures Decode.
type Option func(*options)

// WithPath sets the global path the object is assigned to.
func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithLogger sets the logger for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Decode finds the first top-level statement assigning to the global path
// and decodes the object literal on its right side. Values it cannot decode
// become Opaque and keys it cannot read are collected in Env.Unreadable;
// neither fails the decode.
func Decode(text string, opts ...Option) (*Env, error) {
	o := options{path: DefaultPath}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if !strings.Contains(text, o.path) {
		return nil, fmt.Errorf("%w: text does not mention %s", ErrNotFound, o.path)
	}
	src, err := javascript.Parse(text)
	if err != nil {
		return nil, err
	}

	assign := findAssignment(src, o.path)
	if assign == nil {
		return nil, fmt.Errorf("%w: no top-level assignment to %s", ErrNotFound, o.path)
	}
	if assign.Kind != javascript.KindAssignment {
		op := src.NodeText(assign.ChildByField("operator"))
		return nil, fmt.Errorf("%w: expected = assignment to %s, got %s", ErrNotFound, o.path, op)
	}
	right := assign.ChildByField("right")
	if !right.Is(javascript.KindObject) {
		return nil, fmt.Errorf("%w: %s is not assigned an object literal", ErrNotFound, o.path)
	}

	d := &decoder{src: src, logger: o.logger}
	env := &Env{Object: d.object(right)}
	env.Unreadable = d.unreadable
	if len(env.Unreadable) > 0 {
		o.logger.Debug("unreadable environment keys", "count", len(env.Unreadable))
	}
	return env, nil
}

func findAssignment(src *javascript.Source, path string) *javascript.Node {
	for _, stmt := range src.Root().NamedChildren() {
		if stmt.Kind != javascript.KindExpressionStatement {
			continue
		}
		for _, expr := range stmt.NamedChildren() {
			if !javascript.IsAssignment(expr) {
				continue
			}
			if src.NodeText(expr.ChildByField("left")) == path {
				return expr
			}
		}
	}
	return nil
}

type decoder struct {
	src        *javascript.Source
	logger     *slog.Logger
	unreadable []string
}

func (d *decoder) object(n *javascript.Node) *Object {
	obj := &Object{}
	for _, prop := range n.NamedChildren() {
		if prop.Kind != javascript.KindPair {
			d.unreadable = append(d.unreadable, d.propName(prop))
			continue
		}
		key, ok := d.key(prop.ChildByField("key"))
		if !ok {
			d.unreadable = append(d.unreadable, d.src.NodeText(prop.ChildByField("key")))
			continue
		}
		obj.Members = append(obj.Members, Member{Key: key, Value: d.value(prop.ChildByField("value"))})
	}
	return obj
}

func (d *decoder) propName(prop *javascript.Node) string {
	switch prop.Kind {
	case javascript.KindShorthandProperty:
		return d.src.NodeText(prop)
	case javascript.KindMethodDefinition:
		return d.src.NodeText(prop.ChildByField("name"))
	}
	return "<unknown>"
}

func (d *decoder) key(n *javascript.Node) (string, bool) {
	switch {
	case n.Is(javascript.KindPropertyIdentifier), n.Is(javascript.KindNumber):
		return d.src.NodeText(n), true
	case n.Is(javascript.KindString):
		return d.str(n), true
	}
	return "", false
}

func (d *decoder) value(n *javascript.Node) Value {
	switch n.Kind {
	case javascript.KindString:
		return String(d.str(n))
	case javascript.KindNumber:
		return d.number(n)
	case javascript.KindTrue:
		return Bool(true)
	case javascript.KindFalse:
		return Bool(false)
	case javascript.KindNull:
		return Null{}
	case javascript.KindTemplateString:
		if javascript.IsLiteral(n) {
			return String(d.template(n))
		}
	case javascript.KindObject:
		return d.object(n)
	case javascript.KindArray:
		elems := n.NamedChildren()
		arr := make(Array, 0, len(elems))
		for _, e := range elems {
			arr = append(arr, d.value(e))
		}
		return arr
	}
	return Opaque{Source: d.src.NodeText(n)}
}

func (d *decoder) number(n *javascript.Node) Value {
	text := strings.ReplaceAll(d.src.NodeText(n), "_", "")
	if digits, ok := strings.CutSuffix(text, "n"); ok {
		if v, err := strconv.ParseInt(digits, 0, 64); err == nil {
			return BigInt(strconv.FormatInt(v, 10))
		}
		return BigInt(digits)
	}
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") {
		if v, err := strconv.ParseInt(text, 0, 64); err == nil {
			return Number(v)
		}
	} else if v, err := strconv.ParseFloat(text, 64); err == nil {
		return Number(v)
	}
	d.logger.Debug("undecodable number literal", "text", text)
	return Opaque{Source: d.src.NodeText(n)}
}

// str decodes the fragments and escape sequences of a string literal.
func (d *decoder) str(n *javascript.Node) string {
	var b strings.Builder
	for _, c := range n.Children {
		switch c.Type {
		case "string_fragment":
			b.WriteString(d.src.NodeText(c))
		case "escape_sequence":
			b.WriteString(unescape(d.src.NodeText(c)))
		}
	}
	return b.String()
}

// template decodes a substitution-free template literal. Its raw characters
// are not child nodes, so the text between escape sequences is copied as is.
func (d *decoder) template(n *javascript.Node) string {
	text := d.src.Text()
	var b strings.Builder
	pos := n.Start + 1
	for _, c := range n.Children {
		if c.Type != "escape_sequence" {
			continue
		}
		b.WriteString(text[pos:c.Start])
		b.WriteString(unescape(text[c.Start:c.End]))
		pos = c.End
	}
	if end := n.End - 1; pos < end {
		b.WriteString(text[pos:end])
	}
	return b.String()
}

func unescape(esc string) string {
	if len(esc) < 2 {
		return esc
	}
	switch body := esc[1:]; {
	case body == "\n" || body == "\r\n" || body == "\r":
		return ""
	case strings.HasPrefix(body, "u{") && strings.HasSuffix(body, "}"):
		if r, err := strconv.ParseUint(body[2:len(body)-1], 16, 32); err == nil && utf8.ValidRune(rune(r)) {
			return string(rune(r))
		}
	case body == "0":
		return "\x00"
	default:
		if r, _, tail, err := strconv.UnquoteChar(esc, '"'); err == nil && tail == "" {
			return string(r)
		}
		if r, _, tail, err := strconv.UnquoteChar(esc, '\''); err == nil && tail == "" {
			return string(r)
		}
		return body
	}
	return esc
}
