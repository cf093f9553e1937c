package webpack

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/imyousuf/PackEagle/internal/parser/javascript"
	"github.com/imyousuf/PackEagle/internal/textpos"
)

const (
	moduleHeader   = "// Webpack Module "
	fullModuleMark = "//OPEN FULL MODULE:"
)

var moduleIDPattern = regexp.MustCompile(`^// Webpack Module (\d+) `)

// Parameter positions of the module function `function(module, exports, require)`.
const (
	paramModule = iota
	paramExports
	paramRequire
)

// Module is one parsed webpack module. Every derived view is computed on
// first use and cached; a Module is safe for concurrent use.
type Module struct {
	src    *javascript.Source
	opts   Options
	logger *slog.Logger

	params        func() [3]*javascript.Node
	requires      func() Deps
	rawExports    func() Map[*javascript.Node]
	exports       func() Map[textpos.Range]
	wholeReExport func() (string, bool)
}

// Parse parses a module. The text should start with the module header
// produced by FormatModule for cross-module queries to work.
func Parse(text string, opts Options) (*Module, error) {
	return ParseContext(context.Background(), text, opts)
}

// ParseContext is Parse with a context that can cancel the parse.
func ParseContext(ctx context.Context, text string, opts Options) (*Module, error) {
	src, err := javascript.ParseContext(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("parse module: %w", err)
	}
	m := &Module{src: src, opts: opts, logger: opts.logger()}
	if id, ok := m.ID(); ok {
		m.logger = m.logger.With("module", id)
	}
	m.params = sync.OnceValue(m.findParams)
	m.requires = sync.OnceValue(m.findRequires)
	m.rawExports = sync.OnceValue(m.buildRawExports)
	m.exports = sync.OnceValue(m.buildExports)
	m.wholeReExport = sync.OnceValues(m.findWholeReExport)
	return m, nil
}

// IsWebpackModule reports whether text carries a module header.
func IsWebpackModule(text string) bool {
	if strings.HasPrefix(text, moduleHeader) {
		return true
	}
	head := text
	if len(head) > 100 {
		head = head[:100]
	}
	return strings.Contains(head, fullModuleMark)
}

// FormatModule prefixes a bare module function with the header carrying
// its id. Text that already has a header is returned unchanged.
func FormatModule(text, id string) string {
	if IsWebpackModule(text) {
		return text
	}
	return moduleHeader + id + " \n0,\n" + text
}

// HeaderLines returns the number of lines FormatModule puts in front of
// text: 2 for a bare module function, 0 for a webpack module.
func HeaderLines(text string) int {
	if IsWebpackModule(text) {
		return 0
	}
	return 2
}

// ID returns the module id from the header.
func (m *Module) ID() (string, bool) {
	match := moduleIDPattern.FindStringSubmatch(m.src.Text())
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Text returns the module source.
func (m *Module) Text() string { return m.src.Text() }

// Source returns the parsed syntax of the module.
func (m *Module) Source() *javascript.Source { return m.src }

func (m *Module) findParams() [3]*javascript.Node {
	var out [3]*javascript.Node
	fn := moduleFunction(m.src.Root())
	if fn == nil {
		return out
	}
	var params []*javascript.Node
	if p := fn.ChildByField("parameter"); p != nil {
		params = []*javascript.Node{p}
	} else {
		params = fn.ChildByField("parameters").NamedChildren()
	}
	if len(params) > 3 {
		return out
	}
	for i, p := range params {
		if javascript.IsIdentifier(p) {
			out[i] = p
		}
	}
	return out
}

// moduleFunction finds the module function, looking through the statement,
// comma and parenthesized wrappers webpack emits around it.
func moduleFunction(n *javascript.Node) *javascript.Node {
	for _, c := range n.NamedChildren() {
		switch c.Kind {
		case javascript.KindExpressionStatement, javascript.KindSequence,
			javascript.KindBinary, javascript.KindParenthesized:
			return moduleFunction(c)
		case javascript.KindFunction, javascript.KindArrowFunction:
			return c
		}
	}
	return nil
}

// param returns the declaring identifier of a module function parameter.
func (m *Module) param(i int) *javascript.Node { return m.params()[i] }

// paramUses returns every use of a module function parameter.
func (m *Module) paramUses(i int) []*javascript.Node {
	decl := m.param(i)
	if decl == nil {
		return nil
	}
	b := m.src.BindingOfDeclaration(decl)
	if b == nil {
		return nil
	}
	return b.Uses
}

// HasRequire reports whether the module function declares a require
// parameter.
func (m *Module) HasRequire() bool { return m.param(paramRequire) != nil }

func (m *Module) args(call *javascript.Node) []*javascript.Node {
	return call.ChildByField("arguments").NamedChildren()
}

func (m *Module) text(n *javascript.Node) string { return m.src.NodeText(n) }

// keyText returns the export name of an object or class key, with string
// keys unquoted.
func (m *Module) keyText(key *javascript.Node) string {
	text := m.text(key)
	if key.Is(javascript.KindString) && len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}

// locator returns a function building locations for ranges of mod, the
// parsed text of module id. A file location is given relative to the
// file's own text, which lacks the header mod was parsed with when the file
// holds a bare module function.
func (m *Module) locator(ctx context.Context, id string, mod *Module) func(textpos.Range) Location {
	inline := func(r textpos.Range) Location {
		return Location{ModuleID: id, Content: mod.Text(), Range: r}
	}
	if m.opts.Cache == nil {
		return inline
	}
	path, ok := m.opts.Cache.ModuleFilePath(id)
	if !ok {
		return inline
	}
	file, err := m.opts.Cache.LatestModule(ctx, id)
	if err != nil {
		m.logger.Debug("cannot read module file, reporting inline text", "module", id, "error", err)
		return inline
	}
	shift := -HeaderLines(file)
	return func(r textpos.Range) Location {
		return Location{ModuleID: id, FilePath: path, Range: r.ShiftLines(shift)}
	}
}
