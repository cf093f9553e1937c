package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/imyousuf/PackEagle/internal/textpos"
	"github.com/imyousuf/PackEagle/internal/webpack"
)

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parsePosition parses a zero-based "line:character" position.
func parsePosition(s string) (textpos.Position, error) {
	line, char, ok := strings.Cut(s, ":")
	if !ok {
		return textpos.Position{}, fmt.Errorf("position %q: want line:character", s)
	}
	l, err := strconv.Atoi(line)
	if err != nil || l < 0 {
		return textpos.Position{}, fmt.Errorf("position %q: bad line", s)
	}
	c, err := strconv.Atoi(char)
	if err != nil || c < 0 {
		return textpos.Position{}, fmt.Errorf("position %q: bad character", s)
	}
	return textpos.Pos(l, c), nil
}

// formatLocation renders a location as path:range, or as the module id when
// the location has no file.
func formatLocation(l webpack.Location) string {
	if l.Inline() {
		return fmt.Sprintf("module %s:%s", l.ModuleID, l.Range)
	}
	return fmt.Sprintf("%s:%s", l.FilePath, l.Range)
}

func printLocations(out io.Writer, locs []webpack.Location) {
	if len(locs) == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}
	fmt.Fprintf(out, "%-10s  %s\n", "Module", "Location")
	fmt.Fprintf(out, "%-10s  %s\n", "----------", "--------")
	for _, l := range locs {
		fmt.Fprintf(out, "%-10s  %s\n", l.ModuleID, formatLocation(l))
	}
	fmt.Fprintf(out, "\n%d result(s)\n", len(locs))
}

// shiftExports returns m with every range moved by n lines.
func shiftExports(m webpack.Map[textpos.Range], n int) webpack.Map[textpos.Range] {
	if n == 0 {
		return m
	}
	out := make(webpack.Map[textpos.Range], len(m))
	for k, e := range m {
		if e.Nested() {
			out[k] = webpack.Entry[textpos.Range]{Members: shiftExports(e.Members, n)}
			continue
		}
		locs := make([]textpos.Range, len(e.Locs))
		for i, r := range e.Locs {
			locs[i] = r.ShiftLines(n)
		}
		out[k] = webpack.Entry[textpos.Range]{Locs: locs}
	}
	return out
}

// printExports writes an export map as an indented tree.
func printExports(out io.Writer, m webpack.Map[textpos.Range], depth int) {
	indent := strings.Repeat("  ", depth)
	for _, k := range m.Keys() {
		e := m[k]
		if e.Nested() {
			fmt.Fprintf(out, "%s%s\n", indent, k)
			printExports(out, e.Members, depth+1)
			continue
		}
		ranges := make([]string, len(e.Locs))
		for i, r := range e.Locs {
			ranges[i] = r.String()
		}
		fmt.Fprintf(out, "%s%-24s %s\n", indent, k, strings.Join(ranges, " "))
	}
}
