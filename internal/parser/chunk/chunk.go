// Package chunk splits a webpack chunk file into one text per module.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/imyousuf/PackEagle/internal/parser/javascript"
	"github.com/imyousuf/PackEagle/internal/webpack"
)

// ErrNoModules is returned when a chunk has no module map.
var ErrNoModules = errors.New("no module map found")

// Module is one module function cut from a chunk, with its header.
type Module struct {
	ID   string
	Text string
}

// Split finds the chunk's module map, the first object literal whose
// properties are all functions keyed by an identifier, string or number,
// and returns each module in source order. It accepts both
// `(self.webpackChunk_x = self.webpackChunk_x || []).push([[ids], {...}])`
// and a bare object literal.
func Split(ctx context.Context, text string, logger *slog.Logger) ([]Module, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	src, err := javascript.ParseContext(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("parse chunk: %w", err)
	}

	var modules []Module
	src.Root().Walk(func(n *javascript.Node) bool {
		if modules != nil {
			return false
		}
		if !n.Is(javascript.KindObject) {
			return true
		}
		found, ok := moduleMap(src, n)
		if !ok {
			return true
		}
		modules = found
		return false
	})
	if len(modules) == 0 {
		return nil, ErrNoModules
	}
	logger.Debug("split chunk", "modules", len(modules))
	return modules, nil
}

func moduleMap(src *javascript.Source, obj *javascript.Node) ([]Module, bool) {
	props := obj.NamedChildren()
	if len(props) == 0 {
		return nil, false
	}
	modules := make([]Module, 0, len(props))
	for _, p := range props {
		if !p.Is(javascript.KindPair) {
			return nil, false
		}
		value := p.ChildByField("value")
		if !javascript.IsFunctionLike(value) {
			return nil, false
		}
		id, ok := keyID(src, p.ChildByField("key"))
		if !ok {
			return nil, false
		}
		modules = append(modules, Module{ID: id, Text: webpack.FormatModule(src.NodeText(value), id)})
	}
	return modules, true
}

func keyID(src *javascript.Source, key *javascript.Node) (string, bool) {
	text := src.NodeText(key)
	switch {
	case key.Is(javascript.KindPropertyIdentifier, javascript.KindNumber):
		return text, true
	case key.Is(javascript.KindString):
		id, err := strconv.Unquote(text)
		if err != nil {
			// single quotes
			id = text[1 : len(text)-1]
		}
		return id, id != ""
	}
	return "", false
}

// Write stores each module as <id>.js in dir, creating dir if needed, and
// returns the written paths.
func Write(dir string, modules []Module) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	paths := make([]string, 0, len(modules))
	for _, m := range modules {
		if filepath.Base(m.ID) != m.ID {
			return paths, fmt.Errorf("module id %q is not a file name", m.ID)
		}
		p := filepath.Join(dir, m.ID+".js")
		if err := os.WriteFile(p, []byte(m.Text), 0o644); err != nil {
			return paths, fmt.Errorf("write module %s: %w", m.ID, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
