package webpack

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/imyousuf/PackEagle/internal/textpos"
)

// Key names an export. The default export is a distinct key that never
// collides with a property that happens to be called "default".
type Key struct {
	name string
	def  bool
}

// DefaultKey is the key of a module's or object's default export.
var DefaultKey = Key{def: true}

// Named returns the key of a named export.
func Named(name string) Key { return Key{name: name} }

// IsDefault reports whether k is DefaultKey.
func (k Key) IsDefault() bool { return k.def }

// Name returns the export name, or "" for DefaultKey.
func (k Key) Name() string { return k.name }

func (k Key) String() string {
	if k.def {
		return "<default>"
	}
	return k.name
}

// MarshalText renders DefaultKey as "<default>", so maps keyed by Key
// encode as JSON objects.
func (k Key) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Entry is one export: either a flat list of locations or a nested map of
// member exports.
type Entry[T any] struct {
	Locs    []T
	Members Map[T]
}

// Map is an export map keyed by export name.
type Map[T any] map[Key]Entry[T]

// Nested reports whether the entry holds member exports.
func (e Entry[T]) Nested() bool { return e.Members != nil }

func (e Entry[T]) empty() bool { return len(e.Locs) == 0 && len(e.Members) == 0 }

// MarshalJSON encodes a flat entry as an array and a nested one as an object.
func (e Entry[T]) MarshalJSON() ([]byte, error) {
	if e.Nested() {
		return json.Marshal(e.Members)
	}
	if e.Locs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e.Locs)
}

// Keys returns the keys of m with DefaultKey first and the rest sorted.
func (m Map[T]) Keys() []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		switch {
		case a.def == b.def:
			return strings.Compare(a.name, b.name)
		case a.def:
			return -1
		}
		return 1
	})
	return keys
}

// contains reports whether any range in e, at any depth, contains p.
func (e Entry[T]) contains(p textpos.Position, rangeOf func(T) textpos.Range) bool {
	for _, l := range e.Locs {
		if rangeOf(l).Contains(p) {
			return true
		}
	}
	for _, sub := range e.Members {
		if sub.contains(p, rangeOf) {
			return true
		}
	}
	return false
}

// Lookup follows names into nested entries and returns the locations it
// stops at: the first flat entry, or the flat default of a nested one.
func (m Map[T]) Lookup(names ...string) []T {
	cur := m
	for _, name := range names {
		e, ok := cur[Named(name)]
		if !ok {
			return nil
		}
		if !e.Nested() {
			return e.Locs
		}
		if d, ok := e.Members[DefaultKey]; ok && !d.Nested() {
			return d.Locs
		}
		cur = e.Members
	}
	return nil
}

// collapse removes the redundant level an export like `Z: () => obj` gets
// when obj is itself keyed by Z.
func collapse[T any](cur Key, e Entry[T]) Entry[T] {
	if !e.Nested() {
		return e
	}
	if len(e.Members) == 1 {
		if child, ok := e.Members[cur]; ok {
			return collapse(cur, child)
		}
	}
	for k, v := range e.Members {
		e.Members[k] = collapse(k, v)
	}
	return e
}
