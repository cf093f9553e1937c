// Package textpos converts between byte offsets and zero-based line/character
// positions, and provides ordered ranges over a text buffer.
package textpos

import "fmt"

// Position is a zero-based line and character (byte column) pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Pos is shorthand for Position{Line: line, Character: character}.
func Pos(line, character int) Position {
	return Position{Line: line, Character: character}
}

// Compare returns -1, 0 or 1 as p sorts before, equal to, or after o.
func (p Position) Compare(o Position) int {
	switch {
	case p.Line < o.Line:
		return -1
	case p.Line > o.Line:
		return 1
	case p.Character < o.Character:
		return -1
	case p.Character > o.Character:
		return 1
	}
	return 0
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool { return p.Compare(o) < 0 }

// BeforeOrEqual reports whether p sorts before or equal to o.
func (p Position) BeforeOrEqual(o Position) bool { return p.Compare(o) <= 0 }

// After reports whether p sorts strictly after o.
func (p Position) After(o Position) bool { return p.Compare(o) > 0 }

// ShiftLines moves p down by n lines, or up when n is negative. A position
// moved above the first line becomes the start of the text.
func (p Position) ShiftLines(n int) Position {
	if p.Line+n < 0 {
		return Position{}
	}
	return Position{Line: p.Line + n, Character: p.Character}
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

func minPos(a, b Position) Position {
	if a.Before(b) {
		return a
	}
	return b
}

func maxPos(a, b Position) Position {
	if a.After(b) {
		return a
	}
	return b
}
