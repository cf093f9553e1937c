package textpos

import (
	"sort"
	"sync"
)

// Document is an immutable text buffer with a lazily computed table of
// line-start offsets. "\n", "\r" and "\r\n" each end one line. A Document
// is safe for concurrent use.
type Document struct {
	text        string
	once        sync.Once
	lineOffsets []int
}

// NewDocument wraps text. The text is never modified afterwards.
func NewDocument(text string) *Document {
	return &Document{text: text}
}

// Text returns the document content.
func (d *Document) Text() string { return d.text }

// Len returns the length of the document in bytes.
func (d *Document) Len() int { return len(d.text) }

// LineCount returns the number of lines. Empty text has one line.
func (d *Document) LineCount() int { return len(d.offsets()) }

func (d *Document) offsets() []int {
	d.once.Do(func() { d.lineOffsets = computeLineOffsets(d.text) })
	return d.lineOffsets
}

func computeLineOffsets(text string) []int {
	offsets := []int{0}
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if !isEOL(ch) {
			continue
		}
		if ch == '\r' && i+1 < len(text) && text[i+1] == '\n' {
			i++
		}
		offsets = append(offsets, i+1)
	}
	return offsets
}

func isEOL(ch byte) bool { return ch == '\n' || ch == '\r' }

// OffsetAt converts a position to a byte offset. Out of range positions are
// clamped instead of rejected: lines past the end map to the text length,
// negative lines to zero, and characters past the end of a line to the last
// byte before its terminator.
func (d *Document) OffsetAt(p Position) int {
	offsets := d.offsets()
	if p.Line >= len(offsets) {
		return len(d.text)
	}
	if p.Line < 0 {
		return 0
	}
	lineOffset := offsets[p.Line]
	if p.Character <= 0 {
		return lineOffset
	}
	next := len(d.text)
	if p.Line+1 < len(offsets) {
		next = offsets[p.Line+1]
	}
	offset := min(lineOffset+p.Character, next)
	return d.beforeEOL(offset, lineOffset)
}

// PositionAt converts a byte offset to a position, clamping the offset into
// [0, Len()].
func (d *Document) PositionAt(offset int) Position {
	offset = max(min(offset, len(d.text)), 0)
	offsets := d.offsets()
	// index of the first line starting after offset
	high := sort.Search(len(offsets), func(i int) bool { return offsets[i] > offset })
	line := high - 1
	offset = d.beforeEOL(offset, offsets[line])
	return Position{Line: line, Character: offset - offsets[line]}
}

// RangeAt converts a pair of byte offsets to a range.
func (d *Document) RangeAt(start, end int) Range {
	return NewRange(d.PositionAt(start), d.PositionAt(end))
}

func (d *Document) beforeEOL(offset, lineOffset int) int {
	for offset > lineOffset && isEOL(d.text[offset-1]) {
		offset--
	}
	return offset
}
