package textpos

import "fmt"

// Range is an ordered pair of positions. Start never sorts after End.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// ZeroRange is the empty range at the start of a document.
var ZeroRange = Range{}

// NewRange returns the range spanning a and b in either order.
func NewRange(a, b Position) Range {
	if b.Before(a) {
		a, b = b, a
	}
	return Range{Start: a, End: b}
}

// RangeFromCoords builds a range from raw line/character coordinates.
func RangeFromCoords(startLine, startChar, endLine, endChar int) Range {
	return NewRange(Pos(startLine, startChar), Pos(endLine, endChar))
}

// ShiftLines moves both ends of r by n lines; see Position.ShiftLines.
func (r Range) ShiftLines(n int) Range {
	return Range{Start: r.Start.ShiftLines(n), End: r.End.ShiftLines(n)}
}

// Contains reports whether p lies within r. Both ends are inclusive.
func (r Range) Contains(p Position) bool {
	return !p.Before(r.Start) && !r.End.Before(p)
}

// ContainsRange reports whether o lies entirely within r.
func (r Range) ContainsRange(o Range) bool {
	return r.Contains(o.Start) && r.Contains(o.End)
}

// Intersection returns the overlap of r and o. The boolean is false when the
// ranges are disjoint; touching ranges intersect in an empty range.
func (r Range) Intersection(o Range) (Range, bool) {
	start := maxPos(r.Start, o.Start)
	end := minPos(r.End, o.End)
	if start.After(end) {
		return Range{}, false
	}
	return Range{Start: start, End: end}, true
}

// Union returns the smallest range covering both r and o.
func (r Range) Union(o Range) Range {
	if r.ContainsRange(o) {
		return r
	}
	if o.ContainsRange(r) {
		return o
	}
	return Range{Start: minPos(r.Start, o.Start), End: maxPos(r.End, o.End)}
}

// Equal reports whether r and o have the same endpoints.
func (r Range) Equal(o Range) bool { return r == o }

// IsEmpty reports whether the range starts where it ends.
func (r Range) IsEmpty() bool { return r.Start == r.End }

// IsSingleLine reports whether the range starts and ends on the same line.
func (r Range) IsSingleLine() bool { return r.Start.Line == r.End.Line }

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}
