// Package view computes the visible slice of a large ordered collection.
// It is pure index arithmetic: cost is O(1) in the collection size, and it
// never touches the collection itself.
package view

// Range is the half-open index interval [Start, End) that must be
// materialized on screen.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether index i falls inside the range.
func (r Range) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

// Visible computes the minimal contiguous index range intersecting the
// viewport, padded by buffer items on each side so fast scrolling does not
// expose unpopulated rows. All extents are in the same unit (pixels, rows).
//
// total is the collection length, itemExtent the fixed per-item extent,
// viewportExtent the viewport size, and scrollOffset the distance scrolled
// from the top. Degenerate inputs yield an empty range at the origin.
func Visible(total, itemExtent, viewportExtent, scrollOffset, buffer int) Range {
	if total <= 0 || itemExtent <= 0 || viewportExtent <= 0 {
		return Range{}
	}
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if buffer < 0 {
		buffer = 0
	}

	first := scrollOffset / itemExtent
	// Last index whose extent intersects the viewport bottom edge.
	last := (scrollOffset + viewportExtent - 1) / itemExtent

	first -= buffer
	last += buffer

	if first < 0 {
		first = 0
	}
	if last > total-1 {
		last = total - 1
	}
	if first > total-1 {
		first = total - 1
	}

	return Range{Start: first, End: last + 1}
}
