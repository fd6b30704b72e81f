package tiled

import (
	"fmt"
	"strings"
)

// Range is a half-open interval [Start, Stop) along one dimension.
type Range struct {
	Start int
	Stop  int
}

// Len returns the number of indices in the range, zero when empty.
func (r Range) Len() int {
	if r.Stop <= r.Start {
		return 0
	}
	return r.Stop - r.Start
}

// Empty reports whether r holds no indices.
func (r Range) Empty() bool { return r.Stop <= r.Start }

// Intersect returns the overlap of r and o, which may be empty.
func (r Range) Intersect(o Range) Range {
	return Range{Start: max(r.Start, o.Start), Stop: min(r.Stop, o.Stop)}
}

// Within reports whether every index of r is also an index of o.
func (r Range) Within(o Range) bool {
	return r.Start >= o.Start && r.Stop <= o.Stop
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d", r.Start, r.Stop)
}

// Ranges is an N-dimensional box, one Range per dimension. Regions, tiles
// and windows are all described by Ranges in array coordinates.
type Ranges []Range

// Box builds Ranges from start, stop pairs: Box(0, 4, 10, 20) is
// [0,4) x [10,20).
func Box(bounds ...int) Ranges {
	if len(bounds)%2 != 0 {
		panic("tiled: Box needs start, stop pairs")
	}
	rs := make(Ranges, len(bounds)/2)
	for i := range rs {
		rs[i] = Range{Start: bounds[2*i], Stop: bounds[2*i+1]}
	}
	return rs
}

// Extent returns the Ranges covering an array of the given shape.
func Extent(shape []int) Ranges {
	rs := make(Ranges, len(shape))
	for i, n := range shape {
		rs[i] = Range{Start: 0, Stop: n}
	}
	return rs
}

// Empty reports whether rs covers no cells: it has no dimensions or an
// empty one.
func (rs Ranges) Empty() bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if r.Empty() {
			return true
		}
	}
	return false
}

// Shape returns the length of each dimension.
func (rs Ranges) Shape() []int {
	shape := make([]int, len(rs))
	for i, r := range rs {
		shape[i] = r.Len()
	}
	return shape
}

// Size is the number of cells in the box.
func (rs Ranges) Size() int {
	if len(rs) == 0 {
		return 0
	}
	n := 1
	for _, r := range rs {
		n *= r.Len()
	}
	return n
}

// Start returns the lower corner of the box.
func (rs Ranges) Start() []int {
	start := make([]int, len(rs))
	for i, r := range rs {
		start[i] = r.Start
	}
	return start
}

// Intersect crops rs to o. The boolean is false when the boxes do not
// overlap or have different dimensionality.
func (rs Ranges) Intersect(o Ranges) (Ranges, bool) {
	if len(rs) != len(o) {
		return nil, false
	}
	out := make(Ranges, len(rs))
	for i := range rs {
		out[i] = rs[i].Intersect(o[i])
		if out[i].Empty() {
			return nil, false
		}
	}
	return out, true
}

// Within reports whether rs lies fully inside o in every dimension.
func (rs Ranges) Within(o Ranges) bool {
	if len(rs) != len(o) {
		return false
	}
	for i := range rs {
		if !rs[i].Within(o[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether rs and o have the same rank and bounds.
func (rs Ranges) Equal(o Ranges) bool {
	if len(rs) != len(o) {
		return false
	}
	for i := range rs {
		if rs[i] != o[i] {
			return false
		}
	}
	return true
}

func (rs Ranges) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
