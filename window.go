package tiled

import (
	"fmt"
)

// Window is a dense block of an array held in memory in row-major (C)
// order. Origin places the block in array coordinates, so a tile read at
// offset (10, 20) has Origin [10 20] and At(10, 20) is its first cell.
type Window[T any] struct {
	Origin []int
	Shape  []int
	Data   []T
}

// NewWindow allocates a zeroed window covering bounds.
func NewWindow[T any](bounds Ranges) Window[T] {
	return Window[T]{
		Origin: bounds.Start(),
		Shape:  bounds.Shape(),
		Data:   make([]T, bounds.Size()),
	}
}

// Fill returns a window covering bounds with every cell set to v.
func Fill[T any](bounds Ranges, v T) Window[T] {
	w := NewWindow[T](bounds)
	for i := range w.Data {
		w.Data[i] = v
	}
	return w
}

// Bounds returns the array coordinates the window covers.
func (w Window[T]) Bounds() Ranges {
	rs := make(Ranges, len(w.Shape))
	for i := range w.Shape {
		rs[i] = Range{Start: w.Origin[i], Stop: w.Origin[i] + w.Shape[i]}
	}
	return rs
}

func (w Window[T]) Len() int { return len(w.Data) }

func (w Window[T]) offset(idx []int) int {
	if len(idx) != len(w.Shape) {
		panic(fmt.Sprintf("tiled: %d indices for a %d-dimensional window", len(idx), len(w.Shape)))
	}
	off := 0
	for d, i := range idx {
		local := i - w.Origin[d]
		if local < 0 || local >= w.Shape[d] {
			panic(fmt.Sprintf("tiled: index %v outside window %v", idx, w.Bounds()))
		}
		off = off*w.Shape[d] + local
	}
	return off
}

// At returns the cell at the given array coordinates.
func (w Window[T]) At(idx ...int) T {
	return w.Data[w.offset(idx)]
}

// Set writes the cell at the given array coordinates.
func (w Window[T]) Set(v T, idx ...int) {
	w.Data[w.offset(idx)] = v
}

// Slice copies the part of w covered by bounds into a new window. bounds
// must lie within w.
func (w Window[T]) Slice(bounds Ranges) (Window[T], error) {
	if !bounds.Within(w.Bounds()) {
		return Window[T]{}, fmt.Errorf("slice %v outside window %v", bounds, w.Bounds())
	}
	out := NewWindow[T](bounds)
	copyBox(out, w, bounds)
	return out, nil
}

// Paste copies the cells of src that overlap w into w and returns the
// number of cells written.
func (w Window[T]) Paste(src Window[T]) int {
	box, ok := w.Bounds().Intersect(src.Bounds())
	if !ok {
		return 0
	}
	copyBox(w, src, box)
	return box.Size()
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	n := 1
	for d := len(shape) - 1; d >= 0; d-- {
		s[d] = n
		n *= shape[d]
	}
	return s
}

// copyBox copies box from src to dst. Both windows must contain box.
func copyBox[T any](dst, src Window[T], box Ranges) {
	if box.Empty() {
		return
	}
	ds, ss := strides(dst.Shape), strides(src.Shape)
	dOff, sOff := 0, 0
	for d, r := range box {
		dOff += (r.Start - dst.Origin[d]) * ds[d]
		sOff += (r.Start - src.Origin[d]) * ss[d]
	}
	copyBoxRecursive(dst.Data, src.Data, box, ds, ss, dOff, sOff, 0)
}

func copyBoxRecursive[T any](dst, src []T, box Ranges, ds, ss []int, dOff, sOff, dim int) {
	if dim == len(box)-1 {
		// innermost dimension is contiguous in both windows
		n := box[dim].Len()
		copy(dst[dOff:dOff+n], src[sOff:sOff+n])
		return
	}
	for i := 0; i < box[dim].Len(); i++ {
		copyBoxRecursive(dst, src, box, ds, ss, dOff+i*ds[dim], sOff+i*ss[dim], dim+1)
	}
}

// Mosaic stitches parts into a single window covering bounds. Every cell
// of bounds must be covered by exactly one part: parts from neighbouring
// tiles meet at the seams without gaps or overlap.
func Mosaic[T any](bounds Ranges, parts []Window[T]) (Window[T], error) {
	out := NewWindow[T](bounds)
	written := 0
	for i, p := range parts {
		pb := p.Bounds()
		if !pb.Within(bounds) {
			return Window[T]{}, fmt.Errorf("mosaic part %v outside %v", pb, bounds)
		}
		for _, q := range parts[:i] {
			if overlap, ok := pb.Intersect(q.Bounds()); ok {
				return Window[T]{}, fmt.Errorf("mosaic parts overlap at %v", overlap)
			}
		}
		written += out.Paste(p)
	}
	// disjoint parts inside bounds cover it iff their sizes add up
	if written != bounds.Size() {
		return Window[T]{}, fmt.Errorf("mosaic of %v: %d cells written, want %d", bounds, written, bounds.Size())
	}
	return out, nil
}
