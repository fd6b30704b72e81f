package tiled

import "fmt"

// Operation is the work applied per tile. T is the array's element type, M
// the region metadata type, P the partial result produced for a shared
// region by one tile, and R the final result per region.
type Operation[T, M, P, R any] interface {
	// Apply computes results for every region in the tile state. The
	// returned slices line up with ts.Contained and ts.Shared. Apply may
	// run on any goroutine and must not touch shared mutable state.
	Apply(ts *TileState[T, M]) (contained []R, shared []P, err error)
	// Combine reduces the partials of one shared region, in tile order,
	// into its result. It is called exactly once per shared region.
	Combine(partials []P, meta *M, bounds Ranges) (R, error)
}

// RegionFunc computes a value from the cells of one region, or of the part
// of it inside a tile. meta is nil when the call has no metadata.
type RegionFunc[T, M, V any] func(w Window[T], meta *M) (V, error)

// CombineFunc merges the partials of a shared region. bounds is the whole
// region cropped to the array.
type CombineFunc[M, P, R any] func(partials []P, meta *M, bounds Ranges) (R, error)

// combiner is implemented by operations that may be unable to combine.
type combiner interface {
	Combines() bool
}

type split[T, M, P, R any] struct {
	contained RegionFunc[T, M, R]
	shared    RegionFunc[T, M, P]
	combine   CombineFunc[M, P, R]
}

// NewSplit builds an operation from separate functions for contained
// regions, for each tile's part of a shared region, and for combining
// those parts. combine may be nil when no region is expected to be
// shared; a call that does produce shared regions then fails before
// reading anything.
func NewSplit[T, M, P, R any](contained RegionFunc[T, M, R], shared RegionFunc[T, M, P], combine CombineFunc[M, P, R]) Operation[T, M, P, R] {
	return &split[T, M, P, R]{contained: contained, shared: shared, combine: combine}
}

// Uniform applies fn to contained regions and to the parts of shared
// regions alike, combining the parts with combine.
func Uniform[T, M, R any](fn RegionFunc[T, M, R], combine CombineFunc[M, R, R]) Operation[T, M, R, R] {
	return NewSplit(fn, fn, combine)
}

func (s *split[T, M, P, R]) Combines() bool { return s.combine != nil }

func (s *split[T, M, P, R]) Apply(ts *TileState[T, M]) ([]R, []P, error) {
	errs := map[int]error{}

	contained := make([]R, len(ts.Contained))
	for i, v := range ts.Contained {
		w, err := ts.View(v)
		if err == nil {
			contained[i], err = s.contained(w, v.Meta)
		}
		if err != nil {
			errs[v.ID] = err
		}
	}

	shared := make([]P, len(ts.Shared))
	for i, v := range ts.Shared {
		w, err := ts.View(v)
		if err == nil {
			shared[i], err = s.shared(w, v.Meta)
		}
		if err != nil {
			errs[v.ID] = err
		}
	}

	if len(errs) > 0 {
		return contained, shared, &RegionErrors{Errs: errs}
	}
	return contained, shared, nil
}

func (s *split[T, M, P, R]) Combine(partials []P, meta *M, bounds Ranges) (R, error) {
	if s.combine == nil {
		var zero R
		return zero, fmt.Errorf("%w: no combine function", ErrConfiguration)
	}
	return s.combine(partials, meta, bounds)
}

type materialize[T, M, R any] struct {
	fn RegionFunc[T, M, R]
}

// Materialize applies fn to the complete window of every region. For a
// shared region each tile contributes its raw cells; once all have
// arrived they are stitched into one window and fn runs once on it. This
// trades memory for an fn that never sees partial data.
func Materialize[T, M, R any](fn RegionFunc[T, M, R]) Operation[T, M, Window[T], R] {
	return &materialize[T, M, R]{fn: fn}
}

func (m *materialize[T, M, R]) Apply(ts *TileState[T, M]) ([]R, []Window[T], error) {
	errs := map[int]error{}

	contained := make([]R, len(ts.Contained))
	for i, v := range ts.Contained {
		w, err := ts.View(v)
		if err == nil {
			contained[i], err = m.fn(w, v.Meta)
		}
		if err != nil {
			errs[v.ID] = err
		}
	}

	shared := make([]Window[T], len(ts.Shared))
	for i, v := range ts.Shared {
		w, err := ts.View(v)
		if err != nil {
			errs[v.ID] = err
			continue
		}
		shared[i] = w
	}

	if len(errs) > 0 {
		return contained, shared, &RegionErrors{Errs: errs}
	}
	return contained, shared, nil
}

func (m *materialize[T, M, R]) Combine(partials []Window[T], meta *M, bounds Ranges) (R, error) {
	w, err := Mosaic(bounds, partials)
	if err != nil {
		var zero R
		return zero, err
	}
	return m.fn(w, meta)
}
