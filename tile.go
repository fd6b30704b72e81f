package tiled

import (
	"context"
	"fmt"
)

// TileReader materializes windows of a backing array. It is the only way
// the engine touches array data. ReadTile may block on I/O and must be
// safe to call concurrently with different bounds.
type TileReader[T any] interface {
	// Shape returns the array's length along each dimension.
	Shape() []int
	// ReadTile returns the window covering bounds, which always lie
	// inside the array.
	ReadTile(ctx context.Context, bounds Ranges) (Window[T], error)
}

type funcReader[T any] struct {
	shape []int
	read  func(ctx context.Context, bounds Ranges) (Window[T], error)
}

// NewTileReader adapts a read function to the TileReader interface.
func NewTileReader[T any](shape []int, read func(ctx context.Context, bounds Ranges) (Window[T], error)) TileReader[T] {
	return &funcReader[T]{shape: shape, read: read}
}

func (r *funcReader[T]) Shape() []int { return r.shape }

func (r *funcReader[T]) ReadTile(ctx context.Context, bounds Ranges) (Window[T], error) {
	return r.read(ctx, bounds)
}

// MemoryArray serves tiles from an in-memory window.
type MemoryArray[T any] struct {
	w Window[T]
}

var _ TileReader[float64] = (*MemoryArray[float64])(nil)

// NewMemoryArray wraps data of the given shape, stored in row-major order.
func NewMemoryArray[T any](shape []int, data []T) (*MemoryArray[T], error) {
	if Extent(shape).Size() != len(data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrConfiguration, len(data), shape)
	}
	return &MemoryArray[T]{w: Window[T]{
		Origin: make([]int, len(shape)),
		Shape:  append([]int(nil), shape...),
		Data:   data,
	}}, nil
}

func (a *MemoryArray[T]) Shape() []int { return a.w.Shape }

func (a *MemoryArray[T]) ReadTile(ctx context.Context, bounds Ranges) (Window[T], error) {
	if err := ctx.Err(); err != nil {
		return Window[T]{}, err
	}
	return a.w.Slice(bounds)
}

// RegionView is one region as seen from a single tile.
type RegionView[M any] struct {
	// ID is the region's position in the call's input.
	ID int
	// Bounds is the part of the region inside the tile.
	Bounds Ranges
	// Region is the whole region, cropped to the array.
	Region Ranges
	// Meta points at the region's metadata, nil when the call has none.
	Meta *M
}

// TileState is everything an operation sees for one tile visit. It is
// discarded once the operation returns.
type TileState[T, M any] struct {
	Index TileIndex
	// Tile holds the tile's cells; Tile.Origin is the tile offset.
	Tile      Window[T]
	Contained []RegionView[M]
	Shared    []RegionView[M]
}

// Bounds returns the tile's extent in array coordinates.
func (ts *TileState[T, M]) Bounds() Ranges { return ts.Tile.Bounds() }

// View copies the cells of v out of the tile.
func (ts *TileState[T, M]) View(v RegionView[M]) (Window[T], error) {
	return ts.Tile.Slice(v.Bounds)
}

// metaView returns a pointer to meta[i], or nil exactly when meta is nil.
func metaView[M any](meta []M, i int) *M {
	if meta == nil {
		return nil
	}
	return &meta[i]
}

func regionViews[M any](ids []int, cropped []Ranges, tile Ranges, meta []M) []RegionView[M] {
	views := make([]RegionView[M], 0, len(ids))
	for _, id := range ids {
		b, _ := cropped[id].Intersect(tile)
		views = append(views, RegionView[M]{
			ID:     id,
			Bounds: b,
			Region: cropped[id],
			Meta:   metaView(meta, id),
		})
	}
	return views
}
