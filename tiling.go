package tiled

import (
	"fmt"
	"strconv"
	"strings"
)

// TileIndex identifies a tile. Its form is chosen by the tiling that
// produced it; it is only ever compared for equality, used as a map key,
// and ordered through Tiling.Compare.
type TileIndex string

// Tiling partitions an array into tiles, the unit at which the array is
// read.
type Tiling interface {
	// TilesFor returns the tiles that intersect bounds, in a stable order.
	TilesFor(bounds Ranges) []TileIndex
	// TileRanges returns the array coordinates covered by a tile. The
	// result may extend past the array and is cropped by the caller.
	TileRanges(tile TileIndex) Ranges
	// Compare orders tiles, returning a negative number when a sorts
	// before b, zero when they are equal and a positive number otherwise.
	Compare(a, b TileIndex) int
}

// Classifier is implemented by tilings that partition regions themselves
// rather than relying on Classify's default TilesFor based approach, for
// example tilings backed by a spatial index.
type Classifier interface {
	Classify(shape []int, regions []Ranges) (*Classification, error)
}

// FixedGrid tiles an array into a regular grid of chunks, the layout of a
// zarr array or a chunked HDF5 dataset. Tile keys use the zarr chunk key
// form "i.j.k".
type FixedGrid struct {
	chunks []int
}

var _ Tiling = (*FixedGrid)(nil)

// NewFixedGrid creates a grid with the given chunk length per dimension.
func NewFixedGrid(chunks ...int) (*FixedGrid, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: fixed grid needs at least one dimension", ErrConfiguration)
	}
	for d, c := range chunks {
		if c <= 0 {
			return nil, fmt.Errorf("%w: chunk size %d in dimension %d", ErrConfiguration, c, d)
		}
	}
	return &FixedGrid{chunks: append([]int(nil), chunks...)}, nil
}

// UniformGrid creates an ndims-dimensional grid of size^ndims chunks.
func UniformGrid(ndims, size int) (*FixedGrid, error) {
	chunks := make([]int, ndims)
	for i := range chunks {
		chunks[i] = size
	}
	return NewFixedGrid(chunks...)
}

// Chunks returns the chunk length per dimension.
func (g *FixedGrid) Chunks() []int { return append([]int(nil), g.chunks...) }

func (g *FixedGrid) TilesFor(bounds Ranges) []TileIndex {
	if len(bounds) != len(g.chunks) || bounds.Empty() {
		return nil
	}
	lo := make([]int, len(bounds))
	hi := make([]int, len(bounds))
	for d, r := range bounds {
		lo[d] = floorDiv(r.Start, g.chunks[d])
		hi[d] = ceilDiv(r.Stop, g.chunks[d])
	}

	var tiles []TileIndex
	coords := append([]int(nil), lo...)
	for {
		tiles = append(tiles, GridIndex(coords...))
		// row-major increment: the last dimension varies fastest
		d := len(coords) - 1
		for ; d >= 0; d-- {
			coords[d]++
			if coords[d] < hi[d] {
				break
			}
			coords[d] = lo[d]
		}
		if d < 0 {
			return tiles
		}
	}
}

func (g *FixedGrid) TileRanges(tile TileIndex) Ranges {
	coords, err := ParseGridIndex(tile)
	if err != nil || len(coords) != len(g.chunks) {
		return nil
	}
	rs := make(Ranges, len(coords))
	for d, c := range coords {
		rs[d] = Range{Start: c * g.chunks[d], Stop: (c + 1) * g.chunks[d]}
	}
	return rs
}

func (g *FixedGrid) Compare(a, b TileIndex) int {
	ca, errA := ParseGridIndex(a)
	cb, errB := ParseGridIndex(b)
	if errA != nil || errB != nil {
		return strings.Compare(string(a), string(b))
	}
	for d := 0; d < len(ca) && d < len(cb); d++ {
		if ca[d] != cb[d] {
			if ca[d] < cb[d] {
				return -1
			}
			return 1
		}
	}
	return len(ca) - len(cb)
}

func (g *FixedGrid) String() string {
	return fmt.Sprintf("FixedGrid%v", g.chunks)
}

// GridIndex encodes grid coordinates as a tile key: GridIndex(1, 0) is
// "1.0".
func GridIndex(coords ...int) TileIndex {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.Itoa(c)
	}
	return TileIndex(strings.Join(parts, "."))
}

// ParseGridIndex decodes a key produced by GridIndex.
func ParseGridIndex(tile TileIndex) ([]int, error) {
	if tile == "" {
		return nil, fmt.Errorf("empty grid index")
	}
	parts := strings.Split(string(tile), ".")
	coords := make([]int, len(parts))
	for i, p := range parts {
		c, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid grid index %q: %w", tile, err)
		}
		coords[i] = c
	}
	return coords, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}
