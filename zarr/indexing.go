package zarr

import (
	tiled "github.com/qri-io/tiled-go"
)

// A mapping of items from chunk to output window. Can be used to extract
// items from the chunk array for loading into an output window. Can also be
// used to extract items from a window for setting/updating in a chunk.
type chunkProjection struct {
	// Index of chunk.
	ChunkCoords []int
	// Array coordinates covered by the whole chunk, which may extend past
	// the array's edge.
	ChunkBounds tiled.Ranges
	// Selection in array coordinates shared by the chunk and the window.
	Selection tiled.Ranges
}

// projections lists the chunks overlapping bounds in row-major chunk
// order.
func (a *Array) projections(bounds tiled.Ranges) ([]chunkProjection, error) {
	var ps []chunkProjection
	for _, key := range a.grid.TilesFor(bounds) {
		coords, err := tiled.ParseGridIndex(key)
		if err != nil {
			return nil, err
		}
		cb := a.grid.TileRanges(key)
		sel, ok := cb.Intersect(bounds)
		if !ok {
			continue
		}
		ps = append(ps, chunkProjection{
			ChunkCoords: coords,
			ChunkBounds: cb,
			Selection:   sel,
		})
	}
	return ps, nil
}
