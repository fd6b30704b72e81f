package tiled

import (
	"fmt"
	"sort"
)

// Classification is the partition of a call's regions against a tiling.
// Every region id is in exactly one of Skipped, a Contained list or the
// SharedTiles map.
type Classification struct {
	// Contained maps a tile to the regions lying wholly inside it.
	Contained map[TileIndex][]int
	// Shared maps a tile to the regions that overlap it and at least one
	// other tile.
	Shared map[TileIndex][]int
	// SharedTiles is the inverse of Shared: each shared region's tiles.
	SharedTiles map[int][]TileIndex
	// Skipped lists regions with no cells inside the array.
	Skipped []int
	// Cropped holds each region clipped to the array, nil when skipped.
	Cropped []Ranges
	// Tiles lists every touched tile in Tiling.Compare order.
	Tiles []TileIndex
}

// Classify partitions regions against tiling for an array of the given
// shape. It performs no I/O.
func Classify(tiling Tiling, shape []int, regions []Ranges) (*Classification, error) {
	if c, ok := tiling.(Classifier); ok {
		return c.Classify(shape, regions)
	}

	extent := Extent(shape)
	cl := &Classification{
		Contained:   map[TileIndex][]int{},
		Shared:      map[TileIndex][]int{},
		SharedTiles: map[int][]TileIndex{},
		Cropped:     make([]Ranges, len(regions)),
	}
	seen := map[TileIndex]struct{}{}

	for id, region := range regions {
		if len(region) != len(shape) {
			return nil, fmt.Errorf("%w: region %d has %d dimensions, array has %d", ErrConfiguration, id, len(region), len(shape))
		}
		cropped, ok := region.Intersect(extent)
		if !ok {
			cl.Skipped = append(cl.Skipped, id)
			continue
		}
		cl.Cropped[id] = cropped

		tiles := tiling.TilesFor(cropped)
		if len(tiles) == 0 {
			return nil, fmt.Errorf("%w: tiling returned no tiles for region %d %v", ErrConfiguration, id, cropped)
		}
		for _, t := range tiles {
			seen[t] = struct{}{}
		}

		if len(tiles) == 1 {
			if tr, ok := tiling.TileRanges(tiles[0]).Intersect(extent); ok && cropped.Within(tr) {
				cl.Contained[tiles[0]] = append(cl.Contained[tiles[0]], id)
				continue
			}
		}
		for _, t := range tiles {
			cl.Shared[t] = append(cl.Shared[t], id)
		}
		cl.SharedTiles[id] = tiles
	}

	cl.Tiles = make([]TileIndex, 0, len(seen))
	for t := range seen {
		cl.Tiles = append(cl.Tiles, t)
	}
	sort.Slice(cl.Tiles, func(i, j int) bool {
		return tiling.Compare(cl.Tiles[i], cl.Tiles[j]) < 0
	})
	return cl, nil
}

// NumContained returns the number of contained regions.
func (c *Classification) NumContained() int {
	n := 0
	for _, ids := range c.Contained {
		n += len(ids)
	}
	return n
}
