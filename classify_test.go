package tiled

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

// randomRegions returns n boxes scattered over and around an array of the
// given shape; some fall partly or wholly outside it.
func randomRegions(rng *rand.Rand, n int, shape []int) []Ranges {
	regions := make([]Ranges, n)
	for i := range regions {
		r := make(Ranges, len(shape))
		for d, size := range shape {
			start := rng.IntN(size+10) - 5
			r[d] = Range{Start: start, Stop: start + 1 + rng.IntN(size/2+1)}
		}
		regions[i] = r
	}
	return regions
}

func TestClassifyScenario(t *testing.T) {
	grid, err := UniformGrid(2, 10)
	require.NoError(t, err)

	regions := []Ranges{
		Box(0, 4, 0, 4),
		Box(8, 20, 10, 20),
		Box(0, 15, 10, 20),
		Box(10, 20, 0, 10),
		Box(30, 40, 0, 10),
	}
	cl, err := Classify(grid, []int{20, 20}, regions)
	require.NoError(t, err)

	require.Equal(t, map[TileIndex][]int{"0.0": {0}, "1.0": {3}}, cl.Contained)
	require.Equal(t, map[TileIndex][]int{"0.1": {1, 2}, "1.1": {1, 2}}, cl.Shared)
	require.Equal(t, map[int][]TileIndex{1: {"0.1", "1.1"}, 2: {"0.1", "1.1"}}, cl.SharedTiles)
	require.Equal(t, []int{4}, cl.Skipped)
	require.Nil(t, cl.Cropped[4])
	require.Equal(t, []TileIndex{"0.0", "0.1", "1.0", "1.1"}, cl.Tiles)
}

func TestClassifyProperties(t *testing.T) {
	shape := []int{37, 23}
	grid, err := NewFixedGrid(6, 5)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(3, 5))
	regions := randomRegions(rng, 300, shape)

	cl, err := Classify(grid, shape, regions)
	require.NoError(t, err)

	// every region lands in exactly one category
	category := make([]int, len(regions))
	for _, id := range cl.Skipped {
		category[id]++
	}
	for _, ids := range cl.Contained {
		for _, id := range ids {
			category[id]++
		}
	}
	for id := range cl.SharedTiles {
		category[id]++
	}
	for id, n := range category {
		require.Equal(t, 1, n, "region %d %v", id, regions[id])
	}

	extent := Extent(shape)
	for id, r := range regions {
		cropped, ok := r.Intersect(extent)
		if !ok {
			require.Contains(t, cl.Skipped, id)
			continue
		}

		// contained iff within one cell in every dimension
		oneCell := true
		for d, rr := range cropped {
			c := grid.Chunks()[d]
			oneCell = oneCell && rr.Start/c == (rr.Stop-1)/c
		}
		_, shared := cl.SharedTiles[id]
		require.Equal(t, oneCell, !shared, "region %d %v", id, cropped)

		if shared {
			require.Equal(t, grid.TilesFor(cropped), cl.SharedTiles[id])
			for _, tile := range cl.SharedTiles[id] {
				require.Contains(t, cl.Shared[tile], id)
			}
		}
	}

	require.True(t, slices.IsSortedFunc(cl.Tiles, grid.Compare))
	for _, ids := range cl.Shared {
		require.True(t, slices.IsSorted(ids))
	}
}

func TestClassifyDeterministic(t *testing.T) {
	shape := []int{50, 50}
	grid, err := UniformGrid(2, 8)
	require.NoError(t, err)
	regions := randomRegions(rand.New(rand.NewPCG(1, 1)), 100, shape)

	first, err := Classify(grid, shape, regions)
	require.NoError(t, err)
	for range 5 {
		again, err := Classify(grid, shape, regions)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestClassifyDimensionMismatch(t *testing.T) {
	grid, err := UniformGrid(2, 8)
	require.NoError(t, err)
	_, err = Classify(grid, []int{10, 10}, []Ranges{Box(0, 1, 0, 1), Box(0, 1)})
	require.ErrorIs(t, err, ErrConfiguration)
}

// cornerTiling puts the whole array in one tile and classifies every
// region as contained, standing in for an index-backed tiling.
type cornerTiling struct{ calls int }

func (c *cornerTiling) TilesFor(Ranges) []TileIndex { return []TileIndex{"all"} }
func (c *cornerTiling) TileRanges(TileIndex) Ranges  { return Box(0, 1000, 0, 1000) }
func (c *cornerTiling) Compare(a, b TileIndex) int   { return 0 }
func (c *cornerTiling) Classify(shape []int, regions []Ranges) (*Classification, error) {
	c.calls++
	cl := &Classification{
		Contained:   map[TileIndex][]int{"all": {}},
		Shared:      map[TileIndex][]int{},
		SharedTiles: map[int][]TileIndex{},
		Cropped:     regions,
		Tiles:       []TileIndex{"all"},
	}
	for id := range regions {
		cl.Contained["all"] = append(cl.Contained["all"], id)
	}
	return cl, nil
}

func TestClassifyDelegates(t *testing.T) {
	ct := &cornerTiling{}
	cl, err := Classify(ct, []int{4, 4}, []Ranges{Box(0, 2, 0, 2)})
	require.NoError(t, err)
	require.Equal(t, 1, ct.calls)
	require.Equal(t, []int{0}, cl.Contained["all"])
}
