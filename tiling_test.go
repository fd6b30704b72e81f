package tiled

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedGridTilesFor(t *testing.T) {
	grid, err := UniformGrid(2, 10)
	require.NoError(t, err)

	tests := []struct {
		name   string
		bounds Ranges
		want   []TileIndex
	}{
		{"inside one tile", Box(0, 4, 0, 4), []TileIndex{"0.0"}},
		{"touching the far edge", Box(0, 10, 0, 10), []TileIndex{"0.0"}},
		{"crossing rows", Box(8, 20, 10, 20), []TileIndex{"0.1", "1.1"}},
		{"crossing both", Box(9, 11, 9, 11), []TileIndex{"0.0", "0.1", "1.0", "1.1"}},
		{"empty", Box(3, 3, 0, 4), nil},
		{"wrong dimensionality", Box(0, 4), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, grid.TilesFor(tt.bounds))
		})
	}
}

// Every tile returned for a box is the floor of its start to the ceiling
// of its stop, per dimension.
func TestFixedGridFloorCeil(t *testing.T) {
	grid, err := NewFixedGrid(7, 3, 5)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(7, 11))

	for range 200 {
		bounds := make(Ranges, 3)
		want := 1
		for d := range bounds {
			start := rng.IntN(40)
			stop := start + 1 + rng.IntN(20)
			bounds[d] = Range{Start: start, Stop: stop}
			c := grid.Chunks()[d]
			want *= (stop+c-1)/c - start/c
		}
		tiles := grid.TilesFor(bounds)
		require.Len(t, tiles, want, "bounds %v", bounds)
		for _, tile := range tiles {
			tr := grid.TileRanges(tile)
			_, ok := tr.Intersect(bounds)
			require.True(t, ok, "tile %s %v does not meet %v", tile, tr, bounds)
		}
	}
}

func TestGridIndex(t *testing.T) {
	coords, err := ParseGridIndex(GridIndex(3, 0, 12))
	require.NoError(t, err)
	require.Equal(t, []int{3, 0, 12}, coords)

	_, err = ParseGridIndex("1.x")
	require.Error(t, err)
	_, err = ParseGridIndex("")
	require.Error(t, err)
}

func TestFixedGridCompare(t *testing.T) {
	grid, err := UniformGrid(2, 4)
	require.NoError(t, err)

	require.Negative(t, grid.Compare("2.0", "10.0"), "coordinates compare numerically")
	require.Negative(t, grid.Compare("1.9", "2.0"))
	require.Zero(t, grid.Compare("1.1", "1.1"))
	require.Positive(t, grid.Compare("1.2", "1.1"))
}

func TestNewFixedGridInvalid(t *testing.T) {
	_, err := NewFixedGrid()
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = NewFixedGrid(10, 0)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestFloorCeilDiv(t *testing.T) {
	require.Equal(t, -1, floorDiv(-1, 10))
	require.Equal(t, 0, floorDiv(9, 10))
	require.Equal(t, 1, ceilDiv(10, 10))
	require.Equal(t, 2, ceilDiv(11, 10))
	require.Equal(t, 0, ceilDiv(-3, 10))
}
