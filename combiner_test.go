package tiled

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func sharedClassification(regions, tilesEach int) *Classification {
	cl := &Classification{SharedTiles: map[int][]TileIndex{}}
	for id := range regions {
		for k := range tilesEach {
			cl.SharedTiles[id] = append(cl.SharedTiles[id], GridIndex(0, k))
		}
	}
	return cl
}

func TestSharedCombinerResolvesOnce(t *testing.T) {
	const regions, tiles = 20, 8
	c := newSharedCombiner[int](sharedClassification(regions, tiles))

	var ready [regions]atomic.Int32
	var wg sync.WaitGroup
	for rank := range tiles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range regions {
				parts, ok, err := c.deliver(id, contribution[int]{rank: rank, value: rank * 10})
				if err != nil {
					t.Error(err)
					return
				}
				if !ok {
					continue
				}
				ready[id].Add(1)
				for k, p := range parts {
					if p.rank != k || p.value != k*10 {
						t.Errorf("region %d: part %d is %+v", id, k, p)
					}
				}
			}
		}()
	}
	wg.Wait()

	for id := range regions {
		require.EqualValues(t, 1, ready[id].Load(), "region %d", id)
	}
	require.Zero(t, c.discard())
	require.LessOrEqual(t, c.peakPending(), regions)
}

func TestSharedCombinerUnknownRegion(t *testing.T) {
	c := newSharedCombiner[int](sharedClassification(1, 2))
	_, _, err := c.deliver(5, contribution[int]{})
	require.ErrorIs(t, err, ErrInternalConsistency)

	_, ok, err := c.deliver(0, contribution[int]{})
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, c.discard())
}

func TestAssemblerDetectsDuplicates(t *testing.T) {
	out := make([]int, 3)
	a := newAssembler(out)
	cl := &Classification{Skipped: []int{2}}

	require.NoError(t, a.write(0, 7))
	require.ErrorIs(t, a.verify(cl), ErrInternalConsistency, "region 1 was never written")

	require.NoError(t, a.fail(1, errBoom))
	require.NoError(t, a.verify(cl))
	require.ErrorIs(t, a.write(1, 3), ErrInternalConsistency)

	require.Equal(t, []int{7, 0, 0}, out)
	re := a.failures()
	require.NotNil(t, re)
	require.ErrorIs(t, re, errBoom)
}

func TestRegionErrorsMessage(t *testing.T) {
	re := &RegionErrors{Errs: map[int]error{4: errBoom, 1: errBoom, 9: errBoom, 2: errBoom}}
	require.Equal(t, "4 regions failed; region 1: boom; region 2: boom; region 4: boom; ...", re.Error())
}
