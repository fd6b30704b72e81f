// Package tiled extracts and reduces many regions of a large chunked
// array without loading the array into memory.
//
// The array is read one tile at a time, as laid out by a Tiling such as
// FixedGrid. Each requested region is classified against the tiling:
//
//   - contained regions lie inside a single tile and are reduced as soon
//     as that tile is read;
//   - shared regions span several tiles. Every tile contributes a partial
//     result and the operation's Combine merges them once the last tile
//     has reported.
//
// Tile visits are scheduled by a Strategy: Serial, WorkerPool,
// Cooperative (a single goroutine overlapping reads with computation) or
// Distributed (an external Executor). All strategies give identical
// results; partials always reach Combine in tile order.
//
// A minimal call sums every region of an in-memory array:
//
//	arr, _ := tiled.NewMemoryArray([]int{20, 20}, data)
//	grid, _ := tiled.UniformGrid(2, 10)
//	sums, err := tiled.Extract(ctx, arr, regions, nil, tiled.SumOf[struct{}](), grid)
//
// Package zarr provides a TileReader backed by zarr chunk stores.
package tiled
