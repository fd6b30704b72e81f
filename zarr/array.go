// Package zarr reads and writes zarr (format 2) arrays held in a Store and
// serves them as tiles to the tiled engine. Tiles follow the array's own
// chunk grid, so every tile read touches exactly one stored chunk.
package zarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tiled "github.com/qri-io/tiled-go"
)

// Version is the zarr storage specification version this package reads.
const Version = 2

// Array is a chunked numeric array in a Store. It is safe for concurrent
// reads.
type Array struct {
	path  Path
	store Store
	meta  *ArrayMeta
	grid  *tiled.FixedGrid
	fill  float64
}

var _ tiled.TileReader[float64] = (*Array)(nil)

// Open loads the array whose ".zarray" document lives under path.
func Open(ctx context.Context, store Store, path string) (*Array, error) {
	p := NewPath(path)
	f, err := store.Get(ctx, p.Join(string(MTArray)).String())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	meta := &ArrayMeta{}
	if err := json.NewDecoder(f).Decode(meta); err != nil {
		return nil, fmt.Errorf("reading %s metadata: %w", p, err)
	}
	return newArray(store, p, meta)
}

// Create writes the metadata of a new array under path, replacing any
// existing array there. Chunks are not written; they read as the fill
// value until set.
func Create(ctx context.Context, store Store, path string, meta *ArrayMeta) (*Array, error) {
	p := NewPath(path)
	a, err := newArray(store, p, meta)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, p.Join(string(MTArray)).String(), bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return a, nil
}

func newArray(store Store, p Path, meta *ArrayMeta) (*Array, error) {
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("array %s: %w", p, err)
	}
	grid, err := tiled.NewFixedGrid(meta.Chunks...)
	if err != nil {
		return nil, err
	}
	fill, _ := meta.Fill()
	return &Array{
		path:  p,
		store: store,
		meta:  meta,
		grid:  grid,
		fill:  fill,
	}, nil
}

func (a *Array) Info() string {
	return fmt.Sprintf("<zarr.Array %s shape=%v chunks=%v dtype=%s>", a.path, a.meta.Shape, a.meta.Chunks, a.meta.Dtype)
}

func (a *Array) Path() string { return a.path.String() }

// Meta returns a copy of the array's metadata.
func (a *Array) Meta() ArrayMeta { return *a.meta }

func (a *Array) Shape() []int { return append([]int(nil), a.meta.Shape...) }

// Tiling returns a grid whose tiles are the array's chunks.
func (a *Array) Tiling() *tiled.FixedGrid { return a.grid }

// ReadTile reads the cells inside bounds, decoding every chunk it
// overlaps.
func (a *Array) ReadTile(ctx context.Context, bounds tiled.Ranges) (tiled.Window[float64], error) {
	if !bounds.Within(tiled.Extent(a.meta.Shape)) {
		return tiled.Window[float64]{}, fmt.Errorf("read %v outside array %s of shape %v", bounds, a.path, a.meta.Shape)
	}
	ps, err := a.projections(bounds)
	if err != nil {
		return tiled.Window[float64]{}, err
	}

	out := tiled.NewWindow[float64](bounds)
	for _, p := range ps {
		chunk, err := a.readChunk(ctx, p)
		if err != nil {
			return tiled.Window[float64]{}, err
		}
		out.Paste(chunk)
	}
	return out, nil
}

// WriteWindow stores the cells of w, which must lie inside the array.
// Chunks only partly covered by w are read, updated and written back.
func (a *Array) WriteWindow(ctx context.Context, w tiled.Window[float64]) error {
	bounds := w.Bounds()
	if !bounds.Within(tiled.Extent(a.meta.Shape)) {
		return fmt.Errorf("write %v outside array %s of shape %v", bounds, a.path, a.meta.Shape)
	}
	ps, err := a.projections(bounds)
	if err != nil {
		return err
	}

	for _, p := range ps {
		var chunk tiled.Window[float64]
		if p.Selection.Equal(p.ChunkBounds) {
			chunk = tiled.NewWindow[float64](p.ChunkBounds)
		} else if chunk, err = a.readChunk(ctx, p); err != nil {
			return err
		}
		chunk.Paste(w)
		if err := a.writeChunk(ctx, p, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (a *Array) readChunk(ctx context.Context, p chunkProjection) (tiled.Window[float64], error) {
	key := a.chunkKey(p.ChunkCoords)
	f, err := a.store.Get(ctx, key)
	if errors.Is(err, ErrNotfound) {
		return tiled.Fill(p.ChunkBounds, a.fill), nil
	} else if err != nil {
		return tiled.Window[float64]{}, err
	}
	defer f.Close()

	r, err := a.meta.Compressor.Decompressor(f)
	if err != nil {
		return tiled.Window[float64]{}, fmt.Errorf("chunk %s: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return tiled.Window[float64]{}, fmt.Errorf("chunk %s: %w", key, err)
	}

	chunk := tiled.NewWindow[float64](p.ChunkBounds)
	if err := a.meta.Dtype.decode(data, chunk.Data); err != nil {
		return tiled.Window[float64]{}, fmt.Errorf("chunk %s: %w", key, err)
	}
	return chunk, nil
}

func (a *Array) writeChunk(ctx context.Context, p chunkProjection, chunk tiled.Window[float64]) error {
	data, err := a.meta.Dtype.encode(chunk.Data)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	w, err := a.meta.Compressor.Compressor(buf)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return a.store.Put(ctx, a.chunkKey(p.ChunkCoords), buf)
}

// chunkKey returns the store key of a chunk: "0.1" under the array's path,
// or "0/1" with the nested dimension separator.
func (a *Array) chunkKey(coords []int) string {
	sep := a.meta.DimensionSeparator
	if sep == "" {
		sep = "."
	}
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.Itoa(c)
	}
	return a.path.Join(strings.Join(parts, sep)).String()
}

// Path is a normalized logical path within a store.
type Path []string

// NewPath normalizes a logical path so it addresses the same keys on every
// store: backslashes become slashes, leading, trailing and repeated
// slashes are dropped.
func NewPath(posix string) Path {
	posix = strings.ReplaceAll(posix, `\`, "/")
	var p Path
	for _, el := range strings.Split(posix, "/") {
		if el != "" {
			p = append(p, el)
		}
	}
	return p
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

// Split returns the parent path and the last element.
func (p Path) Split() (Path, string) {
	if len(p) == 0 {
		return nil, ""
	}
	return p[:len(p)-1], p[len(p)-1]
}

func (p Path) Join(elems ...string) Path {
	out := make(Path, 0, len(p)+len(elems))
	out = append(out, p...)
	return append(out, NewPath(strings.Join(elems, "/"))...)
}
