package tiled

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/qri-io/tiled-go/logger"
)

// Extract applies op to every region of the array behind src, reading it
// one tile at a time as laid out by tiling. The result holds one value per
// region, in the order of regions. meta, when not nil, must have one entry
// per region; operations see a pointer to their region's entry.
//
// Regions are cropped to the array. Regions with no cells inside it are
// skipped and keep the zero value. A failed call returns no results,
// except in lenient mode where a *RegionErrors comes back together with
// the results of every region that succeeded.
func Extract[T, M, P, R any](ctx context.Context, src TileReader[T], regions []Ranges, meta []M, op Operation[T, M, P, R], tiling Tiling, opts ...Option) ([]R, error) {
	out := make([]R, len(regions))
	if err := extract(ctx, out, src, regions, meta, op, tiling, opts); err != nil {
		if isLenientFailure(err) {
			return out, err
		}
		return nil, err
	}
	return out, nil
}

// isLenientFailure reports whether err is the per-region failure list of
// a lenient call. A RegionErrors wrapped inside a fatal error does not
// count: the call failed as a whole.
func isLenientFailure(err error) bool {
	_, ok := err.(*RegionErrors)
	return ok
}

// ExtractInto reduces every region with reduce, writing the results into
// dst, which must have one slot per region. Shared regions are stitched
// together from their tiles so reduce always sees a region's complete
// window. Skipped regions leave their slot untouched. After a failure the
// contents of dst are undefined.
func ExtractInto[T, M, R any](ctx context.Context, dst []R, src TileReader[T], regions []Ranges, meta []M, reduce RegionFunc[T, M, R], tiling Tiling, opts ...Option) error {
	if len(dst) != len(regions) {
		return fmt.Errorf("%w: destination has %d slots for %d regions", ErrConfiguration, len(dst), len(regions))
	}
	if reduce == nil {
		return fmt.Errorf("%w: nil reduce function", ErrConfiguration)
	}
	return extract(ctx, dst, src, regions, meta, Materialize(reduce), tiling, opts)
}

func extract[T, M, P, R any](ctx context.Context, out []R, src TileReader[T], regions []Ranges, meta []M, op Operation[T, M, P, R], tiling Tiling, opts []Option) (err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	log := o.logger.With(zap.String("call_id", ulid.Make().String()))

	ctx, span := tracer.Start(ctx, "tiled.Extract", trace.WithAttributes(
		attribute.Int("regions", len(regions)),
	))
	defer span.End()

	strategy := o.strategy
	defer func() {
		if err != nil {
			if !isLenientFailure(err) {
				extractFailuresCounter.WithLabelValues(strategy.String()).Inc()
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	switch {
	case src == nil:
		return fmt.Errorf("%w: nil tile reader", ErrConfiguration)
	case op == nil:
		return fmt.Errorf("%w: nil operation", ErrConfiguration)
	case tiling == nil:
		return fmt.Errorf("%w: nil tiling", ErrConfiguration)
	case meta != nil && len(meta) != len(regions):
		return fmt.Errorf("%w: %d metadata entries for %d regions", ErrConfiguration, len(meta), len(regions))
	}

	shape := src.Shape()
	cl, err := Classify(tiling, shape, regions)
	if err != nil {
		return err
	}
	if len(cl.SharedTiles) > 0 {
		if c, ok := op.(combiner); ok && !c.Combines() {
			return fmt.Errorf("%w: %d regions span several tiles but the operation has no combine function", ErrConfiguration, len(cl.SharedTiles))
		}
	}

	for _, id := range cl.Skipped {
		log.DebugWithContext(ctx, "skipping region outside array",
			zap.Int("region", id),
			zap.Stringer("bounds", regions[id]),
			zap.Ints("shape", shape))
		if o.onSkip != nil {
			o.onSkip(id, fmt.Errorf("%w: region %d %v, array shape %v", ErrOutOfBounds, id, regions[id], shape))
		}
	}

	if strategy, err = o.strategy.resolve(len(cl.Tiles)); err != nil {
		return err
	}

	span.SetAttributes(
		attribute.Int("tiles", len(cl.Tiles)),
		attribute.Int("shared", len(cl.SharedTiles)),
		attribute.String("strategy", strategy.String()),
	)
	log.DebugWithContext(ctx, "classified regions",
		zap.Stringer("tiling", fmtStringer{tiling}),
		zap.String("strategy", strategy.String()),
		zap.Int("tiles", len(cl.Tiles)),
		zap.Int("contained", cl.NumContained()),
		zap.Int("shared", len(cl.SharedTiles)),
		zap.Int("skipped", len(cl.Skipped)))

	j := newJob(src, op, tiling, cl, meta, out, o.lenient, log)
	err = j.run(ctx, strategy)
	if n := j.comb.discard(); err == nil && n > 0 {
		err = fmt.Errorf("%w: %d shared regions never received all partials", ErrInternalConsistency, n)
	}
	if err == nil {
		err = j.asm.verify(cl)
	}

	if o.stats != nil {
		*o.stats = Stats{
			Strategy:    strategy.String(),
			Tiles:       len(cl.Tiles),
			Contained:   cl.NumContained(),
			Shared:      len(cl.SharedTiles),
			Skipped:     len(cl.Skipped),
			PeakPending: j.comb.peakPending(),
		}
	}

	if err != nil {
		log.DebugWithContext(ctx, "extract failed", zap.Error(err))
		return err
	}
	if re := j.asm.failures(); re != nil {
		log.WarnWithContext(ctx, "regions failed in lenient mode", zap.Int("failed", len(re.Errs)))
		return re
	}
	return nil
}

type fmtStringer struct{ v any }

func (s fmtStringer) String() string { return fmt.Sprint(s.v) }

// job is the state of one call shared by the tile visits.
type job[T, M, P, R any] struct {
	src     TileReader[T]
	op      Operation[T, M, P, R]
	tiling  Tiling
	cl      *Classification
	meta    []M
	extent  Ranges
	lenient bool
	log     logger.Logger

	comb *sharedCombiner[P]
	asm  *assembler[R]
}

func newJob[T, M, P, R any](src TileReader[T], op Operation[T, M, P, R], tiling Tiling, cl *Classification, meta []M, out []R, lenient bool, log logger.Logger) *job[T, M, P, R] {
	return &job[T, M, P, R]{
		src:     src,
		op:      op,
		tiling:  tiling,
		cl:      cl,
		meta:    meta,
		extent:  Extent(src.Shape()),
		lenient: lenient,
		log:     log,
		comb:    newSharedCombiner[P](cl),
		asm:     newAssembler(out),
	}
}

// tileResult is the output of applying the operation to one tile.
type tileResult[P, R any] struct {
	tile         int
	containedIDs []int
	contained    []R
	sharedIDs    []int
	shared       []P
	// errs holds lenient per-region failures
	errs map[int]error
}

// visit runs all three stages of a tile visit on the calling goroutine.
func (j *job[T, M, P, R]) visit(ctx context.Context, i int) error {
	ts, err := j.read(ctx, i)
	if err != nil {
		return err
	}
	res, err := j.apply(i, ts)
	if err != nil {
		return err
	}
	return j.deliver(ctx, res)
}

// read materializes tile i and builds its state.
func (j *job[T, M, P, R]) read(ctx context.Context, i int) (*TileState[T, M], error) {
	t := j.cl.Tiles[i]
	bounds, ok := j.tiling.TileRanges(t).Intersect(j.extent)
	if !ok {
		return nil, fmt.Errorf("%w: tile %s lies outside the array", ErrInternalConsistency, t)
	}

	ctx, span := tracer.Start(ctx, "tiled.readTile", trace.WithAttributes(
		attribute.String("tile", string(t)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := j.src.ReadTile(ctx, bounds)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: tile %s %v: %w", ErrReadFailure, t, bounds, err)
	}
	if !w.Bounds().Equal(bounds) || len(w.Data) != bounds.Size() {
		return nil, fmt.Errorf("%w: tile %s: reader returned %v (%d cells), want %v", ErrReadFailure, t, w.Bounds(), len(w.Data), bounds)
	}
	tilesReadCounter.Inc()

	return &TileState[T, M]{
		Index:     t,
		Tile:      w,
		Contained: regionViews(j.cl.Contained[t], j.cl.Cropped, bounds, j.meta),
		Shared:    regionViews(j.cl.Shared[t], j.cl.Cropped, bounds, j.meta),
	}, nil
}

// apply runs the operation over a tile state. It touches no shared state.
func (j *job[T, M, P, R]) apply(i int, ts *TileState[T, M]) (*tileResult[P, R], error) {
	res := &tileResult[P, R]{
		tile:         i,
		containedIDs: viewIDs(ts.Contained),
		sharedIDs:    viewIDs(ts.Shared),
	}

	contained, shared, err := j.op.Apply(ts)
	if err != nil {
		if !j.lenient {
			return nil, fmt.Errorf("%w: tile %s: %w", ErrApplyFailure, ts.Index, err)
		}
		res.errs = map[int]error{}
		var re *RegionErrors
		if errors.As(err, &re) {
			for id, e := range re.Errs {
				res.errs[id] = e
			}
		} else {
			for _, id := range res.containedIDs {
				res.errs[id] = err
			}
			for _, id := range res.sharedIDs {
				res.errs[id] = err
			}
		}
	}
	if len(contained) != len(ts.Contained) || len(shared) != len(ts.Shared) {
		if res.errs == nil || len(contained)+len(shared) != 0 {
			return nil, fmt.Errorf("%w: tile %s: operation returned %d contained and %d shared results, want %d and %d",
				ErrApplyFailure, ts.Index, len(contained), len(shared), len(ts.Contained), len(ts.Shared))
		}
		// the whole tile failed leniently
		contained = make([]R, len(ts.Contained))
		shared = make([]P, len(ts.Shared))
	}
	res.contained = contained
	res.shared = shared
	return res, nil
}

// deliver hands a tile's results to the assembler and combiner, resolving
// every shared region for which this tile was the last contributor.
func (j *job[T, M, P, R]) deliver(ctx context.Context, res *tileResult[P, R]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for k, id := range res.containedIDs {
		var err error
		if e, failed := res.errs[id]; failed {
			err = j.asm.fail(id, e)
		} else {
			err = j.asm.write(id, res.contained[k])
		}
		if err != nil {
			return err
		}
	}

	for k, id := range res.sharedIDs {
		parts, ready, err := j.comb.deliver(id, contribution[P]{
			rank:  res.tile,
			value: res.shared[k],
			err:   res.errs[id],
		})
		if err != nil {
			return err
		}
		if ready {
			if err := j.resolve(id, parts); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolve combines the partials of a shared region, in tile order, and
// publishes the result.
func (j *job[T, M, P, R]) resolve(id int, parts []contribution[P]) error {
	values := make([]P, len(parts))
	for k, p := range parts {
		if p.err != nil {
			return j.asm.fail(id, p.err)
		}
		values[k] = p.value
	}

	v, err := j.op.Combine(values, metaView(j.meta, id), j.cl.Cropped[id])
	if err != nil {
		if j.lenient {
			return j.asm.fail(id, err)
		}
		return fmt.Errorf("%w: combining region %d: %w", ErrApplyFailure, id, err)
	}
	regionsCombinedCounter.Inc()
	return j.asm.write(id, v)
}

func viewIDs[M any](views []RegionView[M]) []int {
	ids := make([]int, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	return ids
}
