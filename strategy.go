package tiled

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type strategyKind int

const (
	autoKind strategyKind = iota
	serialKind
	poolKind
	cooperativeKind
	distributedKind
)

// Strategy selects how tile visits are scheduled. Every strategy produces
// the same output for the same input. The zero Strategy picks a worker
// pool when more than one tile is touched and more than one CPU is
// available, and Serial otherwise.
type Strategy struct {
	kind        strategyKind
	workers     int
	maxInFlight int
	executor    Executor
}

// Serial visits tiles one at a time in classification order.
func Serial() Strategy { return Strategy{kind: serialKind} }

// WorkerPool visits tiles on a pool of goroutines. workers <= 0 uses
// GOMAXPROCS.
func WorkerPool(workers int) Strategy {
	return Strategy{kind: poolKind, workers: workers}
}

// Cooperative applies the operation on a single goroutine while up to
// maxInFlight tile reads proceed in the background, overlapping I/O
// with computation without parallel operation calls. Reads that have
// completed but not been processed count toward maxInFlight, which bounds
// the tiles held in memory.
func Cooperative(maxInFlight int) Strategy {
	return Strategy{kind: cooperativeKind, maxInFlight: maxInFlight}
}

// Distributed submits each tile visit to exec and gathers the results.
func Distributed(exec Executor) Strategy {
	return Strategy{kind: distributedKind, executor: exec}
}

func (s Strategy) String() string {
	switch s.kind {
	case serialKind:
		return "serial"
	case poolKind:
		return fmt.Sprintf("pool(%d)", s.workers)
	case cooperativeKind:
		return fmt.Sprintf("cooperative(%d)", s.maxInFlight)
	case distributedKind:
		return "distributed"
	default:
		return "auto"
	}
}

// resolve turns the auto strategy into a concrete one and fills in
// defaults.
func (s Strategy) resolve(tiles int) (Strategy, error) {
	procs := runtime.GOMAXPROCS(0)
	switch s.kind {
	case autoKind:
		if tiles > 1 && procs > 1 {
			return WorkerPool(procs), nil
		}
		return Serial(), nil
	case poolKind:
		if s.workers <= 0 {
			s.workers = procs
		}
	case cooperativeKind:
		if s.maxInFlight <= 0 {
			return s, fmt.Errorf("%w: cooperative strategy needs maxInFlight > 0, got %d", ErrConfiguration, s.maxInFlight)
		}
	case distributedKind:
		if s.executor == nil {
			return s, fmt.Errorf("%w: distributed strategy without an executor", ErrConfiguration)
		}
	}
	return s, nil
}

func (j *job[T, M, P, R]) run(ctx context.Context, s Strategy) error {
	switch s.kind {
	case serialKind:
		return j.runSerial(ctx)
	case poolKind:
		return j.runPool(ctx, s.workers)
	case cooperativeKind:
		return j.runCooperative(ctx, s.maxInFlight)
	case distributedKind:
		return j.runDistributed(ctx, s.executor)
	default:
		return fmt.Errorf("%w: unresolved strategy %v", ErrInternalConsistency, s)
	}
}

func (j *job[T, M, P, R]) runSerial(ctx context.Context) error {
	for i := range j.cl.Tiles {
		if err := j.visit(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

func (j *job[T, M, P, R]) runPool(ctx context.Context, workers int) error {
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(workers)
	for i := range j.cl.Tiles {
		p.Go(func(ctx context.Context) error {
			return j.visit(ctx, i)
		})
	}
	return p.Wait()
}

type loadedTile[T, M any] struct {
	tile  int
	state *TileState[T, M]
	err   error
}

func (j *job[T, M, P, R]) runCooperative(ctx context.Context, maxInFlight int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// buffered so a finished read never blocks its goroutine
	done := make(chan loadedTile[T, M], maxInFlight)
	next, inFlight := 0, 0
	var firstErr error

	for inFlight > 0 || (firstErr == nil && next < len(j.cl.Tiles)) {
		for firstErr == nil && next < len(j.cl.Tiles) && inFlight < maxInFlight {
			i := next
			next++
			inFlight++
			go func() {
				ts, err := j.read(ctx, i)
				done <- loadedTile[T, M]{tile: i, state: ts, err: err}
			}()
		}

		lt := <-done
		inFlight--
		if firstErr != nil {
			continue
		}

		err := lt.err
		if err == nil {
			var res *tileResult[P, R]
			if res, err = j.apply(lt.tile, lt.state); err == nil {
				err = j.deliver(ctx, res)
			}
		}
		if err != nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

// Unit is one tile visit submitted to an Executor. Run reads the tile and
// applies the operation; it does not touch the call's combined state.
type Unit struct {
	Tile TileIndex
	Run  func(ctx context.Context) error
}

// Future is the pending outcome of a submitted Unit.
type Future interface {
	// Wait blocks until the unit finished or ctx is done. Once Wait has
	// returned the unit's result, everything the unit wrote is visible to
	// the caller.
	Wait(ctx context.Context) error
}

// Executor runs units of work on behalf of the Distributed strategy. The
// engine only submits and waits; scheduling is entirely the executor's.
type Executor interface {
	Submit(ctx context.Context, u Unit) Future
}

func (j *job[T, M, P, R]) runDistributed(ctx context.Context, exec Executor) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*tileResult[P, R], len(j.cl.Tiles))
	futures := make([]Future, len(j.cl.Tiles))
	for i, t := range j.cl.Tiles {
		futures[i] = exec.Submit(ctx, Unit{
			Tile: t,
			Run: func(ctx context.Context) error {
				ts, err := j.read(ctx, i)
				if err != nil {
					return err
				}
				results[i], err = j.apply(i, ts)
				return err
			},
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range futures {
		g.Go(func() error { return f.Wait(gctx) })
	}
	if err := g.Wait(); err != nil {
		cancel()
		// outstanding units observe the cancellation; wait them out so
		// none outlives the call
		for _, f := range futures {
			_ = f.Wait(context.Background())
		}
		return err
	}

	// gather on the calling goroutine, in tile order
	for i, res := range results {
		if res == nil {
			return fmt.Errorf("%w: executor reported tile %v done without running it", ErrInternalConsistency, j.cl.Tiles[i])
		}
		if err := j.deliver(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

// LocalExecutor is an in-process Executor running each unit on its own
// goroutine, at most workers at a time.
type LocalExecutor struct {
	sem *semaphore.Weighted
}

var _ Executor = (*LocalExecutor)(nil)

// NewLocalExecutor returns an executor running at most workers units at once.
// workers <= 0 uses GOMAXPROCS.
func NewLocalExecutor(workers int) *LocalExecutor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &LocalExecutor{sem: semaphore.NewWeighted(int64(workers))}
}

func (e *LocalExecutor) Submit(ctx context.Context, u Unit) Future {
	f := &localFuture{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			f.err = err
			return
		}
		defer e.sem.Release(1)
		f.err = u.Run(ctx)
	}()
	return f
}

type localFuture struct {
	done chan struct{}
	err  error
}

func (f *localFuture) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
