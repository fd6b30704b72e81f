package tiled

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// assembler places final region values into the output. Each index is
// written by at most one goroutine, so values need no lock; the write
// counters catch any region the engine reports twice.
type assembler[R any] struct {
	out    []R
	writes []atomic.Int32

	mu     sync.Mutex
	failed map[int]error
}

func newAssembler[R any](out []R) *assembler[R] {
	return &assembler[R]{
		out:    out,
		writes: make([]atomic.Int32, len(out)),
		failed: map[int]error{},
	}
}

func (a *assembler[R]) write(id int, v R) error {
	if n := a.writes[id].Add(1); n != 1 {
		return fmt.Errorf("%w: region %d written %d times", ErrInternalConsistency, id, n)
	}
	a.out[id] = v
	return nil
}

// fail records a lenient per-region failure in place of a value.
func (a *assembler[R]) fail(id int, err error) error {
	if n := a.writes[id].Add(1); n != 1 {
		return fmt.Errorf("%w: region %d written %d times", ErrInternalConsistency, id, n)
	}
	a.mu.Lock()
	a.failed[id] = err
	a.mu.Unlock()
	return nil
}

// verify checks that every region not skipped received exactly one write
// and that skipped regions received none.
func (a *assembler[R]) verify(cl *Classification) error {
	skipped := make(map[int]struct{}, len(cl.Skipped))
	for _, id := range cl.Skipped {
		skipped[id] = struct{}{}
	}
	for id := range a.writes {
		n := a.writes[id].Load()
		if _, ok := skipped[id]; ok {
			if n != 0 {
				return fmt.Errorf("%w: skipped region %d was written", ErrInternalConsistency, id)
			}
			continue
		}
		if n != 1 {
			return fmt.Errorf("%w: region %d written %d times, want 1", ErrInternalConsistency, id, n)
		}
	}
	return nil
}

func (a *assembler[R]) failures() *RegionErrors {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.failed) == 0 {
		return nil
	}
	errs := make(map[int]error, len(a.failed))
	for id, err := range a.failed {
		errs[id] = err
	}
	return &RegionErrors{Errs: errs}
}
