package tiled

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error categories. Failures returned by Extract wrap one of these along
// with the underlying cause, so both can be matched with errors.Is.
var (
	// ErrConfiguration reports an invalid call detected before any tile is
	// read, such as a shared region with no way to combine it.
	ErrConfiguration = errors.New("configuration error")
	// ErrOutOfBounds is passed to the skip handler for regions that lie
	// entirely outside the array. It never fails a call.
	ErrOutOfBounds = errors.New("region out of bounds")
	// ErrReadFailure wraps errors from a TileReader. Reads are not retried.
	ErrReadFailure = errors.New("tile read failed")
	// ErrApplyFailure wraps errors from an operation's Apply or Combine.
	ErrApplyFailure = errors.New("operation failed")
	// ErrInternalConsistency means the engine lost or duplicated a result.
	ErrInternalConsistency = errors.New("internal consistency error")
)

// RegionErrors is returned in lenient mode when some regions failed. The
// results returned alongside it are valid for every other region.
type RegionErrors struct {
	Errs map[int]error
}

func (e *RegionErrors) Error() string {
	ids := make([]int, 0, len(e.Errs))
	for id := range e.Errs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "%d regions failed", len(ids))
	for i, id := range ids {
		if i == 3 {
			fmt.Fprintf(&b, "; ...")
			break
		}
		fmt.Fprintf(&b, "; region %d: %v", id, e.Errs[id])
	}
	return b.String()
}

func (e *RegionErrors) Unwrap() []error {
	errs := make([]error, 0, len(e.Errs))
	for _, err := range e.Errs {
		errs = append(errs, err)
	}
	return errs
}
