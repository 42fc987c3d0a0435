package scheduler

import "sync/atomic"

// Claim is one unit of work taken from the cursor.
type Claim struct {
	// Key is the offset (offset mode) or index (index mode).
	Key int

	// Size is the requested batch size. Zero in index mode.
	Size int
}

// cursor hands out strictly increasing, never repeated keys.
//
// claim is a single atomic add, so concurrent workers can never observe the
// same pre-advance value.
type cursor struct {
	next atomic.Int64
	step int64
}

func newCursor(step int) *cursor {
	return &cursor{step: int64(step)}
}

// claim returns the current value and advances the cursor by one step.
func (c *cursor) claim() int {
	return int(c.next.Add(c.step) - c.step)
}
