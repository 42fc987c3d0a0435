package batchflow

import (
	"context"
	"fmt"
	"time"

	"github.com/jpalmerr/batchflow/internal/scheduler"
)

// Mode is the addressing scheme of a run.
type Mode string

const (
	// ModeOffset claims (offset, size) pairs; the cursor advances by size.
	ModeOffset Mode = "offset"

	// ModeIndex claims bare sequential indexes; fetch decides batch size.
	ModeIndex Mode = "index"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// ParseMode converts "offset" or "index" to a [Mode]. An empty string is
// [ModeOffset].
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeOffset:
		return ModeOffset, nil
	case ModeIndex:
		return ModeIndex, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected 'offset' or 'index')", s)
	}
}

// FetchFunc returns up to size items starting at offset.
//
// Returning a nil or empty slice tells the calling worker that the source is
// exhausted. A shorter, non-empty slice is a valid batch and does not end the
// run.
type FetchFunc[T any] func(ctx context.Context, offset, size int) ([]T, error)

// IndexFetchFunc returns the batch with the given index. Batch sizing is
// entirely up to the implementation. A nil or empty slice signals exhaustion.
type IndexFetchFunc[T any] func(ctx context.Context, index int) ([]T, error)

// ProcessFunc handles one non-empty batch. key is the offset in offset mode
// and the index in index mode.
type ProcessFunc[T any] func(ctx context.Context, batch []T, key int) error

// PanicError is returned when a fetch or process function panics.
//
// The full stack trace is logged with the same correlation ID.
type PanicError = scheduler.PanicError

// BatchResult describes a batch that was fetched and processed successfully.
//
// BatchResult values are passed to callbacks registered with
// [WithBatchCallback].
type BatchResult struct {
	// RunID is the unique identifier of the run.
	RunID string

	// RunName is the name set via [WithName], if any.
	RunName string

	// Mode is the addressing mode of the run.
	Mode Mode

	// Worker is the 1-based number of the worker that handled the batch.
	Worker int

	// Key is the offset or index of the batch.
	Key int

	// Size is the requested batch size. Zero in index mode.
	Size int

	// Items is the number of items in the batch.
	Items int

	// FetchLatency is the time spent in the fetch function.
	FetchLatency time.Duration

	// ProcessLatency is the time spent in the process function.
	ProcessLatency time.Duration

	// CompletedAt is when the process function returned.
	CompletedAt time.Time
}

// eventToResult converts a scheduler event to the public result type.
func eventToResult(e scheduler.Event, mode Mode, name string) BatchResult {
	return BatchResult{
		RunID:          e.RunID,
		RunName:        name,
		Mode:           mode,
		Worker:         e.Worker,
		Key:            e.Claim.Key,
		Size:           e.Claim.Size,
		Items:          e.Items,
		FetchLatency:   e.FetchLatency,
		ProcessLatency: e.ProcessLatency,
		CompletedAt:    e.CompletedAt,
	}
}
