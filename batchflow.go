package batchflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jpalmerr/batchflow/internal/scheduler"
)

// Process pulls batches from fetch in offset mode and hands each non-empty
// batch to process, using cfg.Concurrency workers.
//
// Each worker claims the next offset (advancing a shared cursor by cfg.Size),
// calls fetch(ctx, offset, cfg.Size), stops when the batch is nil or empty,
// and otherwise calls process(ctx, batch, offset) before claiming again.
// Process returns once every worker has seen an empty batch.
//
// The first error returned by fetch or process is returned unchanged as soon
// as it happens; it also cancels the context passed to calls still in flight,
// and no further offsets are claimed. Process does not wait for those calls to
// return, so a fetch or process that ignores its context may still be running
// after Process has returned. Batch and progress callbacks are not invoked for
// them. A panic in fetch or process is returned as a *[PanicError].
// If ctx is cancelled, Process returns ctx.Err().
//
// Example:
//
//	err := batchflow.Process(ctx, fetchUsers, batchflow.Config{Size: 100, Concurrency: 4},
//	    func(ctx context.Context, users []User, offset int) error {
//	        return index(ctx, users)
//	    },
//	)
func Process[T any](ctx context.Context, fetch FetchFunc[T], cfg Config, process ProcessFunc[T], opts ...Option) error {
	if fetch == nil {
		return ErrNilFetch
	}
	if process == nil {
		return ErrNilProcess
	}

	cfg, err := cfg.normalize(ModeOffset)
	if err != nil {
		return err
	}

	return run(ctx, ModeOffset, scheduler.Offset(cfg.Size), cfg.Concurrency, opts,
		func(ctx context.Context, c scheduler.Claim) ([]T, error) {
			return fetch(ctx, c.Key, c.Size)
		},
		func(ctx context.Context, c scheduler.Claim, items []T) error {
			return process(ctx, items, c.Key)
		},
	)
}

// ProcessIndexed is like [Process] in index mode: workers claim 0, 1, 2, ...
// and fetch decides how large each batch is.
//
// cfg.Size must be zero; otherwise [ErrSizeInIndexMode] is returned.
func ProcessIndexed[T any](ctx context.Context, fetch IndexFetchFunc[T], cfg Config, process ProcessFunc[T], opts ...Option) error {
	if fetch == nil {
		return ErrNilFetch
	}
	if process == nil {
		return ErrNilProcess
	}

	cfg, err := cfg.normalize(ModeIndex)
	if err != nil {
		return err
	}

	return run(ctx, ModeIndex, scheduler.Index(), cfg.Concurrency, opts,
		func(ctx context.Context, c scheduler.Claim) ([]T, error) {
			return fetch(ctx, c.Key)
		},
		func(ctx context.Context, c scheduler.Claim, items []T) error {
			return process(ctx, items, c.Key)
		},
	)
}

// run applies options, wires callbacks and drives the scheduler.
func run[T any](ctx context.Context, mode Mode, strategy scheduler.Strategy, concurrency int, opts []Option,
	fetch scheduler.FetchFunc[T], process scheduler.ProcessFunc[T]) error {
	rc, err := newRunConfig(opts)
	if err != nil {
		return err
	}

	runID := rc.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	logger := rc.logger
	if rc.name != "" {
		logger = logger.With("run_name", rc.name)
	}

	sched := scheduler.NewScheduler[T](strategy, concurrency, logger)

	if len(rc.batchCallbacks) > 0 || len(rc.progressCallbacks) > 0 {
		progress := NewProgress(runID)

		// callbacks are delivered one at a time
		var mu sync.Mutex
		sched.OnBatch(func(e scheduler.Event) {
			mu.Lock()
			defer mu.Unlock()

			progress.AddProcessed(e.Items)

			result := eventToResult(e, mode, rc.name)
			for _, cb := range rc.batchCallbacks {
				invokeCallbackSafe(cb, result, logger)
			}

			if len(rc.progressCallbacks) > 0 {
				snap := progress.Snapshot()
				for _, cb := range rc.progressCallbacks {
					invokeCallbackSafe(cb, snap, logger)
				}
			}
		})
	}

	return sched.Run(ctx, runID, fetch, process)
}

// invokeCallbackSafe calls a callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe[V any](cb func(V), v V, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked", "panic", r)
		}
	}()
	cb(v)
}
