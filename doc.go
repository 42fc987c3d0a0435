// Package batchflow processes a chunked data source with a fixed number of
// concurrent workers.
//
// A run is described by two functions: fetch, which returns the batch for a
// given key, and process, which does the caller's work on one batch. Workers
// share a cursor, claim keys from it one at a time, and stop as soon as fetch
// returns an empty batch. The run ends when every worker has stopped, or
// fails with the first error any worker saw.
//
// # Quick Start
//
// Process an in-memory slice in batches of two:
//
//	err := batchflow.ProcessSlice(ctx, []int{1, 2, 3, 4, 5, 6}, batchflow.BatchSize(2),
//	    func(ctx context.Context, batch []int, offset int) error {
//	        fmt.Println(offset, batch) // 0 [1 2], 2 [3 4], 4 [5 6]
//	        return nil
//	    },
//	)
//
// # Addressing Modes
//
// In offset mode ([Process]) the cursor advances by the batch size and fetch
// receives (offset, size). In index mode ([ProcessIndexed]) the cursor
// advances by one and fetch receives only the index, which suits page-number
// APIs:
//
//	err := batchflow.ProcessIndexed(ctx,
//	    func(ctx context.Context, page int) ([]Order, error) {
//	        return client.ListOrders(ctx, page)
//	    },
//	    batchflow.Config{Concurrency: 4},
//	    storeOrders,
//	)
//
// Only a nil or zero-length batch ends a worker. A batch shorter than the
// requested size is processed normally.
//
// # Configuration
//
// [Config] holds the batch size and the number of workers; both default to
// one. [BatchSize] is shorthand for Config{Size: n}. Ambient behaviour is set
// with functional options:
//
//	err := batchflow.Process(ctx, fetch, batchflow.Config{Size: 500, Concurrency: 8}, process,
//	    batchflow.WithName("users-export"),
//	    batchflow.WithLogger(logger),
//	    batchflow.WithProgressCallback(func(p batchflow.ProgressSnapshot) {
//	        logger.Info("progress", "items", p.ProcessedItems)
//	    }),
//	)
//
// # Errors
//
// Errors returned by fetch or process are passed through unchanged, so
// callers can compare them with == or [errors.Is]. The first failure is
// returned immediately: it cancels the context given to calls still in flight
// and stops new claims, but the run does not wait for those calls to notice.
// Panics are recovered and reported as *[PanicError].
//
// # Architecture
//
// batchflow consists of several internal packages (under internal/):
//
//   - internal/scheduler: cursor, worker pool and first-error fan-in
//   - internal/source: HTTP page source and file source used by the CLI
//   - internal/sink: NDJSON and HTTP sinks used by the CLI
//   - internal/store: in-memory run store with pub/sub
//   - internal/server: HTTP status API with Server-Sent Events
//
// The config package and cmd/batchflow turn a YAML job file into a run.
package batchflow
