package batchflow

import (
	"errors"
	"log/slog"
)

// runConfig holds mutable state while a run is being set up.
type runConfig struct {
	name              string
	runID             string
	logger            *slog.Logger
	batchCallbacks    []func(BatchResult)
	progressCallbacks []func(ProgressSnapshot)
}

// Option is a function that configures a run of [Process], [ProcessIndexed]
// or [ProcessSlice].
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed in a type-safe, extensible way. Options return
// an error if validation fails; the run is then not started.
//
// Built-in options: [WithLogger], [WithName], [WithRunID],
// [WithBatchCallback], [WithProgressCallback].
type Option func(*runConfig) error

// newRunConfig applies opts on top of the defaults.
func newRunConfig(opts []Option) (*runConfig, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg, nil
}

// WithLogger sets a custom [slog.Logger] for the run.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	err := batchflow.ProcessSlice(ctx, items, batchflow.BatchSize(50), process,
//	    batchflow.WithLogger(logger),
//	)
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *runConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithName attaches a human-readable name to the run. The name is added to
// every log record and to each [BatchResult].
func WithName(name string) Option {
	return func(cfg *runConfig) error {
		cfg.name = name
		return nil
	}
}

// WithRunID sets the run identifier instead of a generated UUID.
//
// Use this when the caller needs to know the ID before the run starts, for
// example to register the run in an external status store.
//
// Returns an error if id is empty.
func WithRunID(id string) Option {
	return func(cfg *runConfig) error {
		if id == "" {
			return errors.New("run id cannot be empty")
		}
		cfg.runID = id
		return nil
	}
}

// WithBatchCallback registers a function to be called after every batch that
// was processed successfully.
//
// Multiple callbacks may be registered; they execute in registration order.
// Callbacks are invoked one at a time even when several workers finish
// together, so they do not need their own locking. They do, however, run on
// the worker's goroutine: a slow callback slows down the run.
//
// Panics within callbacks are recovered and logged; they do not fail the run.
//
// Nil callbacks are silently ignored.
func WithBatchCallback(cb func(BatchResult)) Option {
	return func(cfg *runConfig) error {
		if cb == nil {
			return nil
		}
		cfg.batchCallbacks = append(cfg.batchCallbacks, cb)
		return nil
	}
}

// WithProgressCallback registers a function that receives a
// [ProgressSnapshot] after every successfully processed batch.
//
// The same delivery rules as [WithBatchCallback] apply.
//
// Nil callbacks are silently ignored.
func WithProgressCallback(cb func(ProgressSnapshot)) Option {
	return func(cfg *runConfig) error {
		if cb == nil {
			return nil
		}
		cfg.progressCallbacks = append(cfg.progressCallbacks, cb)
		return nil
	}
}
