package batchflow

import (
	"errors"
	"fmt"
)

const (
	defaultSize        = 1
	defaultConcurrency = 1
)

// Common configuration and argument errors.
var (
	ErrInvalidConfig   = errors.New("invalid batch config")
	ErrSizeInIndexMode = errors.New("size is not accepted in index mode")
	ErrNilFetch        = errors.New("fetch function cannot be nil")
	ErrNilProcess      = errors.New("process function cannot be nil")
)

// Config controls batch sizing and the number of workers for a run.
//
// The zero value is valid and means size 1, concurrency 1 (fully
// sequential). Use [BatchSize] for the common case of only setting the size.
type Config struct {
	// Size is the number of items requested per fetch in offset mode.
	// Zero means 1. Must be zero in index mode.
	Size int

	// Concurrency is the number of workers. Zero means 1.
	Concurrency int
}

// BatchSize is shorthand for Config{Size: n}.
//
// Example:
//
//	err := batchflow.Process(ctx, fetch, batchflow.BatchSize(100), process)
func BatchSize(n int) Config {
	return Config{Size: n}
}

// normalize validates c for mode and applies defaults.
func (c Config) normalize(mode Mode) (Config, error) {
	if c.Size < 0 {
		return Config{}, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, c.Size)
	}
	if c.Concurrency < 0 {
		return Config{}, fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfig, c.Concurrency)
	}

	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}

	switch mode {
	case ModeIndex:
		if c.Size != 0 {
			return Config{}, fmt.Errorf("%w: got size %d", ErrSizeInIndexMode, c.Size)
		}
	default:
		if c.Size == 0 {
			c.Size = defaultSize
		}
	}

	return c, nil
}
