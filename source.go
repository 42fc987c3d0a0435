package batchflow

import "context"

// FromSlice returns a [FetchFunc] that serves items[offset:offset+size].
//
// Batches share the backing array of items but have their capacity capped,
// so appending to a batch never overwrites the source.
func FromSlice[T any](items []T) FetchFunc[T] {
	return func(_ context.Context, offset, size int) ([]T, error) {
		return sliceWindow(items, offset, size), nil
	}
}

// FromSliceIndexed returns an [IndexFetchFunc] that serves
// items[index*size:index*size+size]. Sizes below 1 are treated as 1.
func FromSliceIndexed[T any](items []T, size int) IndexFetchFunc[T] {
	if size < 1 {
		size = 1
	}
	return func(_ context.Context, index int) ([]T, error) {
		return sliceWindow(items, index*size, size), nil
	}
}

// ProcessSlice processes an in-memory slice in offset mode.
// It is equivalent to Process(ctx, FromSlice(items), cfg, process, opts...).
func ProcessSlice[T any](ctx context.Context, items []T, cfg Config, process ProcessFunc[T], opts ...Option) error {
	return Process(ctx, FromSlice(items), cfg, process, opts...)
}

func sliceWindow[T any](items []T, start, size int) []T {
	if start < 0 || start >= len(items) {
		return nil
	}
	end := min(start+size, len(items))
	return items[start:end:end]
}
