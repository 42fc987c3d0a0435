package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sliceFetch serves items by offset/size, or by index*pageSize in index mode.
func sliceFetch(items []int, pageSize int) FetchFunc[int] {
	return func(_ context.Context, c Claim) ([]int, error) {
		start := c.Key
		size := c.Size
		if size == 0 {
			start = c.Key * pageSize
			size = pageSize
		}
		if start >= len(items) {
			return nil, nil
		}
		end := min(start+size, len(items))
		return items[start:end], nil
	}
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestStrategy(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		kind     Kind
		size     int
		step     int
	}{
		{"offset", Offset(5), KindOffset, 5, 5},
		{"offset zero size", Offset(0), KindOffset, 1, 1},
		{"offset negative size", Offset(-3), KindOffset, 1, 1},
		{"index", Index(), KindIndex, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.strategy.Kind())
			assert.Equal(t, tt.size, tt.strategy.Size())
			assert.Equal(t, tt.step, tt.strategy.Step())
		})
	}

	assert.Equal(t, "offset", KindOffset.String())
	assert.Equal(t, "index", KindIndex.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

// TestCursor_ClaimsAreUnique hammers the cursor from many goroutines and
// checks that no key is handed out twice. Run with -race.
func TestCursor_ClaimsAreUnique(t *testing.T) {
	const (
		goroutines = 32
		perWorker  = 500
		step       = 3
	)

	cur := newCursor(step)
	keys := make(chan int, goroutines*perWorker)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				keys <- cur.claim()
			}
		}()
	}
	wg.Wait()
	close(keys)

	seen := make(map[int]bool, goroutines*perWorker)
	for k := range keys {
		require.False(t, seen[k], "key %d claimed twice", k)
		require.Zero(t, k%step, "key %d is not a multiple of the step", k)
		seen[k] = true
	}
	assert.Len(t, seen, goroutines*perWorker)
}

func TestScheduler_NewDefaults(t *testing.T) {
	s := NewScheduler[int](Index(), 0, nil)
	assert.Equal(t, 1, s.Concurrency())
	assert.Equal(t, KindIndex, s.Strategy().Kind())
}

func TestScheduler_OffsetSequential(t *testing.T) {
	var (
		batches [][]int
		keys    []int
	)

	s := NewScheduler[int](Offset(2), 1, testLogger())
	err := s.Run(context.Background(), "run", sliceFetch(seq(6), 0), func(_ context.Context, c Claim, items []int) error {
		batches = append(batches, items)
		keys = append(keys, c.Key)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5, 6}}, batches)
	assert.Equal(t, []int{0, 2, 4}, keys)
}

func TestScheduler_IndexMode(t *testing.T) {
	var (
		mu    sync.Mutex
		sizes []int
		keys  []int
	)

	s := NewScheduler[int](Index(), 3, testLogger())
	err := s.Run(context.Background(), "run", func(_ context.Context, c Claim) ([]int, error) {
		assert.Zero(t, c.Size, "index mode must not pass a size")
		return sliceFetch(seq(10), 4)(context.Background(), c)
	}, func(_ context.Context, c Claim, items []int) error {
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, c.Key)
		sizes = append(sizes, len(items))
		return nil
	})

	require.NoError(t, err)
	sort.Ints(keys)
	assert.Equal(t, []int{0, 1, 2}, keys)
	sort.Ints(sizes)
	assert.Equal(t, []int{2, 4, 4}, sizes)
}

// TestScheduler_SameBatchesAnyConcurrency verifies that concurrency changes
// only interleaving, never which (batch, key) pairs are produced.
func TestScheduler_SameBatchesAnyConcurrency(t *testing.T) {
	items := seq(97)

	collect := func(concurrency int) map[int][]int {
		var mu sync.Mutex
		got := make(map[int][]int)
		s := NewScheduler[int](Offset(7), concurrency, testLogger())
		err := s.Run(context.Background(), "run", sliceFetch(items, 0), func(_ context.Context, c Claim, batch []int) error {
			mu.Lock()
			defer mu.Unlock()
			_, dup := got[c.Key]
			assert.False(t, dup, "key %d processed twice", c.Key)
			got[c.Key] = batch
			return nil
		})
		require.NoError(t, err)
		return got
	}

	want := collect(1)
	assert.Len(t, want, 14)
	for _, c := range []int{2, 3, 8, 32} {
		assert.Equal(t, want, collect(c), "concurrency %d", c)
	}
}

func TestScheduler_ProcessErrorIsReturnedVerbatim(t *testing.T) {
	wantErr := errors.New("boom")
	var processed [][]int

	s := NewScheduler[int](Offset(1), 1, testLogger())
	err := s.Run(context.Background(), "run", sliceFetch(seq(2), 0), func(_ context.Context, _ Claim, items []int) error {
		processed = append(processed, items)
		return wantErr
	})

	require.Error(t, err)
	assert.Same(t, wantErr, err)
	assert.Equal(t, [][]int{{1}}, processed)
}

func TestScheduler_FetchErrorIsReturnedVerbatim(t *testing.T) {
	wantErr := errors.New("fetch failed")
	var processCalls atomic.Int32

	s := NewScheduler[int](Offset(2), 4, testLogger())
	err := s.Run(context.Background(), "run", func(context.Context, Claim) ([]int, error) {
		return nil, wantErr
	}, func(context.Context, Claim, []int) error {
		processCalls.Add(1)
		return nil
	})

	assert.Same(t, wantErr, err)
	assert.Zero(t, processCalls.Load())
}

// TestScheduler_NoClaimsAfterFailure verifies that a worker stops claiming
// once a failure has been observed.
func TestScheduler_NoClaimsAfterFailure(t *testing.T) {
	wantErr := errors.New("stop")
	var fetches atomic.Int32

	s := NewScheduler[int](Offset(1), 1, testLogger())
	err := s.Run(context.Background(), "run", func(ctx context.Context, c Claim) ([]int, error) {
		fetches.Add(1)
		return sliceFetch(seq(100), 0)(ctx, c)
	}, func(_ context.Context, c Claim, _ []int) error {
		if c.Key == 3 {
			return wantErr
		}
		return nil
	})

	assert.Same(t, wantErr, err)
	assert.Equal(t, int32(4), fetches.Load())
}

// TestScheduler_FailureCancelsSiblings verifies that in-flight siblings see
// a cancelled context and that their errors do not replace the first one.
func TestScheduler_FailureCancelsSiblings(t *testing.T) {
	wantErr := errors.New("first")
	blocked := make(chan struct{})

	s := NewScheduler[int](Offset(1), 2, testLogger())
	err := s.Run(context.Background(), "run", sliceFetch(seq(10), 0), func(ctx context.Context, c Claim, _ []int) error {
		if c.Key == 0 {
			// wait until the sibling has its batch in flight
			<-blocked
			return wantErr
		}
		close(blocked)
		<-ctx.Done()
		return errors.New("sibling saw cancellation")
	})

	assert.Same(t, wantErr, err)
}

// TestScheduler_FailureDoesNotWaitForStragglers verifies that the first error
// is returned while a sibling that ignores its context is still running, and
// that the sibling's batch is never reported.
func TestScheduler_FailureDoesNotWaitForStragglers(t *testing.T) {
	wantErr := errors.New("boom")
	release := make(chan struct{})
	stragglerDone := make(chan struct{})

	var (
		mu     sync.Mutex
		events []int
	)
	s := NewScheduler[int](Offset(1), 2, testLogger())
	s.OnBatch(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Claim.Key)
	})

	start := time.Now()
	err := s.Run(context.Background(), "run", sliceFetch(seq(4), 0), func(_ context.Context, c Claim, _ []int) error {
		switch c.Key {
		case 0:
			time.Sleep(10 * time.Millisecond)
			return wantErr
		case 1:
			defer close(stragglerDone)
			// ignores ctx on purpose
			select {
			case <-release:
			case <-time.After(5 * time.Second):
			}
			return nil
		}
		return nil
	})
	elapsed := time.Since(start)

	assert.Same(t, wantErr, err)
	assert.Less(t, elapsed, time.Second, "Run should not wait for the straggler")

	close(release)
	select {
	case <-stragglerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("straggler never finished")
	}
	// give a late event the chance to be (wrongly) delivered
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, events, 1, "straggler batch finished after the failure must not be reported")
}

// TestScheduler_CancelDoesNotWaitForStragglers verifies that caller
// cancellation returns ctx.Err() without waiting for in-flight calls.
func TestScheduler_CancelDoesNotWaitForStragglers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	var once sync.Once

	s := NewScheduler[int](Offset(1), 1, testLogger())
	go func() {
		<-started
		cancel()
	}()

	start := time.Now()
	err := s.Run(ctx, "run", sliceFetch(seq(4), 0), func(context.Context, Claim, []int) error {
		once.Do(func() { close(started) })
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestScheduler_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var fetches atomic.Int32
	s := NewScheduler[int](Offset(1), 3, testLogger())
	err := s.Run(ctx, "run", func(context.Context, Claim) ([]int, error) {
		fetches.Add(1)
		return []int{1}, nil
	}, func(context.Context, Claim, []int) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fetches.Load())
}

func TestScheduler_ContextCancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler[int](Index(), 2, testLogger())
	err := s.Run(ctx, "run", func(context.Context, Claim) ([]int, error) {
		// endless source
		return []int{1}, nil
	}, func(_ context.Context, c Claim, _ []int) error {
		if c.Key == 10 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_ProcessPanicRecovered(t *testing.T) {
	s := NewScheduler[int](Offset(1), 1, testLogger())
	err := s.Run(context.Background(), "run", sliceFetch(seq(3), 0), func(_ context.Context, c Claim, _ []int) error {
		if c.Key == 1 {
			panic("bad batch")
		}
		return nil
	})

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "process", pe.Op)
	assert.Equal(t, 1, pe.Key)
	assert.Equal(t, "bad batch", pe.Value)
	assert.NotEmpty(t, pe.CorrelationID)
	assert.NotEmpty(t, pe.Stack)
	assert.Contains(t, err.Error(), pe.CorrelationID)
	assert.Nil(t, pe.Unwrap())
}

func TestScheduler_FetchPanicWithErrorUnwraps(t *testing.T) {
	cause := errors.New("cause")

	s := NewScheduler[int](Offset(4), 2, testLogger())
	err := s.Run(context.Background(), "run", func(context.Context, Claim) ([]int, error) {
		panic(cause)
	}, func(context.Context, Claim, []int) error { return nil })

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "fetch", pe.Op)
	assert.ErrorIs(t, err, cause)
}

func TestScheduler_OnBatch(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Event
	)

	s := NewScheduler[int](Offset(3), 2, testLogger()).OnBatch(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	err := s.Run(context.Background(), "run-42", sliceFetch(seq(10), 0), func(context.Context, Claim, []int) error {
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 4)
	total := 0
	for _, e := range events {
		assert.Equal(t, "run-42", e.RunID)
		assert.Contains(t, []int{1, 2}, e.Worker)
		assert.Equal(t, 3, e.Claim.Size)
		assert.False(t, e.CompletedAt.IsZero())
		total += e.Items
	}
	assert.Equal(t, 10, total)
}

// TestScheduler_InFlightBound verifies that no more than concurrency batches
// are ever processed at once and that the pool actually fills up.
func TestScheduler_InFlightBound(t *testing.T) {
	const concurrency = 3

	var inFlight, peak atomic.Int32

	s := NewScheduler[int](Offset(1), concurrency, testLogger())
	err := s.Run(context.Background(), "run", sliceFetch(seq(30), 0), func(context.Context, Claim, []int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(concurrency), peak.Load())
}

func TestPanicError_Error(t *testing.T) {
	pe := &PanicError{CorrelationID: "abc", Op: "fetch", Key: 8, Value: "oops"}
	assert.Equal(t, "fetch panic at key 8 (correlation_id: abc): oops", pe.Error())
}
