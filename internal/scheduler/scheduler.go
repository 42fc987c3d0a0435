package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// FetchFunc produces the batch for a claim. A nil or empty slice ends the
// calling worker's loop.
type FetchFunc[T any] func(ctx context.Context, claim Claim) ([]T, error)

// ProcessFunc handles one non-empty batch.
type ProcessFunc[T any] func(ctx context.Context, claim Claim, items []T) error

// Event describes a batch that was fetched and processed successfully.
type Event struct {
	// RunID identifies the run that produced the batch.
	RunID string

	// Worker is the 1-based worker number.
	Worker int

	// Claim is the claimed key and requested size.
	Claim Claim

	// Items is the number of items in the batch.
	Items int

	// FetchLatency is the time spent in fetch.
	FetchLatency time.Duration

	// ProcessLatency is the time spent in process.
	ProcessLatency time.Duration

	// CompletedAt is when process returned.
	CompletedAt time.Time
}

// Scheduler runs a fixed pool of workers over a shared cursor.
//
// A Scheduler holds no per-run state; every call to [Scheduler.Run] gets a
// fresh cursor starting at zero, so one Scheduler may run many times and
// concurrently.
type Scheduler[T any] struct {
	strategy    Strategy
	concurrency int
	logger      *slog.Logger
	onBatch     func(Event)
}

// NewScheduler creates a [Scheduler].
//
// Parameters:
//   - strategy: how keys are claimed (see [Offset] and [Index])
//   - concurrency: number of workers; values below 1 are raised to 1
//   - logger: logger for run events and recovered panics
func NewScheduler[T any](strategy Strategy, concurrency int, logger *slog.Logger) *Scheduler[T] {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler[T]{
		strategy:    strategy,
		concurrency: concurrency,
		logger:      logger,
	}
}

// OnBatch registers fn to be called after every successful process call.
//
// fn is called from worker goroutines and may run concurrently with itself.
func (s *Scheduler[T]) OnBatch(fn func(Event)) *Scheduler[T] {
	s.onBatch = fn
	return s
}

// Concurrency returns the number of workers spawned per run.
func (s *Scheduler[T]) Concurrency() int {
	return s.concurrency
}

// Strategy returns the key-and-advance strategy.
func (s *Scheduler[T]) Strategy() Strategy {
	return s.strategy
}

// Run drives the worker pool until every worker has seen an empty batch or
// one of them has failed.
//
// Run returns nil when all workers reached exhaustion. Otherwise it returns
// the first error produced by fetch or process, unmodified, as soon as it
// happens. The failure cancels the context passed to every in-flight call and
// stops further claims. Run does not wait for those calls: they may still be
// running after Run returns, their results are discarded and no [Event] is
// delivered for them.
// If ctx is cancelled, Run returns ctx.Err() unless a worker failed first.
func (s *Scheduler[T]) Run(ctx context.Context, runID string, fetch FetchFunc[T], process ProcessFunc[T]) error {
	cur := newCursor(s.strategy.Step())
	start := time.Now()

	s.logger.Debug("run started",
		"run_id", runID,
		"mode", s.strategy.Kind().String(),
		"size", s.strategy.Size(),
		"concurrency", s.concurrency,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		firstErr error
		failOnce sync.Once
		failed   = make(chan struct{})
	)
	gate := &eventGate{}

	g, gctx := errgroup.WithContext(runCtx)
	for worker := 1; worker <= s.concurrency; worker++ {
		g.Go(func() error {
			err := s.work(gctx, runID, worker, cur, gate, fetch, process)
			if err != nil {
				failOnce.Do(func() {
					firstErr = err
					// siblings are cancelled before the failure is reported
					cancel()
					close(failed)
				})
			}
			return err
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-failed:
	case <-ctx.Done():
		select {
		case <-done:
		default:
			err = ctx.Err()
		}
	}
	// a worker failure takes precedence over caller cancellation
	select {
	case <-failed:
		err = firstErr
	default:
	}
	gate.close()

	if err != nil {
		s.logger.Warn("run failed",
			"run_id", runID,
			"error", err.Error(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return err
	}

	s.logger.Debug("run completed",
		"run_id", runID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// eventGate stops batch events once Run has returned.
type eventGate struct {
	mu     sync.RWMutex
	closed bool
}

// deliver calls fn unless the gate is closed. close waits for deliveries in
// progress.
func (g *eventGate) deliver(fn func()) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.closed {
		fn()
	}
}

func (g *eventGate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// work is one worker's claim/fetch/process loop.
func (s *Scheduler[T]) work(ctx context.Context, runID string, worker int, cur *cursor, gate *eventGate,
	fetch FetchFunc[T], process ProcessFunc[T]) error {
	for {
		// a sibling failure or caller cancellation stops new claims
		if err := ctx.Err(); err != nil {
			return err
		}

		claim := Claim{Key: cur.claim(), Size: s.strategy.Size()}

		fetchStart := time.Now()
		items, err := s.safeFetch(ctx, fetch, claim)
		if err != nil {
			return err
		}
		fetchLatency := time.Since(fetchStart)

		if len(items) == 0 {
			s.logger.Debug("worker exhausted", "run_id", runID, "worker", worker, "key", claim.Key)
			return nil
		}

		processStart := time.Now()
		if err := s.safeProcess(ctx, process, claim, items); err != nil {
			return err
		}

		if s.onBatch != nil {
			ev := Event{
				RunID:          runID,
				Worker:         worker,
				Claim:          claim,
				Items:          len(items),
				FetchLatency:   fetchLatency,
				ProcessLatency: time.Since(processStart),
				CompletedAt:    time.Now(),
			}
			gate.deliver(func() {
				// a batch that finished after the run failed is discarded
				if ctx.Err() == nil {
					s.onBatch(ev)
				}
			})
		}
	}
}

// safeFetch calls fetch with panic recovery.
func (s *Scheduler[T]) safeFetch(ctx context.Context, fetch FetchFunc[T], claim Claim) (items []T, err error) {
	defer s.recoverPanic("fetch", claim, &err)
	return fetch(ctx, claim)
}

// safeProcess calls process with panic recovery.
func (s *Scheduler[T]) safeProcess(ctx context.Context, process ProcessFunc[T], claim Claim, items []T) (err error) {
	defer s.recoverPanic("process", claim, &err)
	return process(ctx, claim, items)
}

// recoverPanic turns a panic into a *PanicError. The full stack trace is
// logged with a correlation ID; the returned error only carries the ID.
func (s *Scheduler[T]) recoverPanic(op string, claim Claim, errp *error) {
	r := recover()
	if r == nil {
		return
	}

	correlationID := uuid.NewString()
	stack := debug.Stack()

	s.logger.Error(op+" panic",
		"correlation_id", correlationID,
		"key", claim.Key,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(stack),
	)

	*errp = &PanicError{
		CorrelationID: correlationID,
		Op:            op,
		Key:           claim.Key,
		Value:         r,
		Stack:         stack,
	}
}
