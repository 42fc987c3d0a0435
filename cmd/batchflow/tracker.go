package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jpalmerr/batchflow"
	"github.com/jpalmerr/batchflow/config"
	"github.com/jpalmerr/batchflow/internal/store"
)

// runTracker mirrors a run's progress into a store.
type runTracker struct {
	mu     sync.Mutex
	store  store.Store
	record store.RunRecord
}

func newRunTracker(st store.Store, runID string, job *config.Job) *runTracker {
	now := time.Now()
	t := &runTracker{
		store: st,
		record: store.RunRecord{
			ID:          runID,
			Name:        job.Name,
			Mode:        job.Mode.String(),
			State:       store.StateRunning,
			Size:        job.Batch.Size,
			Concurrency: max(job.Batch.Concurrency, 1),
			StartedAt:   now,
			UpdatedAt:   now,
		},
	}
	if job.Mode == batchflow.ModeOffset && t.record.Size == 0 {
		t.record.Size = 1
	}
	st.Update(t.record)
	return t
}

// onBatch is registered with batchflow.WithBatchCallback.
func (t *runTracker) onBatch(r batchflow.BatchResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.record.LastKey = r.Key
}

// onProgress is registered with batchflow.WithProgressCallback.
func (t *runTracker) onProgress(p batchflow.ProgressSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.record.ProcessedItems = p.ProcessedItems
	t.record.ProcessedBatches = p.ProcessedBatches
	t.record.ItemsPerSecond = p.ItemsPerSecond
	t.record.UpdatedAt = p.LastUpdateTime
	t.store.Update(t.record)
}

// finish records the outcome of the run.
func (t *runTracker) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.record.UpdatedAt = now
	t.record.FinishedAt = &now

	switch {
	case err == nil:
		t.record.State = store.StateSucceeded
	case errors.Is(err, context.Canceled):
		t.record.State = store.StateCancelled
	default:
		t.record.State = store.StateFailed
	}
	if err != nil {
		msg := err.Error()
		t.record.Error = &msg
	}

	t.store.Update(t.record)
}

// snapshot returns the current record.
func (t *runTracker) snapshot() store.RunRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record
}
