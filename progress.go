package batchflow

import (
	"sync"
	"time"
)

// Progress tracks how much of a run has been processed.
//
// Sources are open-ended, so Progress counts what has been done rather than
// what is left. It is safe for concurrent use.
type Progress struct {
	runID            string
	processedItems   int
	processedBatches int
	startTime        time.Time
	lastUpdateTime   time.Time

	mu sync.RWMutex
}

// NewProgress creates a progress tracker for the given run.
func NewProgress(runID string) *Progress {
	now := time.Now()
	return &Progress{
		runID:          runID,
		startTime:      now,
		lastUpdateTime: now,
	}
}

// AddProcessed records one processed batch of n items.
func (p *Progress) AddProcessed(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processedItems += n
	p.processedBatches++
	p.lastUpdateTime = time.Now()
}

// ProcessedItems returns the number of items processed so far.
func (p *Progress) ProcessedItems() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.processedItems
}

// ProcessedBatches returns the number of batches processed so far.
func (p *Progress) ProcessedBatches() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.processedBatches
}

// ElapsedTime returns the time elapsed since the tracker was created.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// ItemsPerSecond returns the processing rate in items per second.
func (p *Progress) ItemsPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ratePerSecondUnsafe(p.processedItems)
}

// BatchesPerSecond returns the processing rate in batches per second.
func (p *Progress) BatchesPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ratePerSecondUnsafe(p.processedBatches)
}

// Snapshot returns a copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		RunID:            p.runID,
		ProcessedItems:   p.processedItems,
		ProcessedBatches: p.processedBatches,
		StartTime:        p.startTime,
		LastUpdateTime:   p.lastUpdateTime,
		ElapsedTime:      time.Since(p.startTime),
		ItemsPerSecond:   p.ratePerSecondUnsafe(p.processedItems),
	}
}

// ratePerSecondUnsafe must be called with p.mu held.
func (p *Progress) ratePerSecondUnsafe(n int) float64 {
	elapsed := time.Since(p.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(n) / elapsed
}

// ProgressSnapshot is an immutable copy of a [Progress] at one point in time.
type ProgressSnapshot struct {
	RunID            string
	ProcessedItems   int
	ProcessedBatches int
	StartTime        time.Time
	LastUpdateTime   time.Time
	ElapsedTime      time.Duration
	ItemsPerSecond   float64
}
