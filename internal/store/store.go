package store

import "time"

// State is the lifecycle state of a run.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Done reports whether the run has finished.
func (s State) Done() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// RunRecord is the stored view of a run, as served by the status API.
type RunRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Mode is "offset" or "index".
	Mode string `json:"mode"`

	State State `json:"state"`

	// Size is the batch size; zero in index mode.
	Size        int `json:"size"`
	Concurrency int `json:"concurrency"`

	ProcessedItems   int     `json:"processed_items"`
	ProcessedBatches int     `json:"processed_batches"`
	ItemsPerSecond   float64 `json:"items_per_second"`

	// LastKey is the offset or index of the most recently completed batch.
	LastKey int `json:"last_key"`

	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at"`

	// Error holds the failure message of a failed run.
	Error *string `json:"error"`
}

// Store defines storage and subscription for run records.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Update stores a record keyed by ID and notifies all subscribers.
	Update(record RunRecord)

	// Get returns the record with the given ID.
	Get(id string) (RunRecord, bool)

	// GetAll returns every record, oldest run first.
	GetAll() []RunRecord

	// Subscribe returns a buffered channel of updates. Caller must call
	// Unsubscribe when done.
	Subscribe() <-chan RunRecord

	// Unsubscribe removes a subscription and closes the channel. Safe to
	// call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan RunRecord)
}
