package store

import (
	"sort"
	"sync"
)

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Records are keyed by run ID; a new record for the same ID replaces the
// previous one. Updates are sent to subscribers without blocking: when a
// subscriber's buffer is full the update is dropped for that subscriber.
type MemoryStore struct {
	mu          sync.RWMutex
	runs        map[string]RunRecord
	subscribers map[chan RunRecord]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:        make(map[string]RunRecord),
		subscribers: make(map[chan RunRecord]struct{}),
	}
}

// Update stores record and notifies all subscribers.
func (m *MemoryStore) Update(record RunRecord) {
	m.mu.Lock()
	m.runs[record.ID] = record
	m.mu.Unlock()

	m.notifySubscribers(record)
}

// Get returns the record with the given ID.
func (m *MemoryStore) Get(id string) (RunRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.runs[id]
	return record, ok
}

// GetAll returns a snapshot of all records ordered by start time, then ID.
func (m *MemoryStore) GetAll() []RunRecord {
	m.mu.RLock()
	records := make([]RunRecord, 0, len(m.runs))
	for _, record := range m.runs {
		records = append(records, record)
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if !records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].StartedAt.Before(records[j].StartedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records
}

// Subscribe creates a new subscription with a buffer of 100 updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan RunRecord {
	ch := make(chan RunRecord, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (m *MemoryStore) Unsubscribe(ch <-chan RunRecord) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// the map is keyed by the bidirectional channel
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (m *MemoryStore) notifySubscribers(record RunRecord) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- record:
		default:
			// slow subscriber, drop
		}
	}
}
