package store

import (
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}
}

func TestMemoryStore_UpdateAndGet(t *testing.T) {
	store := NewMemoryStore()

	store.Update(RunRecord{
		ID:          "run-1",
		Name:        "export",
		Mode:        "offset",
		State:       StateRunning,
		Size:        100,
		Concurrency: 4,
		StartedAt:   time.Now(),
	})

	got, ok := store.Get("run-1")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Name != "export" {
		t.Errorf("Get().Name = %v, want %v", got.Name, "export")
	}
	if got.State != StateRunning {
		t.Errorf("Get().State = %v, want %v", got.State, StateRunning)
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("Get(missing) ok = true, want false")
	}
}

func TestMemoryStore_UpdateOverwrites(t *testing.T) {
	store := NewMemoryStore()

	store.Update(RunRecord{ID: "run-1", State: StateRunning, ProcessedItems: 10})
	store.Update(RunRecord{ID: "run-1", State: StateRunning, ProcessedItems: 20})
	store.Update(RunRecord{ID: "run-1", State: StateSucceeded, ProcessedItems: 25})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].State != StateSucceeded {
		t.Errorf("State = %v, want %v", all[0].State, StateSucceeded)
	}
	if all[0].ProcessedItems != 25 {
		t.Errorf("ProcessedItems = %v, want 25", all[0].ProcessedItems)
	}
}

func TestMemoryStore_GetAllOrderedByStart(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now()

	store.Update(RunRecord{ID: "c", StartedAt: base.Add(2 * time.Second)})
	store.Update(RunRecord{ID: "a", StartedAt: base})
	store.Update(RunRecord{ID: "b", StartedAt: base.Add(time.Second)})

	all := store.GetAll()
	if len(all) != 3 {
		t.Fatalf("GetAll() = %v items, want 3", len(all))
	}
	for i, want := range []string{"a", "b", "c"} {
		if all[i].ID != want {
			t.Errorf("GetAll()[%d].ID = %v, want %v", i, all[i].ID, want)
		}
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	defer store.Unsubscribe(ch)

	store.Update(RunRecord{ID: "run-1", State: StateRunning})

	select {
	case got := <-ch:
		if got.ID != "run-1" {
			t.Errorf("received ID = %v, want run-1", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for update")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	defer store.Unsubscribe(ch1)
	defer store.Unsubscribe(ch2)

	store.Update(RunRecord{ID: "run-1"})

	for i, ch := range []<-chan RunRecord{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Errorf("subscriber %d did not receive update", i+1)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	store.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// second call is a no-op
	store.Unsubscribe(ch)
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// never read
	_ = store.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			store.Update(RunRecord{ID: "run-1", ProcessedBatches: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Update() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	const numGoroutines = 10
	const numUpdates = 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Update(RunRecord{ID: "run-1", ProcessedBatches: j})
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
				_, _ = store.Get("run-1")
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}

func TestState_Done(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateRunning, false},
		{StateSucceeded, true},
		{StateFailed, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.state.Done(); got != tt.want {
			t.Errorf("%v.Done() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
