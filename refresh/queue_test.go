package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/toolcontext/cache"
)

// stepClock returns a fixed time, advanced manually.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestQueue_EnqueueDedup(t *testing.T) {
	q := NewQueue(newStepClock(), 0)
	key := cache.Key{Library: "react", Topic: "hooks"}

	if !q.Enqueue(key, 1) {
		t.Fatal("first Enqueue should be accepted")
	}
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}

	// Enqueue for a pending key is a no-op and leaves depth unchanged.
	if q.Enqueue(key, 1) {
		t.Error("Enqueue for pending key should return false")
	}
	if q.Enqueue(key, 5) {
		t.Error("Enqueue for pending key should return false regardless of priority")
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d after duplicate enqueues, want 1", q.Len())
	}
}

func TestQueue_PendingSpansProcessing(t *testing.T) {
	q := NewQueue(newStepClock(), 0)
	key := cache.Key{Library: "react"}

	q.Enqueue(key, 1)
	task, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	// The key stays pending while the task is being processed.
	if q.Enqueue(key, 1) {
		t.Error("Enqueue during processing should be a no-op")
	}
	if !q.Pending(key) {
		t.Error("key should be pending until Done")
	}

	q.Done(task.Key)
	if !q.Enqueue(key, 1) {
		t.Error("Enqueue after Done should be accepted")
	}
}

func TestQueue_OrderedByPriorityThenArrival(t *testing.T) {
	clock := newStepClock()
	q := NewQueue(clock, 0)

	q.Enqueue(cache.Key{Library: "low"}, 5)
	clock.Advance(time.Second)
	q.Enqueue(cache.Key{Library: "first-high"}, 1)
	clock.Advance(time.Second)
	q.Enqueue(cache.Key{Library: "second-high"}, 1)
	clock.Advance(time.Second)
	q.Enqueue(cache.Key{Library: "mid"}, 3)

	ctx := context.Background()
	want := []string{"first-high", "second-high", "mid", "low"}
	for i, lib := range want {
		task, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue %d failed: %v", i, err)
		}
		if task.Key.Library != lib {
			t.Errorf("Dequeue %d returned %q, want %q", i, task.Key.Library, lib)
		}
		q.Done(task.Key)
	}
}

func TestQueue_TieBreakByArrivalAtSameInstant(t *testing.T) {
	// Same clock reading for both tasks: arrival sequence decides.
	q := NewQueue(newStepClock(), 0)
	q.Enqueue(cache.Key{Library: "a"}, 2)
	q.Enqueue(cache.Key{Library: "b"}, 2)

	task, _ := q.Dequeue(context.Background())
	if task.Key.Library != "a" {
		t.Errorf("first dequeue = %q, want %q", task.Key.Library, "a")
	}
}

func TestQueue_DepthCap(t *testing.T) {
	q := NewQueue(newStepClock(), 2)

	if !q.Enqueue(cache.Key{Library: "a"}, 1) || !q.Enqueue(cache.Key{Library: "b"}, 1) {
		t.Fatal("enqueues under cap should be accepted")
	}
	if q.Enqueue(cache.Key{Library: "c"}, 1) {
		t.Error("Enqueue at cap should be declined")
	}
	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2", q.Len())
	}
}

func TestQueue_RejectsInvalidKey(t *testing.T) {
	q := NewQueue(newStepClock(), 0)
	if q.Enqueue(cache.Key{}, 1) {
		t.Error("Enqueue with invalid key should be declined")
	}
}

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue(newStepClock(), 0)

	got := make(chan Task, 1)
	go func() {
		task, err := q.Dequeue(context.Background())
		if err == nil {
			got <- task
		}
	}()

	// Give the consumer a moment to block.
	time.Sleep(20 * time.Millisecond)
	q.Enqueue(cache.Key{Library: "late"}, 1)

	select {
	case task := <-got:
		if task.Key.Library != "late" {
			t.Errorf("Dequeue returned %q, want %q", task.Key.Library, "late")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue did not wake after Enqueue")
	}
}

func TestQueue_DequeueHonorsContext(t *testing.T) {
	q := NewQueue(newStepClock(), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Error("Dequeue on empty queue should return ctx error")
	}
}

func TestQueue_ConcurrentEnqueueSameKey(t *testing.T) {
	q := NewQueue(newStepClock(), 0)
	key := cache.Key{Library: "react", Topic: "hooks"}

	const goroutines = 32
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			q.Enqueue(key, 1)
		}()
	}
	wg.Wait()

	if q.Len() != 1 {
		t.Errorf("concurrent enqueues produced %d tasks, want exactly 1", q.Len())
	}
}
