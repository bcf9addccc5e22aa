package refresh

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolcontext/cache"
)

// DefaultMaxDepth is the default cap on queued refresh tasks.
const DefaultMaxDepth = 256

// Task is one pending background refresh.
type Task struct {
	// ID identifies the task in logs.
	ID string

	// Key is the cache entry to refresh.
	Key cache.Key

	// Priority orders the queue; lower is more urgent.
	Priority int

	// EnqueuedAt breaks priority ties in arrival order.
	EnqueuedAt time.Time

	seq uint64
}

// Queue is a deduplicating priority queue of refresh tasks, ordered by
// (priority, enqueued-at). A key stays marked pending from Enqueue until
// Done, so concurrent stale hits for the same key produce at most one
// task even while a worker is already fetching it.
//
// Contract:
// - Concurrency: safe for concurrent use; Dequeue may be called from
//   multiple workers.
// - Idempotence: Enqueue for a pending key is a no-op and leaves the
//   queue depth unchanged.
type Queue struct {
	mu      sync.Mutex
	tasks   taskHeap
	pending map[cache.Key]bool
	clock   cache.Clock
	max     int
	seq     uint64
	notify  chan struct{}
}

// NewQueue creates a refresh queue. maxDepth <= 0 selects DefaultMaxDepth.
func NewQueue(clock cache.Clock, maxDepth int) *Queue {
	if clock == nil {
		clock = cache.SystemClock()
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Queue{
		pending: make(map[cache.Key]bool),
		clock:   clock,
		max:     maxDepth,
		notify:  make(chan struct{}, 1),
	}
}

// Enqueue adds a refresh task for key at the given priority. It returns
// false without queueing when a task for key is already pending or the
// queue is at capacity.
func (q *Queue) Enqueue(key cache.Key, priority int) bool {
	if key.Validate() != nil {
		return false
	}

	q.mu.Lock()
	if q.pending[key] || len(q.tasks) >= q.max {
		q.mu.Unlock()
		return false
	}

	q.seq++
	task := Task{
		ID:         uuid.NewString(),
		Key:        key,
		Priority:   priority,
		EnqueuedAt: q.clock.Now(),
		seq:        q.seq,
	}
	q.pending[key] = true
	heap.Push(&q.tasks, task)
	q.mu.Unlock()

	q.signal()
	return true
}

// Dequeue removes and returns the highest-priority task, blocking until
// one is available or ctx is done. The task's key remains pending until
// Done is called for it.
func (q *Queue) Dequeue(ctx context.Context) (Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := heap.Pop(&q.tasks).(Task)
			remaining := len(q.tasks)
			q.mu.Unlock()
			if remaining > 0 {
				// Wake another waiter for the rest of the backlog.
				q.signal()
			}
			return task, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Task{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// Done clears the pending marker for key, allowing it to be enqueued
// again. Called by workers after a task completes or is dropped.
func (q *Queue) Done(key cache.Key) {
	q.mu.Lock()
	delete(q.pending, key)
	q.mu.Unlock()
}

// Len returns the number of queued tasks (not counting any task a
// worker has dequeued but not finished).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Pending reports whether a task for key is queued or being processed.
func (q *Queue) Pending(key cache.Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending[key]
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// taskHeap orders tasks by (priority, enqueued-at, arrival sequence).
type taskHeap []Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	if !h[i].EnqueuedAt.Equal(h[j].EnqueuedAt) {
		return h[i].EnqueuedAt.Before(h[j].EnqueuedAt)
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	*h = old[:n-1]
	return task
}
