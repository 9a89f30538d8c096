// Package queue implements the priority-ordered, pausable work queue
// that feeds the ingestion pipeline. A path in flight is deduplicated
// regardless of how many times it is re-added, until the consumer
// calls MarkComplete.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/katanaquant/ragengine/internal/domain"
)

// entry is one slot in the priority heap. seq breaks priority ties in
// FIFO order, matching the distilled spec's "ties broken by insertion
// order" rule.
type entry struct {
	item domain.QueueItem
	seq  uint64
}

type priorityHeap []entry

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority < h[j].item.Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue is the IndexingQueue: a priority heap plus an in-flight
// dedup set, safe for concurrent producers and a single consumer
// loop (or several, each calling Get independently).
type Queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	heap      priorityHeap
	inFlight  map[string]struct{}
	paused    bool
	closed    bool
	nextSeq   uint64
}

// New returns an empty, running queue.
func New() *Queue {
	q := &Queue{
		inFlight: make(map[string]struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add enqueues path at the given priority. If path is already in
// flight (queued or currently being processed), the call is a silent
// no-op regardless of force — force only affects what the pipeline
// does once the item is dequeued, never queue admission.
func (q *Queue) Add(path string, priority domain.Priority, force bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if _, ok := q.inFlight[path]; ok {
		return
	}
	q.inFlight[path] = struct{}{}
	heap.Push(&q.heap, entry{
		item: domain.QueueItem{Path: path, Priority: priority, Force: force},
		seq:  q.nextSeq,
	})
	q.nextSeq++
	q.cond.Signal()
}

// AddMany is a convenience bulk Add.
func (q *Queue) AddMany(paths []string, priority domain.Priority, force bool) {
	for _, p := range paths {
		q.Add(p, priority, force)
	}
}

// Get returns the highest-priority item, blocking up to timeout for
// one to become available. Returns ok=false if paused, empty, closed,
// the timeout elapses, or ctx is cancelled first. The item remains in
// the in-flight set until MarkComplete is called.
func (q *Queue) Get(ctx context.Context, timeout time.Duration) (domain.QueueItem, bool) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return domain.QueueItem{}, false
		}
		if !q.paused && q.heap.Len() > 0 {
			e := heap.Pop(&q.heap).(entry)
			return e.item, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return domain.QueueItem{}, false
		}
		if ctx.Err() != nil {
			return domain.QueueItem{}, false
		}

		waitDone := make(chan struct{})
		timer := time.AfterFunc(remaining, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-waitDone:
			}
		}()
		q.cond.Wait()
		close(waitDone)
		timer.Stop()
	}
}

// MarkComplete removes path from the in-flight set. Must be called
// exactly once per dequeue, whether the item succeeded, failed, or
// was abandoned, so a later Add for the same path is not silently
// swallowed.
func (q *Queue) MarkComplete(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, path)
}

// Pause stops Get from returning items until Resume is called.
// Items already in flight are unaffected.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume re-enables Get.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.cond.Broadcast()
	q.mu.Unlock()
}

// IsPaused reports the current pause state.
func (q *Queue) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Size returns the number of items waiting in the heap (not counting
// items already dequeued but not yet marked complete).
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// InFlight returns the number of paths currently tracked as in
// flight, including both queued and dequeued-but-not-completed items.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// SizeByPriority returns the number of items waiting in the heap,
// broken down by priority level, for gauge reporting.
func (q *Queue) SizeByPriority() map[domain.Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	sizes := make(map[domain.Priority]int)
	for _, e := range q.heap {
		sizes[e.item.Priority]++
	}
	return sizes
}

// Clear drops both the heap and the in-flight set.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap = nil
	q.inFlight = make(map[string]struct{})
}

// Close marks the queue closed; Get returns ok=false from then on and
// producers calling Add become no-ops. Safe to call multiple times.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}
