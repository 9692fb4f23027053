// Package queue holds metric points (and anything else shaped like a
// backlog) while their sink is unavailable. The telemetry manager buffers
// into one of these until the InfluxDB connection comes up, then drains it.
package queue

import "sync"

// Queue is a thread-safe FIFO. A zero limit means unbounded; otherwise the
// oldest entries are discarded to make room, since for a metrics backlog the
// newest points are the ones worth keeping.
type Queue[T any] struct {
	mu      sync.Mutex
	limit   int
	items   []T
	dropped uint64
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Bounded creates a queue that never holds more than limit entries.
func Bounded[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Push appends entries, evicting from the front if the limit is exceeded.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if q.limit > 0 && len(q.items) > q.limit {
		over := len(q.items) - q.limit
		q.dropped += uint64(over)
		q.items = append(q.items[:0], q.items[over:]...)
	}
}

// Pop removes and returns the oldest entry. The second return is false when
// the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len reports the number of buffered entries.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain returns every buffered entry in arrival order and empties the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Dropped reports how many entries the limit has evicted over the queue's
// lifetime.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
