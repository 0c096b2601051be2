package batch

import (
	"sync"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
)

// Queue is an ordered buffer of pending events shared by every capture call
// on a client. It has no capacity limit: a client that never reaches its
// batch size and is never flushed grows the queue without bound.
type Queue struct {
	events []event.Event
	mu     sync.Mutex
}

// maxInitialCapacity bounds the up-front allocation for very large batch sizes
const maxInitialCapacity = 1024

// NewQueue creates an empty queue with room for capacity events before the
// first reallocation
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	if capacity > maxInitialCapacity {
		capacity = maxInitialCapacity
	}
	return &Queue{
		events: make([]event.Event, 0, capacity),
	}
}

// Push appends e and returns the queue length after the append. The length
// is read under the same lock as the append, so callers can make the batch
// decision without a second acquisition.
func (q *Queue) Push(e event.Event) int {
	q.mu.Lock()
	q.events = append(q.events, e)
	n := len(q.events)
	q.mu.Unlock()

	return n
}

// DrainAll empties the queue and returns everything it held, oldest first.
// The backing slice is swapped rather than copied so the lock is held only
// for the swap. Returns nil when the queue is empty.
func (q *Queue) DrainAll() []event.Event {
	q.mu.Lock()
	if len(q.events) == 0 {
		q.mu.Unlock()
		return nil
	}

	drained := q.events
	q.events = make([]event.Event, 0, min(cap(drained), maxInitialCapacity))
	q.mu.Unlock()

	return drained
}

// Len returns the number of queued events
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
