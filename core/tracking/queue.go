package tracking

import (
	"sync"

	"github.com/kilianp07/volunteer/core/model"
)

// Queue buffers completion events between the monitor and the resolver.
type Queue struct {
	mu     sync.Mutex
	events []model.CompletionEvent
}

// Push appends events in order.
func (q *Queue) Push(evs ...model.CompletionEvent) {
	q.mu.Lock()
	q.events = append(q.events, evs...)
	q.mu.Unlock()
}

// Drain appends every queued event to dst and empties the queue.
func (q *Queue) Drain(dst []model.CompletionEvent) []model.CompletionEvent {
	q.mu.Lock()
	dst = append(dst, q.events...)
	q.events = q.events[:0]
	q.mu.Unlock()
	return dst
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
