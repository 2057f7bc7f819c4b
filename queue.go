package statekit

import (
	"fmt"
	"sync"
)

// feedbackQueue is the thread-safe FIFO that carries events produced outside
// the synchronous dispatch region (effect completions, subscription
// deliveries, bridge outputs) back into the Dispatcher. Bounded; a full queue
// is backpressure, reported to the producer.
type feedbackQueue struct {
	mu       sync.Mutex
	items    []Event
	capacity int
	seq      uint64 // total pushes, for debug logging
}

func newFeedbackQueue(capacity int) *feedbackQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &feedbackQueue{
		items:    make([]Event, 0, capacity),
		capacity: capacity,
	}
}

func (q *feedbackQueue) push(evt Event) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return 0, fmt.Errorf("%w (capacity %d)", ErrQueueFull, q.capacity)
	}
	q.items = append(q.items, evt)
	q.seq++
	return q.seq, nil
}

func (q *feedbackQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	evt := q.items[0]
	q.items = q.items[1:]
	return evt, true
}

func (q *feedbackQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
