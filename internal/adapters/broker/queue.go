package broker

import (
	"context"
	"sync"

	"matchpulse/internal/domain/model"
	"matchpulse/pkg/metrics"
)

const defaultQueueCapacity = 4096

// eventQueue is the bounded buffer between Publish and the dispatcher.
// Enqueue never blocks; a full queue drops the event.
type eventQueue struct {
	events   chan model.Event
	capacity int
	mu       sync.RWMutex
	closed   bool
}

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &eventQueue{
		events:   make(chan model.Event, capacity),
		capacity: capacity,
	}
}

// enqueue adds an event to the queue. Returns false when the queue is
// closed or full.
func (q *eventQueue) enqueue(ctx context.Context, e model.Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("broker", "queue_closed")
		return false
	}

	select {
	case q.events <- e:
		metrics.UpdateBroadcastQueueSize(len(q.events))
		return true
	case <-ctx.Done():
		metrics.RecordErrorByComponent("broker", "context_cancelled")
		return false
	default:
		metrics.RecordBroadcastDropped()
		metrics.RecordErrorByComponent("broker", "queue_full")
		return false
	}
}

// dequeue exposes the consuming side; closed when the queue closes.
func (q *eventQueue) dequeue() <-chan model.Event {
	return q.events
}

func (q *eventQueue) len() int {
	return len(q.events)
}

// close stops the queue. Pending events are still drained by the
// dispatcher before its channel range ends.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.events)
	q.closed = true
}
