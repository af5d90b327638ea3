// Package dispatch decouples packet handling from socket writes. Handlers push
// Events onto a Queue and a single Dispatcher performs every write to clients.
package dispatch

import "sync"

// Event asks the dispatcher to write Payload to the client identified by Target.
type Event struct {
	Target  uint64
	Payload []byte
}

// Queue is a concurrency-safe FIFO of pending events.
type Queue struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends e to the queue and wakes the dispatcher.
func (q *Queue) Push(e Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Write is shorthand for pushing a write of payload to target.
func (q *Queue) Write(target uint64, payload []byte) {
	q.Push(Event{Target: target, Payload: payload})
}

// Drain removes and returns every queued event in the order they were pushed.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.events
	q.events = nil
	return events
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Ready receives a value after one or more Pushes since the last receive.
func (q *Queue) Ready() <-chan struct{} {
	return q.notify
}
