package eventloop

import "sync"

// queue is a bounded FIFO of events backed by a ring buffer.
// Pushing to a full queue overwrites the oldest event.
type queue struct {
	mut    sync.Mutex
	ring   []any
	first  int // index of the oldest event
	count  int
	notify chan struct{}
}

func newQueue(capacity uint) queue {
	return queue{
		ring:   make([]any, capacity),
		notify: make(chan struct{}),
	}
}

// push appends an event and reports whether the oldest event was overwritten.
func (q *queue) push(event any) (dropped bool) {
	q.mut.Lock()
	defer q.mut.Unlock()

	size := len(q.ring)
	if size == 0 {
		panic("cannot push to a queue with capacity 0")
	}
	if q.count == size {
		q.ring[q.first] = event
		q.first = (q.first + 1) % size
		dropped = true
	} else {
		q.ring[(q.first+q.count)%size] = event
		q.count++
	}

	// wake a waiting Run, if any
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

func (q *queue) pop() (event any, ok bool) {
	q.mut.Lock()
	defer q.mut.Unlock()

	if q.count == 0 {
		return nil, false
	}
	event = q.ring[q.first]
	q.ring[q.first] = nil
	q.first = (q.first + 1) % len(q.ring)
	q.count--
	return event, true
}

func (q *queue) len() int {
	q.mut.Lock()
	defer q.mut.Unlock()
	return q.count
}

func (q *queue) ready() <-chan struct{} {
	return q.notify
}
