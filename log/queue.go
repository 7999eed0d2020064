package log

import "sync"

// eventQueue is a bounded ring buffer with many producers and one consumer.
// When full, push evicts the oldest queued event.
type eventQueue struct {
	access sync.Mutex
	items  []*Event
	head   int
	size   int
	closed bool
	notify chan struct{}
}

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &eventQueue{
		items:  make([]*Event, capacity),
		notify: make(chan struct{}, 1),
	}
}

// push reports whether the event was accepted and whether an older event
// was evicted to make room. A closed queue accepts nothing.
func (q *eventQueue) push(event *Event) (accepted bool, evicted bool) {
	q.access.Lock()
	if q.closed {
		q.access.Unlock()
		return false, false
	}
	if q.size == len(q.items) {
		q.items[q.head] = nil
		q.head = (q.head + 1) % len(q.items)
		q.size--
		evicted = true
	}
	q.items[(q.head+q.size)%len(q.items)] = event
	q.size++
	q.access.Unlock()
	q.wake()
	return true, evicted
}

// pop returns the oldest event, or nil. done is true once the queue is
// closed and empty.
func (q *eventQueue) pop() (event *Event, done bool) {
	q.access.Lock()
	defer q.access.Unlock()
	if q.size == 0 {
		return nil, q.closed
	}
	event = q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return event, false
}

// discard empties the queue and returns how many events it held.
func (q *eventQueue) discard() int {
	q.access.Lock()
	defer q.access.Unlock()
	count := q.size
	for i := range q.items {
		q.items[i] = nil
	}
	q.head = 0
	q.size = 0
	return count
}

func (q *eventQueue) close() {
	q.access.Lock()
	q.closed = true
	q.access.Unlock()
	q.wake()
}

func (q *eventQueue) len() int {
	q.access.Lock()
	defer q.access.Unlock()
	return q.size
}

func (q *eventQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
