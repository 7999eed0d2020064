package log

import (
	"sync"
)

// Sink is an output destination. Write and Close are only ever called from
// the sink's own writer goroutine, so implementations need no locking of
// their transport.
type Sink interface {
	Write(event *Event) error
	Close() error
}

// Starter is implemented by sinks that open resources before the pipeline
// becomes active. A Start error is a configuration error.
type Starter interface {
	Start() error
}

// Flusher is implemented by batching sinks. Flush is called when the batch
// is full, on idle ticks and once more at shutdown; it returns how many
// buffered events were lost when it fails.
type Flusher interface {
	Flush() (lost int, err error)
	FlushNeeded() bool
}

// Interrupter is implemented by sinks whose writes can block. Interrupt is
// called from another goroutine when the shutdown grace period expires and
// must make a pending Write return promptly.
type Interrupter interface {
	Interrupt()
}

var _ Sink = (*MemorySink)(nil)

// MemorySink records events in memory. It is the local collector used when
// the host wants to inspect events in-process.
type MemorySink struct {
	access sync.Mutex
	events []*Event
	closed bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(event *Event) error {
	s.access.Lock()
	defer s.access.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Close() error {
	s.access.Lock()
	defer s.access.Unlock()
	s.closed = true
	return nil
}

// Events returns a copy of the recorded events in arrival order.
func (s *MemorySink) Events() []*Event {
	s.access.Lock()
	defer s.access.Unlock()
	return append([]*Event(nil), s.events...)
}

func (s *MemorySink) Len() int {
	s.access.Lock()
	defer s.access.Unlock()
	return len(s.events)
}

func (s *MemorySink) Closed() bool {
	s.access.Lock()
	defer s.access.Unlock()
	return s.closed
}
