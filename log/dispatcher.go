package log

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	C "github.com/tradelog/tradelog/constant"

	E "github.com/sagernet/sing/common/exceptions"
)

// SinkStats counts what happened to events routed to one sink. Once the
// pipeline has shut down, Written+Failed+Dropped == Enqueued-Overflow.
type SinkStats struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Enqueued uint64 `json:"enqueued"`
	Written  uint64 `json:"written"`
	Failed   uint64 `json:"failed"`
	Overflow uint64 `json:"overflow"`
	Dropped  uint64 `json:"dropped"`
	Queued   int    `json:"queued"`
}

type sinkWorker struct {
	name          string
	kind          string
	level         Level
	sink          Sink
	queue         *eventQueue
	diagnostics   *diagnostics
	flushInterval time.Duration
	abandoned     atomic.Bool
	detached      atomic.Bool
	done          chan struct{}
	closeOnce     sync.Once
	closeErr      error

	// inflight is 1 while the writer holds an event, 2 once a detach has
	// counted that event as dropped.
	inflight atomic.Int32

	enqueued atomic.Uint64
	written  atomic.Uint64
	failed   atomic.Uint64
	overflow atomic.Uint64
	dropped  atomic.Uint64
}

func newSinkWorker(name string, kind string, level Level, sink Sink, queueSize int, flushInterval time.Duration, diagnostics *diagnostics) *sinkWorker {
	return &sinkWorker{
		name:          name,
		kind:          kind,
		level:         level,
		sink:          sink,
		queue:         newEventQueue(queueSize),
		diagnostics:   diagnostics,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
}

func (w *sinkWorker) start() {
	go w.loop()
}

func (w *sinkWorker) enqueue(event *Event) {
	if event.level < w.level {
		return
	}
	accepted, evicted := w.queue.push(event)
	if !accepted {
		return
	}
	w.enqueued.Add(1)
	if evicted {
		w.overflow.Add(1)
		w.diagnostics.report(w.name, DiagnosticOverflow, E.New("queue full, dropped oldest event"))
	}
}

func (w *sinkWorker) loop() {
	w.run()
	close(w.done)
	if w.detached.Load() {
		w.closeSink()
	}
}

func (w *sinkWorker) run() {
	flusher, _ := w.sink.(Flusher)
	var tick <-chan time.Time
	if flusher != nil && w.flushInterval > 0 {
		ticker := time.NewTicker(w.flushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		event, done := w.queue.pop()
		if event != nil {
			w.deliver(event)
			if flusher != nil && flusher.FlushNeeded() {
				w.flush(flusher)
			}
			continue
		}
		if done {
			if flusher != nil {
				w.flush(flusher)
			}
			return
		}
		select {
		case <-w.queue.notify:
		case <-tick:
			w.flush(flusher)
		}
	}
}

func (w *sinkWorker) deliver(event *Event) {
	if w.abandoned.Load() {
		w.dropped.Add(1)
		return
	}
	w.inflight.Store(1)
	err := w.write(event)
	if !w.inflight.CompareAndSwap(1, 0) {
		w.inflight.Store(0)
		return
	}
	if err != nil {
		w.failed.Add(1)
		w.diagnostics.report(w.name, DiagnosticTransport, err)
		return
	}
	w.written.Add(1)
}

func (w *sinkWorker) write(event *Event) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = E.New("sink panic: ", fmt.Sprint(recovered))
		}
	}()
	return w.sink.Write(event)
}

// flush moves events lost by a failed batch from Written to Failed, or to
// Dropped when the worker has been abandoned.
func (w *sinkWorker) flush(flusher Flusher) {
	lost, err := func() (lost int, err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = E.New("sink panic: ", fmt.Sprint(recovered))
			}
		}()
		return flusher.Flush()
	}()
	if err == nil {
		return
	}
	if lost > 0 {
		w.written.Add(^uint64(lost - 1))
		if w.abandoned.Load() {
			w.dropped.Add(uint64(lost))
		} else {
			w.failed.Add(uint64(lost))
		}
	}
	w.diagnostics.report(w.name, DiagnosticTransport, err)
}

func (w *sinkWorker) abandon() {
	w.abandoned.Store(true)
	if interrupter, ok := w.sink.(Interrupter); ok {
		interrupter.Interrupt()
	}
}

// detach gives up on a writer stuck in its sink. Queued events and the one
// being written are counted as dropped now; the writer closes the sink
// itself if it ever returns.
func (w *sinkWorker) detach() {
	w.detached.Store(true)
	dropped := uint64(w.queue.discard())
	if w.inflight.CompareAndSwap(1, 2) {
		dropped++
	}
	w.dropped.Add(dropped)
}

func (w *sinkWorker) closeSink() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.sink.Close()
	})
	return w.closeErr
}

func (w *sinkWorker) stats() SinkStats {
	return SinkStats{
		Name:     w.name,
		Kind:     w.kind,
		Enqueued: w.enqueued.Load(),
		Written:  w.written.Load(),
		Failed:   w.failed.Load(),
		Overflow: w.overflow.Load(),
		Dropped:  w.dropped.Load(),
		Queued:   w.queue.len(),
	}
}

// dispatcher fans an event out to every sink worker. It never blocks on a
// sink.
type dispatcher struct {
	workers []*sinkWorker
}

func (d *dispatcher) dispatch(event *Event) {
	for _, worker := range d.workers {
		worker.enqueue(event)
	}
}

func (d *dispatcher) start() {
	for _, worker := range d.workers {
		worker.start()
	}
}

// drain closes every queue and waits for the writers. When grace expires
// first, the workers are abandoned and the remaining events are dropped.
// Writers that still have not returned after C.DetachTimeout are detached,
// so drain never takes much longer than grace.
func (d *dispatcher) drain(grace time.Duration) (abandoned bool) {
	for _, worker := range d.workers {
		worker.queue.close()
	}
	allDone := make(chan struct{})
	go func() {
		for _, worker := range d.workers {
			<-worker.done
		}
		close(allDone)
	}()
	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-allDone:
			return false
		case <-timer.C:
		}
	} else {
		select {
		case <-allDone:
			return false
		default:
		}
	}
	for _, worker := range d.workers {
		worker.abandon()
	}
	timer := time.NewTimer(C.DetachTimeout)
	defer timer.Stop()
	select {
	case <-allDone:
	case <-timer.C:
		for _, worker := range d.workers {
			select {
			case <-worker.done:
			default:
				worker.detach()
			}
		}
	}
	return true
}

func (d *dispatcher) close() error {
	var errors []error
	for _, worker := range d.workers {
		if worker.detached.Load() {
			select {
			case <-worker.done:
			default:
				continue
			}
		}
		if err := worker.closeSink(); err != nil {
			errors = append(errors, E.Cause(err, "close sink ", worker.name))
		}
	}
	return E.Errors(errors...)
}

func (d *dispatcher) stats() []SinkStats {
	stats := make([]SinkStats, len(d.workers))
	for i, worker := range d.workers {
		stats[i] = worker.stats()
	}
	return stats
}
