package log

import (
	"sync"
	"sync/atomic"
	"time"

	C "github.com/tradelog/tradelog/constant"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/observable"
)

var ErrNotObservable = E.New("diagnostics are not observable")

type DiagnosticKind uint8

const (
	DiagnosticDestructure DiagnosticKind = iota
	DiagnosticEnrichment
	DiagnosticOverflow
	DiagnosticTransport
	DiagnosticShutdown
	DiagnosticInternal
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticDestructure:
		return "destructure"
	case DiagnosticEnrichment:
		return "enrichment"
	case DiagnosticOverflow:
		return "overflow"
	case DiagnosticTransport:
		return "transport"
	case DiagnosticShutdown:
		return "shutdown"
	default:
		return "internal"
	}
}

// Diagnostic describes a contained logging failure. Diagnostics never reach
// the caller of Emit.
type Diagnostic struct {
	Time time.Time
	Sink string
	Kind DiagnosticKind
	Err  error
}

// diagnostics fans reports out to the handler and the observable stream.
// The handler runs on its own goroutine, in report order; reports that
// arrive while C.DiagnosticBuffer of them are pending are not delivered to
// it.
type diagnostics struct {
	access      sync.RWMutex
	closed      bool
	handler     func(Diagnostic)
	handlerFeed *observable.Subscriber[Diagnostic]
	handlerDone chan struct{}
	subscriber  *observable.Subscriber[Diagnostic]
	observer    *observable.Observer[Diagnostic]
	count       atomic.Uint64
}

func newDiagnostics(handler func(Diagnostic), needObservable bool) *diagnostics {
	d := &diagnostics{handler: handler}
	if handler != nil {
		d.handlerFeed = observable.NewSubscriber[Diagnostic](C.DiagnosticBuffer)
	}
	if needObservable {
		d.subscriber = observable.NewSubscriber[Diagnostic](128)
		d.observer = observable.NewObserver[Diagnostic](d.subscriber, 64)
	}
	return d
}

// start runs the handler goroutine. Reports made before start are buffered.
func (d *diagnostics) start() {
	d.access.Lock()
	defer d.access.Unlock()
	if d.handlerFeed == nil || d.handlerDone != nil || d.closed {
		return
	}
	d.handlerDone = make(chan struct{})
	go d.loopHandler()
}

func (d *diagnostics) loopHandler() {
	defer close(d.handlerDone)
	feed, done := d.handlerFeed.Subscription()
	for {
		select {
		case diagnostic := <-feed:
			d.handle(diagnostic)
		case <-done:
			for {
				select {
				case diagnostic := <-feed:
					d.handle(diagnostic)
				default:
					return
				}
			}
		}
	}
}

func (d *diagnostics) handle(diagnostic Diagnostic) {
	defer func() { recover() }()
	d.handler(diagnostic)
}

func (d *diagnostics) report(sink string, kind DiagnosticKind, err error) {
	d.count.Add(1)
	diagnostic := Diagnostic{Time: time.Now(), Sink: sink, Kind: kind, Err: err}
	d.access.RLock()
	defer d.access.RUnlock()
	if d.closed {
		return
	}
	if d.handlerFeed != nil {
		d.handlerFeed.Emit(diagnostic)
	}
	if d.subscriber != nil {
		d.subscriber.Emit(diagnostic)
	}
}

func (d *diagnostics) subscribe() (subscription observable.Subscription[Diagnostic], done <-chan struct{}, err error) {
	if d.observer == nil {
		return nil, nil, ErrNotObservable
	}
	return d.observer.Subscribe()
}

func (d *diagnostics) unsubscribe(subscription observable.Subscription[Diagnostic]) {
	if d.observer != nil {
		d.observer.UnSubscribe(subscription)
	}
}

// close stops both streams and waits up to C.DetachTimeout for the handler
// to catch up, so a handler that calls Shutdown itself cannot deadlock it.
func (d *diagnostics) close() error {
	d.access.Lock()
	if d.closed {
		d.access.Unlock()
		return nil
	}
	d.closed = true
	if d.handlerFeed != nil {
		d.handlerFeed.Close()
	}
	var err error
	if d.subscriber != nil {
		err = d.subscriber.Close()
	}
	handlerDone := d.handlerDone
	d.access.Unlock()
	if handlerDone != nil {
		timer := time.NewTimer(C.DetachTimeout)
		defer timer.Stop()
		select {
		case <-handlerDone:
		case <-timer.C:
		}
	}
	return err
}
