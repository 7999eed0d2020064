package log

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	C "github.com/tradelog/tradelog/constant"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/observable"
)

type State int32

const (
	StateUninitialized State = iota
	StateActive
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stats is a point-in-time view of the pipeline counters.
type Stats struct {
	State       State       `json:"state"`
	Emitted     uint64      `json:"emitted"`
	Ignored     uint64      `json:"ignored"`
	Diagnostics uint64      `json:"diagnostics"`
	Sinks       []SinkStats `json:"sinks"`
}

// Pipeline owns the registry, the enricher chain and the sink writers. It is
// safe for concurrent use; Emit never blocks on a sink.
type Pipeline struct {
	ctx         context.Context
	level       Level
	registry    *Registry
	enrichers   EnricherChain
	dispatcher  dispatcher
	diagnostics *diagnostics
	grace       time.Duration
	now         func() time.Time

	lifecycle sync.Mutex
	state     atomic.Int32
	lastStamp atomic.Int64
	emitted   atomic.Uint64
	ignored   atomic.Uint64
}

func (p *Pipeline) Start() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if state := State(p.state.Load()); state != StateUninitialized {
		return E.New("pipeline is ", state)
	}
	for i, worker := range p.dispatcher.workers {
		starter, isStarter := worker.sink.(Starter)
		if !isStarter {
			continue
		}
		err := starter.Start()
		if err != nil {
			for _, started := range p.dispatcher.workers[:i] {
				started.sink.Close()
			}
			p.state.Store(int32(StateShutdown))
			p.diagnostics.close()
			return E.Cause(err, "start sink ", worker.name)
		}
	}
	p.diagnostics.start()
	p.dispatcher.start()
	p.state.Store(int32(StateActive))
	return nil
}

// Shutdown stops accepting events and waits up to grace for every sink to
// drain. Events still queued when grace expires are dropped and counted.
func (p *Pipeline) Shutdown(grace time.Duration) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	switch State(p.state.Load()) {
	case StateShutdown:
		return nil
	case StateUninitialized:
		p.state.Store(int32(StateShutdown))
		return E.Errors(p.dispatcher.close(), p.diagnostics.close())
	}
	p.state.Store(int32(StateShutdown))
	if p.dispatcher.drain(grace) {
		var dropped uint64
		for _, worker := range p.dispatcher.workers {
			dropped += worker.dropped.Load()
		}
		p.diagnostics.report("", DiagnosticShutdown, E.New("shutdown grace of ", grace, " expired, dropped ", dropped, " events"))
	}
	err := p.dispatcher.close()
	return E.Errors(err, p.diagnostics.close())
}

// Close shuts down with the configured grace period.
func (p *Pipeline) Close() error {
	return p.Shutdown(p.grace)
}

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) Level() Level {
	return p.level
}

func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Sink returns the named sink, or nil.
func (p *Pipeline) Sink(name string) Sink {
	for _, worker := range p.dispatcher.workers {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		State:       p.State(),
		Emitted:     p.emitted.Load(),
		Ignored:     p.ignored.Load(),
		Diagnostics: p.diagnostics.count.Load(),
		Sinks:       p.dispatcher.stats(),
	}
}

// Logger returns a handle with no bound properties.
func (p *Pipeline) Logger() Logger {
	return Logger{pipeline: p}
}

// NewLogger returns a handle bound to a source context.
func (p *Pipeline) NewLogger(source string) Logger {
	return p.Logger().With(C.PropertySourceContext, source)
}

func (p *Pipeline) Subscribe() (subscription observable.Subscription[Diagnostic], done <-chan struct{}, err error) {
	return p.diagnostics.subscribe()
}

func (p *Pipeline) UnSubscribe(subscription observable.Subscription[Diagnostic]) {
	p.diagnostics.unsubscribe(subscription)
}

// stamp returns the event timestamp, forced strictly increasing.
func (p *Pipeline) stamp() time.Time {
	now := p.now().UnixNano()
	for {
		last := p.lastStamp.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if p.lastStamp.CompareAndSwap(last, next) {
			return time.Unix(0, next)
		}
	}
}

func (p *Pipeline) emit(ctx context.Context, bound []Property, level Level, text string, args []any) {
	if State(p.state.Load()) != StateActive {
		p.ignored.Add(1)
		return
	}
	if level < p.level {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			p.diagnostics.report("", DiagnosticInternal, E.New("emit panic: ", fmt.Sprint(recovered)))
		}
	}()
	if ctx == nil {
		ctx = p.ctx
	}
	event := p.build(ctx, bound, level, text, args)
	p.emitted.Add(1)
	p.dispatcher.dispatch(event)
}

func (p *Pipeline) build(ctx context.Context, bound []Property, level Level, text string, args []any) *Event {
	template := ParseTemplate(text)
	timestamp := p.stamp()
	arguments, note := bindArguments(p.registry, template, args, func(err error) {
		p.diagnostics.report("", DiagnosticDestructure, err)
	})
	properties := newProperties(p.registry, len(bound)+p.enrichers.Len()+1)
	for _, property := range bound {
		properties.AddIfAbsent(property.Name, property.Value)
	}
	if note != "" {
		properties.AddIfAbsent(C.PropertyTemplateError, StringValue(note))
	}
	snapshot := Snapshot{
		Context:   ctx,
		Timestamp: timestamp,
		Level:     level,
		Template:  template,
	}
	for _, err := range p.enrichers.Enrich(properties, snapshot) {
		p.diagnostics.report("", DiagnosticEnrichment, err)
	}
	return &Event{
		timestamp:  timestamp,
		level:      level,
		template:   template,
		arguments:  arguments,
		attributes: properties.snapshot(),
	}
}
