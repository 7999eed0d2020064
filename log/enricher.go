package log

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tradelog/tradelog/adapter"
	C "github.com/tradelog/tradelog/constant"

	E "github.com/sagernet/sing/common/exceptions"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/uuid/v5"
)

// Snapshot is the read-only view of the event being built that enrichers
// receive.
type Snapshot struct {
	Context   context.Context
	Timestamp time.Time
	Level     Level
	Template  *Template
}

// Enricher contributes attributes to every event. Enrichers run in
// registration order and can only add names that are still absent.
type Enricher interface {
	Name() string
	Enrich(properties *Properties, snapshot Snapshot) error
}

type EnricherFunc struct {
	name   string
	enrich func(properties *Properties, snapshot Snapshot) error
}

func NewEnricherFunc(name string, enrich func(properties *Properties, snapshot Snapshot) error) *EnricherFunc {
	return &EnricherFunc{name, enrich}
}

func (f *EnricherFunc) Name() string {
	return f.name
}

func (f *EnricherFunc) Enrich(properties *Properties, snapshot Snapshot) error {
	return f.enrich(properties, snapshot)
}

// EnricherChain runs enrichers in order. A failing enricher never stops the
// event: its error is collected into the EnrichmentError attribute.
type EnricherChain struct {
	enrichers []Enricher
}

func (c *EnricherChain) Add(enricher Enricher) {
	c.enrichers = append(c.enrichers, enricher)
}

func (c *EnricherChain) Len() int {
	return len(c.enrichers)
}

func (c *EnricherChain) Enrich(properties *Properties, snapshot Snapshot) []error {
	var errors []error
	for _, enricher := range c.enrichers {
		if err := runEnricher(enricher, properties, snapshot); err != nil {
			errors = append(errors, E.Cause(err, "enricher ", enricher.Name()))
		}
	}
	if len(errors) > 0 {
		messages := make([]string, len(errors))
		for i, err := range errors {
			messages[i] = err.Error()
		}
		properties.AddIfAbsent(C.PropertyEnrichmentError, StringValue(strings.Join(messages, "; ")))
	}
	return errors
}

func runEnricher(enricher Enricher, properties *Properties, snapshot Snapshot) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = E.New("panic: ", fmt.Sprint(recovered))
		}
	}()
	return enricher.Enrich(properties, snapshot)
}

// PropertyEnricher adds a fixed property to every event.
func PropertyEnricher(name string, value Value) Enricher {
	return NewEnricherFunc("property:"+name, func(properties *Properties, snapshot Snapshot) error {
		properties.AddIfAbsent(name, value)
		return nil
	})
}

// SimulationTimeEnricher reads the host clock at emission time.
func SimulationTimeEnricher(clock adapter.Clock) Enricher {
	return NewEnricherFunc(C.EnricherSimulationTime, func(properties *Properties, snapshot Snapshot) error {
		properties.AddIfAbsent(C.PropertySimulationTime, TimeValue(clock.CurrentTime()))
		return nil
	})
}

// RunIDEnricher tags every event with an identifier generated once per run.
func RunIDEnricher() (Enricher, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, E.Cause(err, "generate run id")
	}
	return NewEnricherFunc(C.EnricherRunID, func(properties *Properties, snapshot Snapshot) error {
		properties.AddIfAbsent(C.PropertyRunID, StringValue(id.String()))
		return nil
	}), nil
}

func HostnameEnricher() Enricher {
	hostname, err := os.Hostname()
	return NewEnricherFunc(C.EnricherHostname, func(properties *Properties, snapshot Snapshot) error {
		if err != nil {
			return err
		}
		properties.AddIfAbsent(C.PropertyMachineName, StringValue(hostname))
		return nil
	})
}

func ProcessEnricher() Enricher {
	pid := Int64Value(int64(os.Getpid()))
	return NewEnricherFunc(C.EnricherProcess, func(properties *Properties, snapshot Snapshot) error {
		properties.AddIfAbsent(C.PropertyProcessID, pid)
		return nil
	})
}

// EventTypeEnricher derives a stable event type from the template text, so
// that all events written from the same call site group together.
func EventTypeEnricher() Enricher {
	return NewEnricherFunc(C.EnricherEventType, func(properties *Properties, snapshot Snapshot) error {
		if snapshot.Template == nil {
			return nil
		}
		hash := xxhash.Sum64String(snapshot.Template.Text())
		properties.AddIfAbsent(C.PropertyEventType, StringValue(fmt.Sprintf("$%08X", uint32(hash))))
		return nil
	})
}

// NewEnricher resolves a configured enricher name.
func NewEnricher(name string, clock adapter.Clock) (Enricher, error) {
	switch name {
	case C.EnricherSimulationTime:
		if clock == nil {
			return nil, E.New("enricher ", name, " requires a clock")
		}
		return SimulationTimeEnricher(clock), nil
	case C.EnricherRunID:
		return RunIDEnricher()
	case C.EnricherHostname:
		return HostnameEnricher(), nil
	case C.EnricherProcess:
		return ProcessEnricher(), nil
	case C.EnricherEventType:
		return EventTypeEnricher(), nil
	default:
		return nil, E.New("unknown enricher: ", name)
	}
}
