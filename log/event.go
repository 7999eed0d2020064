package log

import (
	"time"

	"github.com/sagernet/sing/common/format"
)

// Event is a finished log record. It is never modified after the pipeline
// builds it and may be read by several sinks at once.
type Event struct {
	timestamp  time.Time
	level      Level
	template   *Template
	arguments  []Property
	attributes []Property
}

// NewEvent builds an event directly. The slices are copied.
func NewEvent(timestamp time.Time, level Level, template *Template, arguments []Property, attributes []Property) *Event {
	if template == nil {
		template = ParseTemplate("")
	}
	return &Event{
		timestamp:  timestamp,
		level:      level,
		template:   template,
		arguments:  append([]Property(nil), arguments...),
		attributes: append([]Property(nil), attributes...),
	}
}

func (e *Event) Timestamp() time.Time {
	return e.timestamp
}

func (e *Event) Level() Level {
	return e.level
}

func (e *Event) Template() *Template {
	return e.template
}

// Arguments returns the values bound to template holes, in binding order.
func (e *Event) Arguments() []Property {
	return append([]Property(nil), e.arguments...)
}

// Attributes returns handle-bound and enricher-contributed properties.
func (e *Event) Attributes() []Property {
	return append([]Property(nil), e.attributes...)
}

// Property looks a name up in the arguments first, then the attributes.
func (e *Event) Property(name string) (Value, bool) {
	for _, property := range e.arguments {
		if property.Name == name {
			return property.Value, true
		}
	}
	for _, property := range e.attributes {
		if property.Name == name {
			return property.Value, true
		}
	}
	return Value{}, false
}

// Properties flattens arguments and attributes. Arguments win on a name
// collision.
func (e *Event) Properties() []Property {
	properties := make([]Property, 0, len(e.arguments)+len(e.attributes))
	seen := make(map[string]bool, len(e.arguments))
	for _, property := range e.arguments {
		seen[property.Name] = true
		properties = append(properties, property)
	}
	for _, property := range e.attributes {
		if seen[property.Name] {
			continue
		}
		properties = append(properties, property)
	}
	return properties
}

func (e *Event) RenderMessage() string {
	return e.template.Render(func(name string) (Value, bool) {
		for _, property := range e.arguments {
			if property.Name == name {
				return property.Value, true
			}
		}
		return Value{}, false
	})
}

// bindArguments pairs template holes with arguments. The returned note is
// empty when the counts match.
func bindArguments(registry *Registry, template *Template, args []any, report func(error)) (properties []Property, note string) {
	names := template.names
	if template.positional {
		properties = make([]Property, 0, len(args))
		bound := make(map[int]bool)
		for _, name := range names {
			index := 0
			for _, c := range name {
				index = index*10 + int(c-'0')
			}
			if index < 0 || index >= len(args) {
				continue
			}
			bound[index] = true
			properties = append(properties, Property{name, captureArgument(registry, args[index], template.hint(name), report)})
		}
		for i, arg := range args {
			if !bound[i] {
				properties = append(properties, Property{format.ToString("__", i), captureArgument(registry, arg, CaptureDefault, report)})
			}
		}
		if len(bound) != len(names) || len(bound) != len(args) {
			note = format.ToString("template expects ", len(names), " positional arguments but ", len(args), " were supplied")
		}
		return
	}
	properties = make([]Property, 0, len(args))
	for i, arg := range args {
		if i < len(names) {
			properties = append(properties, Property{names[i], captureArgument(registry, arg, template.hint(names[i]), report)})
		} else {
			properties = append(properties, Property{format.ToString("__", i), captureArgument(registry, arg, CaptureDefault, report)})
		}
	}
	if len(names) != len(args) {
		note = format.ToString("template expects ", len(names), " arguments but ", len(args), " were supplied")
	}
	return
}

func captureArgument(registry *Registry, arg any, mode CaptureMode, report func(error)) Value {
	value, err := registry.capture(arg, mode)
	if err != nil && report != nil {
		report(err)
	}
	return value
}
