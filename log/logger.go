package log

import (
	"context"
)

// Logger is a cheap value handle onto a Pipeline. Bound properties are
// immutable; With returns a new handle and leaves the receiver untouched.
// The zero Logger discards everything.
type Logger struct {
	pipeline *Pipeline
	bound    []Property
}

// With binds a property captured in default mode. A key already bound on
// the receiver is replaced in the new handle.
func (l Logger) With(key string, value any) Logger {
	return l.WithValue(key, value, false)
}

// WithValue binds a property, destructuring the value when asked. The value
// is captured now, so later changes to the object are not observed.
func (l Logger) WithValue(key string, value any, destructure bool) Logger {
	if l.pipeline == nil {
		return l
	}
	mode := CaptureDefault
	if destructure {
		mode = CaptureDestructure
	}
	captured, err := l.pipeline.registry.capture(value, mode)
	if err != nil {
		l.pipeline.diagnostics.report("", DiagnosticDestructure, err)
	}
	return l.withProperty(Property{Name: key, Value: captured})
}

// WithProperties binds already captured properties.
func (l Logger) WithProperties(properties ...Property) Logger {
	for _, property := range properties {
		l = l.withProperty(property)
	}
	return l
}

func (l Logger) withProperty(property Property) Logger {
	bound := make([]Property, 0, len(l.bound)+1)
	for _, existing := range l.bound {
		if existing.Name != property.Name {
			bound = append(bound, existing)
		}
	}
	bound = append(bound, property)
	return Logger{pipeline: l.pipeline, bound: bound}
}

// Bound returns a copy of the bound properties.
func (l Logger) Bound() []Property {
	return append([]Property(nil), l.bound...)
}

// Enabled reports whether an event at level would be built.
func (l Logger) Enabled(level Level) bool {
	return l.pipeline != nil && level >= l.pipeline.level && l.pipeline.State() == StateActive
}

// Emit builds and dispatches an event. It never fails and never blocks on a
// sink.
func (l Logger) Emit(level Level, template string, args ...any) {
	if l.pipeline == nil {
		return
	}
	l.pipeline.emit(l.pipeline.ctx, l.bound, level, template, args)
}

func (l Logger) EmitContext(ctx context.Context, level Level, template string, args ...any) {
	if l.pipeline == nil {
		return
	}
	l.pipeline.emit(ctx, l.bound, level, template, args)
}

func (l Logger) Debug(template string, args ...any) {
	l.Emit(LevelDebug, template, args...)
}

func (l Logger) Info(template string, args ...any) {
	l.Emit(LevelInfo, template, args...)
}

func (l Logger) Warn(template string, args ...any) {
	l.Emit(LevelWarning, template, args...)
}

func (l Logger) Error(template string, args ...any) {
	l.Emit(LevelError, template, args...)
}

func (l Logger) DebugContext(ctx context.Context, template string, args ...any) {
	l.EmitContext(ctx, LevelDebug, template, args...)
}

func (l Logger) InfoContext(ctx context.Context, template string, args ...any) {
	l.EmitContext(ctx, LevelInfo, template, args...)
}

func (l Logger) WarnContext(ctx context.Context, template string, args ...any) {
	l.EmitContext(ctx, LevelWarning, template, args...)
}

func (l Logger) ErrorContext(ctx context.Context, template string, args ...any) {
	l.EmitContext(ctx, LevelError, template, args...)
}
