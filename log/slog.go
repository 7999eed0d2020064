package log

import (
	"context"
	"log/slog"
)

var _ slog.Handler = (*SlogHandler)(nil)

// SlogHandler routes log/slog records into the pipeline. The record message
// is logged verbatim and its attributes become bound properties.
type SlogHandler struct {
	logger Logger
	prefix string
}

func NewSlogHandler(logger Logger) *SlogHandler {
	return &SlogHandler{logger: logger}
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.Enabled(levelFromSlog(level))
}

func (h *SlogHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.logger.pipeline == nil {
		return nil
	}
	logger := h.logger
	record.Attrs(func(attr slog.Attr) bool {
		logger = h.bind(logger, h.prefix, attr)
		return true
	})
	logger.EmitContext(ctx, levelFromSlog(record.Level), EscapeTemplate(record.Message))
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	logger := h.logger
	for _, attr := range attrs {
		logger = h.bind(logger, h.prefix, attr)
	}
	return &SlogHandler{logger: logger, prefix: h.prefix}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, prefix: h.prefix + name + "."}
}

func (h *SlogHandler) bind(logger Logger, prefix string, attr slog.Attr) Logger {
	if logger.pipeline == nil || attr.Equal(slog.Attr{}) {
		return logger
	}
	if attr.Key == "" && attr.Value.Kind() == slog.KindGroup {
		for _, member := range attr.Value.Group() {
			logger = h.bind(logger, prefix, member)
		}
		return logger
	}
	value, err := logger.pipeline.registry.capture(attr.Value, CaptureDefault)
	if err != nil {
		logger.pipeline.diagnostics.report("", DiagnosticDestructure, err)
	}
	return logger.withProperty(Property{Name: prefix + attr.Key, Value: value})
}

func levelFromSlog(level slog.Level) Level {
	switch {
	case level < slog.LevelInfo:
		return LevelDebug
	case level < slog.LevelWarn:
		return LevelInfo
	case level < slog.LevelError:
		return LevelWarning
	default:
		return LevelError
	}
}
