package log

import (
	"sort"

	C "github.com/tradelog/tradelog/constant"

	"go.uber.org/zap/zapcore"
)

var _ zapcore.Core = (*ZapCore)(nil)

// ZapCore lets a zap.Logger write into the pipeline. Fields become bound
// properties and the zap logger name becomes the source context.
type ZapCore struct {
	logger Logger
}

func NewZapCore(logger Logger) *ZapCore {
	return &ZapCore{logger: logger}
}

func (c *ZapCore) Enabled(level zapcore.Level) bool {
	return c.logger.Enabled(levelFromZap(level))
}

func (c *ZapCore) With(fields []zapcore.Field) zapcore.Core {
	return &ZapCore{logger: c.bind(c.logger, fields)}
}

func (c *ZapCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *ZapCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	logger := c.bind(c.logger, fields)
	if entry.LoggerName != "" {
		logger = logger.With(C.PropertySourceContext, entry.LoggerName)
	}
	logger.Emit(levelFromZap(entry.Level), EscapeTemplate(entry.Message))
	return nil
}

func (c *ZapCore) Sync() error {
	return nil
}

func (c *ZapCore) bind(logger Logger, fields []zapcore.Field) Logger {
	if logger.pipeline == nil || len(fields) == 0 {
		return logger
	}
	encoder := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(encoder)
	}
	keys := make([]string, 0, len(encoder.Fields))
	for key := range encoder.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		logger = logger.With(key, encoder.Fields[key])
	}
	return logger
}

func levelFromZap(level zapcore.Level) Level {
	switch {
	case level <= zapcore.DebugLevel:
		return LevelDebug
	case level == zapcore.InfoLevel:
		return LevelInfo
	case level == zapcore.WarnLevel:
		return LevelWarning
	default:
		return LevelError
	}
}
