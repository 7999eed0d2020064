package log

import (
	"io"
	"strings"

	"github.com/sagernet/sing/common"

	"github.com/logrusorgru/aurora"
)

var _ Sink = (*TextSink)(nil)

// Formatter renders events as single human-readable lines.
type Formatter struct {
	DisableColors    bool
	DisableTimestamp bool
	TimestampFormat  string
	// ShowAttributes appends properties that the message does not mention.
	ShowAttributes bool
}

func (f Formatter) Format(event *Event) string {
	var builder strings.Builder
	builder.WriteByte('[')
	if !f.DisableTimestamp {
		format := f.TimestampFormat
		if format == "" {
			format = "15:04:05"
		}
		builder.WriteString(event.timestamp.Format(format))
		builder.WriteByte(' ')
	}
	builder.WriteString(f.level(event.level))
	builder.WriteString("] ")
	builder.WriteString(event.RenderMessage())
	if f.ShowAttributes {
		f.appendAttributes(&builder, event)
	}
	builder.WriteByte('\n')
	return builder.String()
}

func (f Formatter) level(level Level) string {
	levelString := ShortLevel(level)
	if f.DisableColors {
		return levelString
	}
	switch level {
	case LevelDebug:
		return aurora.White(levelString).String()
	case LevelInfo:
		return aurora.Cyan(levelString).String()
	case LevelWarning:
		return aurora.Yellow(levelString).String()
	default:
		return aurora.Red(levelString).String()
	}
}

func (f Formatter) appendAttributes(builder *strings.Builder, event *Event) {
	mentioned := make(map[string]bool)
	for _, name := range event.template.names {
		mentioned[name] = true
	}
	first := true
	for _, property := range event.Properties() {
		if mentioned[property.Name] {
			continue
		}
		if first {
			builder.WriteString(" {")
			first = false
		} else {
			builder.WriteString(", ")
		}
		builder.WriteString(property.Name)
		builder.WriteString(": ")
		property.Value.appendText(builder, true, "")
	}
	if !first {
		builder.WriteByte('}')
	}
}

// TextSink writes formatted lines to a writer or a rotating file.
type TextSink struct {
	formatter Formatter
	writer    io.Writer
	file      *RotatingFile
}

func NewTextSink(formatter Formatter, writer io.Writer, file *RotatingFile) *TextSink {
	return &TextSink{
		formatter: formatter,
		writer:    writer,
		file:      file,
	}
}

// Start opens the file if this is a file sink
func (s *TextSink) Start() error {
	if s.file != nil && s.writer == nil {
		err := s.file.Open()
		if err != nil {
			return err
		}
		s.writer = s.file
	}
	return nil
}

func (s *TextSink) Write(event *Event) error {
	if s.writer == nil {
		return nil
	}
	_, err := io.WriteString(s.writer, s.formatter.Format(event))
	return err
}

func (s *TextSink) Close() error {
	return common.Close(common.PtrOrNil(s.file))
}
