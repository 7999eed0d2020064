package log

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/sagernet/sing/common"
)

var _ Sink = (*JSONSink)(nil)

// JSONSink writes one compact CLEF document per line.
type JSONSink struct {
	writer io.Writer
	file   *RotatingFile
	buffer bytes.Buffer
}

func NewJSONSink(writer io.Writer, file *RotatingFile) *JSONSink {
	return &JSONSink{
		writer: writer,
		file:   file,
	}
}

// Start opens the file if this is a file sink
func (s *JSONSink) Start() error {
	if s.file != nil && s.writer == nil {
		err := s.file.Open()
		if err != nil {
			return err
		}
		s.writer = s.file
	}
	return nil
}

func (s *JSONSink) Write(event *Event) error {
	if s.writer == nil {
		return nil
	}
	s.buffer.Reset()
	appendCLEF(&s.buffer, event)
	s.buffer.WriteByte('\n')
	_, err := s.writer.Write(s.buffer.Bytes())
	return err
}

func (s *JSONSink) Close() error {
	return common.Close(common.PtrOrNil(s.file))
}

// EncodeCLEF encodes an event as a compact log event format document:
// @t, @l, @mt and @m first, then arguments, then attributes.
func EncodeCLEF(event *Event) []byte {
	var buffer bytes.Buffer
	appendCLEF(&buffer, event)
	return buffer.Bytes()
}

func appendCLEF(buffer *bytes.Buffer, event *Event) {
	buffer.WriteString(`{"@t":`)
	appendJSONString(buffer, event.timestamp.UTC().Format(time.RFC3339Nano))
	buffer.WriteString(`,"@l":`)
	appendJSONString(buffer, FormatLevel(event.level))
	buffer.WriteString(`,"@mt":`)
	appendJSONString(buffer, event.template.Text())
	buffer.WriteString(`,"@m":`)
	appendJSONString(buffer, event.RenderMessage())
	for _, property := range event.Properties() {
		buffer.WriteByte(',')
		name := property.Name
		if strings.HasPrefix(name, "@") {
			name = "@" + name
		}
		appendJSONString(buffer, name)
		buffer.WriteByte(':')
		property.Value.appendJSON(buffer)
	}
	buffer.WriteByte('}')
}
