package log

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	C "github.com/tradelog/tradelog/constant"

	E "github.com/sagernet/sing/common/exceptions"

	"github.com/klauspost/compress/gzip"
)

var (
	_ Sink        = (*HTTPSink)(nil)
	_ Flusher     = (*HTTPSink)(nil)
	_ Interrupter = (*HTTPSink)(nil)
)

const seqIngestionPath = "/api/events/raw"

type HTTPSinkOptions struct {
	URL           string
	APIKey        string
	BatchSize     int
	FlushInterval time.Duration
	Timeout       time.Duration
	Gzip          bool
	// Client defaults to a client with Timeout.
	Client *http.Client
}

// HTTPSink posts batches of newline-delimited CLEF documents to a Seq
// ingestion endpoint.
type HTTPSink struct {
	ctx      context.Context
	cancel   context.CancelFunc
	endpoint string
	options  HTTPSinkOptions
	client   *http.Client
	batch    bytes.Buffer
	pending  int
}

func NewHTTPSink(ctx context.Context, options HTTPSinkOptions) (*HTTPSink, error) {
	if options.URL == "" {
		return nil, E.New("http sink requires url")
	}
	endpoint, err := seqEndpoint(options.URL)
	if err != nil {
		return nil, err
	}
	if options.BatchSize < 0 {
		return nil, E.New("invalid batch_size: ", options.BatchSize)
	} else if options.BatchSize == 0 {
		options.BatchSize = C.DefaultBatchSize
	}
	if options.FlushInterval == 0 {
		options.FlushInterval = C.DefaultFlushInterval
	}
	if options.Timeout == 0 {
		options.Timeout = C.DefaultHTTPTimeout
	}
	client := options.Client
	if client == nil {
		client = &http.Client{Timeout: options.Timeout}
	}
	ctx, cancel := context.WithCancel(ctx)
	return &HTTPSink{
		ctx:      ctx,
		cancel:   cancel,
		endpoint: endpoint,
		options:  options,
		client:   client,
	}, nil
}

func seqEndpoint(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", E.Cause(err, "parse url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", E.New("invalid url scheme: ", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", E.New("invalid url: missing host")
	}
	if !strings.HasSuffix(parsed.Path, seqIngestionPath) {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/") + seqIngestionPath
	}
	query := parsed.Query()
	query.Set("clef", "")
	parsed.RawQuery = strings.TrimSuffix(query.Encode(), "=")
	return parsed.String(), nil
}

func (s *HTTPSink) FlushInterval() time.Duration {
	return s.options.FlushInterval
}

func (s *HTTPSink) Endpoint() string {
	return s.endpoint
}

// Write appends the event to the current batch.
func (s *HTTPSink) Write(event *Event) error {
	if s.pending > 0 {
		s.batch.WriteByte('\n')
	}
	appendCLEF(&s.batch, event)
	s.pending++
	return nil
}

func (s *HTTPSink) FlushNeeded() bool {
	return s.pending >= s.options.BatchSize
}

func (s *HTTPSink) Flush() (lost int, err error) {
	if s.pending == 0 {
		return 0, nil
	}
	lost = s.pending
	defer func() {
		s.batch.Reset()
		s.pending = 0
	}()
	err = s.sendBatch(s.batch.Bytes())
	if err != nil {
		return lost, err
	}
	return 0, nil
}

func (s *HTTPSink) sendBatch(batch []byte) error {
	var body bytes.Buffer
	if s.options.Gzip {
		writer := gzip.NewWriter(&body)
		_, err := writer.Write(batch)
		if err != nil {
			return E.Cause(err, "compress batch")
		}
		err = writer.Close()
		if err != nil {
			return E.Cause(err, "compress batch")
		}
	} else {
		body.Write(batch)
	}
	request, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return E.Cause(err, "create request")
	}
	request.Header.Set("Content-Type", "application/vnd.serilog.clef")
	if s.options.Gzip {
		request.Header.Set("Content-Encoding", "gzip")
	}
	if s.options.APIKey != "" {
		request.Header.Set("X-Seq-ApiKey", s.options.APIKey)
	}
	response, err := s.client.Do(request)
	if err != nil {
		return E.Cause(err, "post batch to ", s.endpoint)
	}
	defer response.Body.Close()
	if response.StatusCode >= 300 {
		message, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return E.New("post batch to ", s.endpoint, ": ", response.Status, ": ", strings.TrimSpace(string(message)))
	}
	io.Copy(io.Discard, response.Body)
	return nil
}

// Interrupt aborts a pending request.
func (s *HTTPSink) Interrupt() {
	s.cancel()
}

func (s *HTTPSink) Close() error {
	s.cancel()
	return nil
}
