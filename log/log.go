package log

import (
	"context"
	"io"
	"os"
	"sort"
	"time"

	"github.com/tradelog/tradelog/adapter"
	"github.com/tradelog/tradelog/common/dialer"
	C "github.com/tradelog/tradelog/constant"
	"github.com/tradelog/tradelog/option"

	E "github.com/sagernet/sing/common/exceptions"
)

type Options struct {
	Context context.Context
	Options option.LogOptions
	// Clock backs the simulation_time enricher.
	Clock adapter.Clock
	// Registry defaults to a fresh registry.
	Registry *Registry
	// Enrichers run after the configured ones.
	Enrichers []Enricher
	// Sinks are added next to the configured ones, as local sinks accepting
	// every level.
	Sinks map[string]Sink
	// DefaultWriter replaces the process stdout and stderr for console sinks.
	DefaultWriter io.Writer
	// Diagnostics receives contained failures in report order on a
	// goroutine of its own, so it may block or call Shutdown. Once
	// C.DiagnosticBuffer reports are pending, further ones skip it.
	Diagnostics func(Diagnostic)
	Observable  bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// New validates the configuration and builds an inactive pipeline. Every
// configuration error is reported here, before any event can be emitted.
func New(options Options) (*Pipeline, error) {
	logOptions := options.Options
	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}
	registry := options.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	if logOptions.MaxDepth < 0 {
		return nil, E.New("invalid max_depth: ", logOptions.MaxDepth)
	} else if logOptions.MaxDepth > 0 {
		registry.SetMaxDepth(logOptions.MaxDepth)
	}
	for i, rule := range logOptions.Destructure {
		if rule.Type == "" {
			return nil, E.New("destructure rule ", i, ": missing type")
		}
		if len(rule.Fields) == 0 {
			return nil, E.New("destructure rule ", i, ": missing fields for ", rule.Type)
		}
		registry.RegisterProjection(rule.Type, rule.Fields)
	}
	for _, typeName := range logOptions.ScalarTypes {
		if typeName == "" {
			return nil, E.New("empty scalar type name")
		}
		registry.RegisterScalarName(typeName)
	}

	level := LevelDebug
	if logOptions.Level != "" {
		var err error
		level, err = ParseLevel(logOptions.Level)
		if err != nil {
			return nil, E.Cause(err, "parse log level")
		}
	}
	queueSize := logOptions.QueueSize
	if queueSize < 0 {
		return nil, E.New("invalid queue_size: ", queueSize)
	} else if queueSize == 0 {
		queueSize = C.DefaultQueueSize
	}
	grace := time.Duration(logOptions.ShutdownGrace)
	if grace < 0 {
		return nil, E.New("invalid shutdown_grace: ", grace)
	} else if grace == 0 {
		grace = C.DefaultShutdownGrace
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}

	pipeline := &Pipeline{
		ctx:         ctx,
		level:       level,
		registry:    registry,
		diagnostics: newDiagnostics(options.Diagnostics, options.Observable),
		grace:       grace,
		now:         now,
	}
	for _, name := range logOptions.Enrichers {
		enricher, err := NewEnricher(name, options.Clock)
		if err != nil {
			return nil, err
		}
		pipeline.enrichers.Add(enricher)
	}
	for _, enricher := range options.Enrichers {
		pipeline.enrichers.Add(enricher)
	}

	names := make(map[string]bool)
	if !logOptions.Disabled {
		for _, name := range sortedKeys(logOptions.Sinks) {
			worker, err := createSink(ctx, name, logOptions.Sinks[name], options, queueSize, pipeline.diagnostics)
			if err != nil {
				return nil, E.Cause(err, "create sink ", name)
			}
			names[name] = true
			pipeline.dispatcher.workers = append(pipeline.dispatcher.workers, worker)
		}
	}
	for _, name := range sortedKeys(options.Sinks) {
		if names[name] {
			return nil, E.New("duplicate sink name: ", name)
		}
		sink := options.Sinks[name]
		if sink == nil {
			return nil, E.New("sink ", name, " is nil")
		}
		pipeline.dispatcher.workers = append(pipeline.dispatcher.workers,
			newSinkWorker(name, C.SinkKindLocal, LevelDebug, sink, queueSize, C.DefaultFlushInterval, pipeline.diagnostics))
	}
	return pipeline, nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// createSink creates a sink worker from its configuration
func createSink(ctx context.Context, name string, config option.SinkOptions, options Options, queueSize int, diagnostics *diagnostics) (*sinkWorker, error) {
	level := LevelDebug
	if config.Level != "" {
		var err error
		level, err = ParseLevel(config.Level)
		if err != nil {
			return nil, E.Cause(err, "parse sink level")
		}
	}
	if config.QueueSize < 0 {
		return nil, E.New("invalid queue_size: ", config.QueueSize)
	} else if config.QueueSize > 0 {
		queueSize = config.QueueSize
	}
	switch config.Format {
	case "", C.FormatText, C.FormatJSON:
	default:
		return nil, E.New("unknown format: ", config.Format)
	}

	var (
		sink          Sink
		flushInterval time.Duration
		err           error
	)
	// Network sinks outlive the caller's context so Shutdown can still flush
	// after a signal. Only Interrupt aborts them.
	sinkCtx := context.WithoutCancel(ctx)
	switch config.Type {
	case C.SinkTypeStdout:
		sink = createStdSink(config, writerOrDefault(options.DefaultWriter, os.Stdout))
	case C.SinkTypeStderr:
		sink = createStdSink(config, writerOrDefault(options.DefaultWriter, os.Stderr))
	case C.SinkTypeFile:
		sink, err = createFileSink(config)
	case C.SinkTypeTCP:
		sink, err = NewTCPSink(sinkCtx, TCPSinkOptions{
			Address:        config.Address,
			DialTimeout:    time.Duration(config.DialTimeout),
			WriteTimeout:   time.Duration(config.WriteTimeout),
			ReconnectDelay: time.Duration(config.ReconnectDelay),
			Dialer: dialer.New(dialer.Options{
				KeepAlive:         time.Duration(config.TCPKeepAlive),
				KeepAliveInterval: time.Duration(config.TCPKeepAliveInterval),
				DisableKeepAlive:  config.DisableTCPKeepAlive,
			}),
		})
	case C.SinkTypeHTTP:
		var httpSink *HTTPSink
		httpSink, err = NewHTTPSink(sinkCtx, HTTPSinkOptions{
			URL:           config.URL,
			APIKey:        config.APIKey,
			BatchSize:     config.BatchSize,
			FlushInterval: time.Duration(config.FlushInterval),
			Timeout:       time.Duration(config.Timeout),
			Gzip:          config.Gzip,
		})
		if err == nil {
			sink = httpSink
			flushInterval = httpSink.FlushInterval()
		}
	case C.SinkTypeMemory:
		sink = NewMemorySink()
	case "":
		return nil, E.New("missing sink type")
	default:
		return nil, E.New("unknown sink type: ", config.Type)
	}
	if err != nil {
		return nil, err
	}
	return newSinkWorker(name, C.SinkKind(config.Type), level, sink, queueSize, flushInterval, diagnostics), nil
}

func writerOrDefault(writer io.Writer, fallback io.Writer) io.Writer {
	if writer != nil {
		return writer
	}
	return fallback
}

func createStdSink(config option.SinkOptions, writer io.Writer) Sink {
	if config.Format == C.FormatJSON {
		return NewJSONSink(writer, nil)
	}
	formatter := Formatter{
		DisableColors:   config.DisableColor,
		TimestampFormat: "2006-01-02 15:04:05.000",
	}
	return NewTextSink(formatter, writer, nil)
}

func createFileSink(config option.SinkOptions) (Sink, error) {
	if config.Path == "" {
		return nil, E.New("file sink requires path")
	}
	if config.MaxSize < 0 || config.MaxBackups < 0 || config.MaxAge < 0 {
		return nil, E.New("file sink rotation limits must not be negative")
	}
	file := &RotatingFile{
		Path:       config.Path,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	if config.Format == C.FormatJSON {
		return NewJSONSink(nil, file), nil
	}
	formatter := Formatter{
		DisableColors:   true,
		TimestampFormat: "-0700 2006-01-02 15:04:05.000",
		ShowAttributes:  true,
	}
	return NewTextSink(formatter, nil, file), nil
}
