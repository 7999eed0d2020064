package log

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	C "github.com/tradelog/tradelog/constant"
	"github.com/tradelog/tradelog/option"

	"github.com/sagernet/sing/common/json/badoption"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// blockingSink blocks every write until released or interrupted.
type blockingSink struct {
	release   chan struct{}
	interrupt chan struct{}
	once      sync.Once
	written   []*Event
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{}), interrupt: make(chan struct{})}
}

func (s *blockingSink) Write(event *Event) error {
	select {
	case <-s.release:
		s.written = append(s.written, event)
		return nil
	case <-s.interrupt:
		return errors.New("interrupted")
	}
}

func (s *blockingSink) Interrupt() {
	s.once.Do(func() { close(s.interrupt) })
}

func (s *blockingSink) Close() error {
	return nil
}

// stuckSink blocks in Write until released and cannot be interrupted.
type stuckSink struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

func newStuckSink() *stuckSink {
	return &stuckSink{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *stuckSink) Write(event *Event) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return nil
}

func (s *stuckSink) Close() error {
	s.closed.Store(true)
	return nil
}

type failingSink struct{}

func (failingSink) Write(event *Event) error {
	return errors.New("relay unavailable")
}

func (failingSink) Close() error {
	return nil
}

type panickingSink struct{}

func (panickingSink) Write(event *Event) error {
	panic("sink bug")
}

func (panickingSink) Close() error {
	return nil
}

func newTestPipeline(t *testing.T, logOptions option.LogOptions, sinks map[string]Sink) *Pipeline {
	t.Helper()
	pipeline, err := New(Options{Options: logOptions, Sinks: sinks})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())
	return pipeline
}

func sinkStats(t *testing.T, pipeline *Pipeline, name string) SinkStats {
	t.Helper()
	for _, stats := range pipeline.Stats().Sinks {
		if stats.Name == name {
			return stats
		}
	}
	t.Fatalf("no sink named %s", name)
	return SinkStats{}
}

func assertAccounting(t *testing.T, stats SinkStats) {
	t.Helper()
	assert.Equal(t, stats.Enqueued-stats.Overflow, stats.Written+stats.Dropped+stats.Failed, "%+v", stats)
}

func TestPipelineOrdering(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	memory := NewMemorySink()
	pipeline := newTestPipeline(t, option.LogOptions{QueueSize: 2000}, map[string]Sink{"memory": memory})
	logger := pipeline.Logger()
	for i := 1; i <= 1000; i++ {
		logger.Info("Event {Sequence}", i)
	}
	require.NoError(t, pipeline.Shutdown(5*time.Second))

	events := memory.Events()
	require.Len(t, events, 1000)
	for i, event := range events {
		sequence, ok := event.Property("Sequence")
		require.True(t, ok)
		assert.Equal(t, int64(i+1), sequence.Scalar())
		if i > 0 {
			assert.True(t, event.Timestamp().After(events[i-1].Timestamp()))
		}
	}
	assert.True(t, memory.Closed())
}

func TestPipelineShutdownFlushes(t *testing.T) {
	memory := NewMemorySink()
	pipeline := newTestPipeline(t, option.LogOptions{}, map[string]Sink{"memory": memory})
	for i := 0; i < 50; i++ {
		pipeline.Logger().Info("event {Index}", i)
	}
	require.NoError(t, pipeline.Shutdown(5*time.Second))
	assert.Equal(t, 50, memory.Len())
	stats := sinkStats(t, pipeline, "memory")
	assert.Equal(t, uint64(50), stats.Written)
	assertAccounting(t, stats)
}

func TestPipelineShutdownAbandonsBlockedSink(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	blocked := newBlockingSink()
	var diagnostics []Diagnostic
	var access sync.Mutex
	pipeline, err := New(Options{
		Sinks: map[string]Sink{"blocked": blocked},
		Diagnostics: func(diagnostic Diagnostic) {
			access.Lock()
			diagnostics = append(diagnostics, diagnostic)
			access.Unlock()
		},
	})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())
	for i := 0; i < 10; i++ {
		pipeline.Logger().Info("event {Index}", i)
	}

	started := time.Now()
	require.NoError(t, pipeline.Shutdown(0))
	assert.Less(t, time.Since(started), time.Second)

	stats := sinkStats(t, pipeline, "blocked")
	assert.Equal(t, uint64(10), stats.Enqueued)
	assert.Zero(t, stats.Written)
	assert.Equal(t, 0, stats.Queued)
	assertAccounting(t, stats)

	access.Lock()
	defer access.Unlock()
	var shutdownReported bool
	for _, diagnostic := range diagnostics {
		if diagnostic.Kind == DiagnosticShutdown {
			shutdownReported = true
		}
	}
	assert.True(t, shutdownReported)
}

func TestPipelineShutdownDetachesStuckSink(t *testing.T) {
	stuck := newStuckSink()
	memory := NewMemorySink()
	pipeline := newTestPipeline(t, option.LogOptions{}, map[string]Sink{"stuck": stuck, "memory": memory})
	for i := 0; i < 5; i++ {
		pipeline.Logger().Info("event {Index}", i)
	}
	select {
	case <-stuck.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("writer never reached the sink")
	}

	returned := make(chan error, 1)
	go func() {
		returned <- pipeline.Shutdown(100 * time.Millisecond)
	}()
	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(stuck.release)
		t.Fatal("shutdown hung on a sink without Interrupt")
	}

	stats := sinkStats(t, pipeline, "stuck")
	assert.Equal(t, uint64(5), stats.Enqueued)
	assert.Equal(t, uint64(5), stats.Dropped)
	assert.Zero(t, stats.Written)
	assert.Equal(t, 0, stats.Queued)
	assertAccounting(t, stats)
	assert.Len(t, memory.Events(), 5)
	assert.False(t, stuck.closed.Load())

	close(stuck.release)
	assert.Eventually(t, stuck.closed.Load, 5*time.Second, 10*time.Millisecond)
	stats = sinkStats(t, pipeline, "stuck")
	assert.Zero(t, stats.Written)
	assertAccounting(t, stats)
}

func TestPipelineSinkIsolation(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	listener.Close()

	memory := NewMemorySink()
	pipeline, err := New(Options{
		Options: option.LogOptions{
			Sinks: map[string]option.SinkOptions{
				"relay": {
					Type:           C.SinkTypeTCP,
					Address:        address,
					DialTimeout:    badoption.Duration(100 * time.Millisecond),
					ReconnectDelay: badoption.Duration(time.Minute),
				},
			},
		},
		Sinks: map[string]Sink{"local": memory, "broken": failingSink{}, "buggy": panickingSink{}},
	})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())

	started := time.Now()
	for i := 0; i < 100; i++ {
		pipeline.Logger().Info("event {Index}", i)
	}
	assert.Less(t, time.Since(started), time.Second)
	require.NoError(t, pipeline.Shutdown(5*time.Second))

	assert.Equal(t, 100, memory.Len())
	for _, name := range []string{"relay", "broken", "buggy"} {
		stats := sinkStats(t, pipeline, name)
		assert.Equal(t, uint64(100), stats.Failed, name)
		assertAccounting(t, stats)
	}
	assert.NotZero(t, pipeline.Stats().Diagnostics)
}

func TestPipelineOverflowDropsOldest(t *testing.T) {
	blocked := newBlockingSink()
	pipeline := newTestPipeline(t, option.LogOptions{QueueSize: 4}, map[string]Sink{"blocked": blocked})
	for i := 0; i < 20; i++ {
		pipeline.Logger().Info("event {Index}", i)
	}
	stats := sinkStats(t, pipeline, "blocked")
	assert.Equal(t, uint64(20), stats.Enqueued)
	assert.GreaterOrEqual(t, stats.Overflow, uint64(15))

	close(blocked.release)
	require.NoError(t, pipeline.Shutdown(5*time.Second))
	stats = sinkStats(t, pipeline, "blocked")
	assertAccounting(t, stats)
	last, ok := blocked.written[len(blocked.written)-1].Property("Index")
	require.True(t, ok)
	assert.Equal(t, int64(19), last.Scalar())
}

func TestPipelineLifecycle(t *testing.T) {
	memory := NewMemorySink()
	pipeline, err := New(Options{Sinks: map[string]Sink{"memory": memory}})
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, pipeline.State())

	pipeline.Logger().Info("too early")
	require.NoError(t, pipeline.Start())
	assert.Error(t, pipeline.Start())
	pipeline.Logger().Info("delivered")
	require.NoError(t, pipeline.Close())
	pipeline.Logger().Info("too late")
	require.NoError(t, pipeline.Close())

	assert.Equal(t, StateShutdown, pipeline.State())
	assert.Equal(t, 1, memory.Len())
	stats := pipeline.Stats()
	assert.Equal(t, uint64(1), stats.Emitted)
	assert.Equal(t, uint64(2), stats.Ignored)

	var zero Logger
	zero.Info("nothing happens")
	assert.False(t, zero.Enabled(LevelError))
}

func TestPipelineNilArguments(t *testing.T) {
	memory := NewMemorySink()
	pipeline := newTestPipeline(t, option.LogOptions{}, map[string]Sink{"memory": memory})
	logger := pipeline.Logger()

	// A lone nil is an empty argument list.
	logger.Info("{A} {B}", nil)
	logger.Info("{A} {B}", nil, nil)
	logger.Info("{A}", (map[string]int)(nil), nil)
	require.NoError(t, pipeline.Shutdown(5*time.Second))

	events := memory.Events()
	require.Len(t, events, 3)

	_, bound := events[0].Property("A")
	assert.False(t, bound)
	note, ok := events[0].Property(C.PropertyTemplateError)
	require.True(t, ok)
	assert.Contains(t, note.Scalar(), "expects 2 arguments but 0 were supplied")
	assert.Equal(t, "{A} {B}", events[0].RenderMessage())

	for _, name := range []string{"A", "B"} {
		value, ok := events[1].Property(name)
		require.True(t, ok, name)
		assert.True(t, value.IsNull(), name)
	}
	_, ok = events[1].Property(C.PropertyTemplateError)
	assert.False(t, ok)

	for _, name := range []string{"A", "__1"} {
		value, ok := events[2].Property(name)
		require.True(t, ok, name)
		assert.True(t, value.IsNull(), name)
	}
	note, ok = events[2].Property(C.PropertyTemplateError)
	require.True(t, ok)
	assert.Contains(t, note.Scalar(), "expects 1 arguments but 2 were supplied")
}

func TestPipelineMapKeysRenderingAlike(t *testing.T) {
	memory := NewMemorySink()
	pipeline := newTestPipeline(t, option.LogOptions{}, map[string]Sink{"memory": memory})
	for i := 0; i < 10; i++ {
		pipeline.Logger().Info("{Keys}", map[any]int{1: 1, "1": 2, int8(1): 3, uint(1): 4})
	}
	require.NoError(t, pipeline.Shutdown(5*time.Second))

	events := memory.Events()
	require.Len(t, events, 10)
	for _, event := range events {
		value, ok := event.Property("Keys")
		require.True(t, ok)
		fields := value.Fields()
		require.Len(t, fields, 4)
		names := make(map[string]bool)
		for _, field := range fields {
			names[field.Name] = true
		}
		assert.Len(t, names, 4)
		assert.Equal(t, "{ 1: 1, 1_2: 3, 1_3: 2, 1_4: 4 }", event.RenderMessage())
	}
}

func TestPipelineLevels(t *testing.T) {
	var buffer bytes.Buffer
	memory := NewMemorySink()
	pipeline, err := New(Options{
		Options: option.LogOptions{
			Level: "info",
			Sinks: map[string]option.SinkOptions{
				"console": {Type: C.SinkTypeStdout, Level: "warning", DisableColor: true},
			},
		},
		Sinks:         map[string]Sink{"memory": memory},
		DefaultWriter: &buffer,
	})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())
	logger := pipeline.Logger()
	logger.Debug("filtered everywhere")
	logger.Info("only in memory")
	logger.Warn("Low liquidity on {Symbol}", "AAPL")
	require.NoError(t, pipeline.Close())

	assert.Equal(t, 2, memory.Len())
	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "WRN] Low liquidity on AAPL")
}

func TestPipelineBoundProperties(t *testing.T) {
	memory := NewMemorySink()
	pipeline, err := New(Options{
		Sinks:     map[string]Sink{"memory": memory},
		Enrichers: []Enricher{PropertyEnricher("Level", StringValue("Y")), PropertyEnricher("Region", StringValue("eu"))},
	})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())

	base := pipeline.Logger().With("Level", "X").With("Account", "a-1")
	derived := base.With("Account", "a-2")
	base.Info("from base")
	derived.Info("from derived {Account}", "argument")
	pipeline.Logger().Info("{A} {B}", 1)
	require.NoError(t, pipeline.Close())

	events := memory.Events()
	require.Len(t, events, 3)
	level, _ := events[0].Property("Level")
	assert.Equal(t, "X", level.Scalar())
	account, _ := events[0].Property("Account")
	assert.Equal(t, "a-1", account.Scalar())
	region, _ := events[0].Property("Region")
	assert.Equal(t, "eu", region.Scalar())

	// Arguments win over bound attributes when flattened.
	account, _ = events[1].Property("Account")
	assert.Equal(t, "argument", account.Scalar())
	assert.Len(t, events[1].Attributes(), 3)

	_, hasError := events[2].Property(C.PropertyTemplateError)
	assert.True(t, hasError)
	assert.Equal(t, "1 {B}", events[2].RenderMessage())
}

func TestPipelineConfigErrors(t *testing.T) {
	testCases := []option.LogOptions{
		{Level: "loud"},
		{Enrichers: []string{"weather"}},
		{Enrichers: []string{C.EnricherSimulationTime}},
		{QueueSize: -1},
		{Destructure: []option.DestructureRule{{Type: "adapter.Order"}}},
		{Sinks: map[string]option.SinkOptions{"x": {Type: "carrier-pigeon"}}},
		{Sinks: map[string]option.SinkOptions{"x": {}}},
		{Sinks: map[string]option.SinkOptions{"x": {Type: C.SinkTypeFile}}},
		{Sinks: map[string]option.SinkOptions{"x": {Type: C.SinkTypeTCP, Address: "not an address"}}},
		{Sinks: map[string]option.SinkOptions{"x": {Type: C.SinkTypeHTTP, URL: "ftp://seq"}}},
		{Sinks: map[string]option.SinkOptions{"x": {Type: C.SinkTypeStdout, Format: "xml"}}},
		{Sinks: map[string]option.SinkOptions{"x": {Type: C.SinkTypeStdout, Level: "chatty"}}},
	}
	for i, logOptions := range testCases {
		_, err := New(Options{Options: logOptions})
		assert.Error(t, err, "case %d", i)
	}

	_, err := New(Options{
		Options: option.LogOptions{Sinks: map[string]option.SinkOptions{"x": {Type: C.SinkTypeMemory}}},
		Sinks:   map[string]Sink{"x": NewMemorySink()},
	})
	assert.Error(t, err)
}

func TestPipelineDisabled(t *testing.T) {
	pipeline, err := New(Options{Options: option.LogOptions{
		Disabled: true,
		Sinks:    map[string]option.SinkOptions{"x": {Type: C.SinkTypeMemory}},
	}})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())
	pipeline.Logger().Info("discarded")
	require.NoError(t, pipeline.Close())
	assert.Empty(t, pipeline.Stats().Sinks)
}

func TestPipelineTimestampsIncrease(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	memory := NewMemorySink()
	pipeline, err := New(Options{
		Sinks: map[string]Sink{"memory": memory},
		Now:   func() time.Time { return fixed },
	})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())

	var group sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		group.Add(1)
		go func() {
			defer group.Done()
			for i := 0; i < 100; i++ {
				pipeline.Logger().Info("tick")
			}
		}()
	}
	group.Wait()
	require.NoError(t, pipeline.Close())

	seen := make(map[int64]bool)
	for _, event := range memory.Events() {
		nanos := event.Timestamp().UnixNano()
		assert.False(t, seen[nanos])
		seen[nanos] = true
	}
	assert.Len(t, seen, 400)
}

func TestPipelineObservableDiagnostics(t *testing.T) {
	pipeline, err := New(Options{
		Sinks:      map[string]Sink{"broken": failingSink{}},
		Observable: true,
	})
	require.NoError(t, err)
	subscription, done, err := pipeline.Subscribe()
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())
	pipeline.Logger().Error("lost")

	select {
	case diagnostic := <-subscription:
		assert.Equal(t, "broken", diagnostic.Sink)
		assert.Equal(t, DiagnosticTransport, diagnostic.Kind)
	case <-done:
		t.Fatal("observer closed early")
	case <-time.After(5 * time.Second):
		t.Fatal("no diagnostic delivered")
	}
	pipeline.UnSubscribe(subscription)
	require.NoError(t, pipeline.Close())
}

func TestPipelineSubscribeRequiresObservable(t *testing.T) {
	pipeline := newTestPipeline(t, option.LogOptions{}, nil)
	_, _, err := pipeline.Subscribe()
	require.ErrorIs(t, err, ErrNotObservable)
	require.NoError(t, pipeline.Close())
}

func TestPipelineSlowDiagnosticsHandler(t *testing.T) {
	release := make(chan struct{})
	var handled atomic.Int32
	failing := NewEnricherFunc("failing", func(properties *Properties, snapshot Snapshot) error {
		return errors.New("lookup failed")
	})
	memory := NewMemorySink()
	pipeline, err := New(Options{
		Enrichers: []Enricher{failing},
		Sinks:     map[string]Sink{"memory": memory},
		Diagnostics: func(diagnostic Diagnostic) {
			<-release
			handled.Add(1)
		},
	})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())

	emitted := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			pipeline.Logger().Info("event {Index}", i)
		}
		close(emitted)
	}()
	select {
	case <-emitted:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("emit blocked on the diagnostics handler")
	}
	close(release)
	require.NoError(t, pipeline.Shutdown(5*time.Second))
	assert.Equal(t, int32(20), handled.Load())
	assert.Equal(t, 20, memory.Len())
}

func TestPipelineDiagnosticsHandlerCallsShutdown(t *testing.T) {
	var pipeline *Pipeline
	var once sync.Once
	shutdown := make(chan error, 1)
	pipeline, err := New(Options{
		Sinks: map[string]Sink{"failing": failingSink{}},
		Diagnostics: func(diagnostic Diagnostic) {
			once.Do(func() {
				shutdown <- pipeline.Shutdown(time.Second)
			})
		},
	})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())
	pipeline.Logger().Info("first")

	select {
	case err := <-shutdown:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown from the diagnostics handler deadlocked")
	}
	assert.Equal(t, StateShutdown, pipeline.State())
	stats := sinkStats(t, pipeline, "failing")
	assert.Equal(t, uint64(1), stats.Failed)
	assertAccounting(t, stats)
}
