package log

import (
	"errors"
	"log/slog"
	"testing"

	C "github.com/tradelog/tradelog/constant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSlogHandler(t *testing.T) {
	memory := NewMemorySink()
	pipeline, err := New(Options{Sinks: map[string]Sink{"memory": memory}})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())

	logger := slog.New(NewSlogHandler(pipeline.Logger()))
	logger.With("Strategy", "sma").WithGroup("order").Info("size {not a hole}", "Size", 10, slog.Group("limits", "Max", 5))
	logger.Debug("debug")
	require.NoError(t, pipeline.Close())

	events := memory.Events()
	require.Len(t, events, 2)
	event := events[0]
	assert.Equal(t, LevelInfo, event.Level())
	assert.Equal(t, "size {not a hole}", event.RenderMessage())
	strategy, _ := event.Property("Strategy")
	assert.Equal(t, "sma", strategy.Scalar())
	size, _ := event.Property("order.Size")
	assert.Equal(t, int64(10), size.Scalar())
	limits, _ := event.Property("order.limits")
	maxSize, ok := limits.Field("Max")
	require.True(t, ok)
	assert.Equal(t, int64(5), maxSize.Scalar())
	assert.Equal(t, LevelDebug, events[1].Level())
}

func TestZapCore(t *testing.T) {
	memory := NewMemorySink()
	pipeline, err := New(Options{Sinks: map[string]Sink{"memory": memory}})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())

	logger := zap.New(NewZapCore(pipeline.Logger())).Named("broker")
	logger.With(zap.String("Account", "a-1")).Warn("rejected", zap.Error(errors.New("margin")), zap.Int("Size", 3))
	require.NoError(t, pipeline.Close())

	events := memory.Events()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, LevelWarning, event.Level())
	assert.Equal(t, "rejected", event.RenderMessage())
	for name, expected := range map[string]any{
		"Account":               "a-1",
		"error":                 "margin",
		"Size":                  int64(3),
		C.PropertySourceContext: "broker",
	} {
		value, ok := event.Property(name)
		require.True(t, ok, name)
		assert.Equal(t, expected, value.Scalar(), name)
	}
}
