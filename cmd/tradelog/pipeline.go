package main

import (
	"context"
	"io"

	"github.com/tradelog/tradelog/adapter"
	"github.com/tradelog/tradelog/log"
	"github.com/tradelog/tradelog/option"
	"github.com/tradelog/tradelog/trading"
)

func newPipeline(ctx context.Context, options option.Options, clock adapter.Clock, writer io.Writer) (*log.Pipeline, error) {
	logOptions := *options.Log
	if disableColor {
		sinks := make(map[string]option.SinkOptions, len(logOptions.Sinks))
		for name, sink := range logOptions.Sinks {
			sink.DisableColor = true
			sinks[name] = sink
		}
		logOptions.Sinks = sinks
	}
	registry := log.NewRegistry()
	trading.Register(registry)
	return log.New(log.Options{
		Context:       ctx,
		Options:       logOptions,
		Clock:         clock,
		Registry:      registry,
		DefaultWriter: writer,
		Observable:    options.StatusAPI != nil,
	})
}
