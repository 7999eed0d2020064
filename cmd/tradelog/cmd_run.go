package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradelog/tradelog/experimental/statusapi"
	"github.com/tradelog/tradelog/log"
	"github.com/tradelog/tradelog/trading"

	E "github.com/sagernet/sing/common/exceptions"

	"github.com/spf13/cobra"
)

var timeZero time.Time

var commandRun = &cobra.Command{
	Use:   "run [replay file]",
	Short: "Replay host callbacks through the event pipeline",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var replayPath string
		if len(args) > 0 {
			replayPath = args[0]
		}
		return run(replayPath)
	},
}

func init() {
	mainCommand.AddCommand(commandRun)
}

func run(replayPath string) error {
	options, err := readConfig(configPath)
	if err != nil {
		return err
	}
	start := timeZero
	if options.Replay != nil {
		if replayPath == "" {
			replayPath = options.Replay.Path
		}
		if options.Replay.Start != "" {
			start, err = time.Parse(time.RFC3339, options.Replay.Start)
			if err != nil {
				return E.Cause(err, "parse replay start")
			}
		}
	}
	if replayPath == "" {
		return E.New("missing replay file")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clock := trading.NewSimulationClock(start)
	pipeline, err := newPipeline(ctx, options, clock, nil)
	if err != nil {
		return E.Cause(err, "create pipeline")
	}
	err = pipeline.Start()
	if err != nil {
		return E.Cause(err, "start pipeline")
	}
	logger := pipeline.NewLogger("tradelog")

	if options.StatusAPI != nil {
		server, err := statusapi.NewServer(ctx, pipeline.NewLogger("status-api"), pipeline, *options.StatusAPI)
		if err == nil {
			err = server.Start()
		}
		if err != nil {
			pipeline.Close()
			return E.Cause(err, "start status api")
		}
		defer server.Close()
	}

	var reader io.Reader
	if replayPath == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(replayPath)
		if err != nil {
			pipeline.Close()
			return E.Cause(err, "open replay file")
		}
		defer file.Close()
		reader = file
	}

	startTime := time.Now()
	count, replayErr := trading.Replay(ctx, reader, trading.NewJournal(pipeline.Logger(), clock))
	if replayErr != nil {
		logger.Error("Replay stopped after {Count} records: {Error}", count, replayErr)
	} else {
		logger.Info("Replayed {Count} records in {Elapsed}", count, time.Since(startTime))
	}
	logStats(logger, pipeline.Stats())
	err = pipeline.Close()
	if replayErr != nil {
		return replayErr
	}
	return err
}

func logStats(logger log.Logger, stats log.Stats) {
	for _, sink := range stats.Sinks {
		logger.Debug("Sink {Sink} ({Kind}): {Enqueued} enqueued, {Written} written, {Failed} failed, {Overflow} overflowed",
			sink.Name, sink.Kind, sink.Enqueued, sink.Written, sink.Failed, sink.Overflow)
	}
}
