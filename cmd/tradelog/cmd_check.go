package main

import (
	"context"

	"github.com/tradelog/tradelog/trading"

	"github.com/spf13/cobra"
)

var commandCheck = &cobra.Command{
	Use:   "check",
	Short: "Check configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return check()
	},
}

func init() {
	mainCommand.AddCommand(commandCheck)
}

func check() error {
	options, err := readConfig(configPath)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(context.Background(), options, trading.NewSimulationClock(timeZero), nil)
	if err != nil {
		return err
	}
	return pipeline.Close()
}
