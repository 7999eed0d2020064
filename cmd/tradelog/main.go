package main

import (
	"os"
	"time"

	"github.com/tradelog/tradelog/log"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	disableColor bool
)

var mainCommand = &cobra.Command{
	Use:           "tradelog",
	Short:         "structured event journal for trading systems",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	mainCommand.PersistentFlags().StringVarP(&configPath, "config", "c", "", "set configuration file path (json or yaml)")
	mainCommand.PersistentFlags().BoolVarP(&disableColor, "disable-color", "", false, "disable color output")
}

func main() {
	if err := mainCommand.Execute(); err != nil {
		fatal(err)
	}
}

// fatal reports errors that happen before or after a pipeline exists.
func fatal(err error) {
	formatter := log.Formatter{
		DisableColors:   disableColor,
		TimestampFormat: "2006-01-02 15:04:05.000",
	}
	event := log.NewEvent(time.Now(), log.LevelError, log.ParseTemplate(log.EscapeTemplate(err.Error())), nil, nil)
	os.Stderr.WriteString(formatter.Format(event))
	os.Exit(1)
}
