package log

import (
	"strings"

	E "github.com/sagernet/sing/common/exceptions"
)

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func FormatLevel(level Level) string {
	switch level {
	case LevelDebug:
		return "Debug"
	case LevelInfo:
		return "Information"
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ShortLevel returns the three letter form used by the text formatter.
func ShortLevel(level Level) string {
	switch level {
	case LevelDebug:
		return "DBG"
	case LevelInfo:
		return "INF"
	case LevelWarning:
		return "WRN"
	case LevelError:
		return "ERR"
	default:
		return "???"
	}
}

func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug", "verbose", "trace":
		return LevelDebug, nil
	case "info", "information":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error", "fatal":
		return LevelError, nil
	default:
		return LevelDebug, E.New("unknown log level: ", level)
	}
}

func (l Level) String() string {
	return FormatLevel(l)
}
