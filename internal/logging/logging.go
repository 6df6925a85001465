// Package logging configures the process-wide zerolog logger using the
// seven-level vocabulary the CLI exposes: trace, debug, info, warn, err,
// critical, off.
package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is one of the seven levels accepted by the -l/--level flag.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelErr
	LevelCritical
	LevelOff
)

// ParseLevel parses one of trace|debug|info|warn|err|critical|off.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "err":
		return LevelErr, nil
	case "critical":
		return LevelCritical, nil
	case "off":
		return LevelOff, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) zerologLevel() zerolog.Level {
	switch l {
	case LevelTrace:
		return zerolog.TraceLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelErr, LevelCritical:
		// critical has no native zerolog level; it is marked by the
		// "critical" field Critical() attaches and is otherwise filtered
		// at the Error threshold.
		return zerolog.ErrorLevel
	default:
		return zerolog.Disabled
	}
}

// New builds a zerolog.Logger writing to stderr at the given level.
func New(levelStr string) (zerolog.Logger, error) {
	lvl, err := ParseLevel(levelStr)
	if err != nil {
		return zerolog.Logger{}, err
	}
	logger := zerolog.New(os.Stderr).
		With().
		Timestamp().
		Logger().
		Level(lvl.zerologLevel())
	return logger, nil
}

// Critical logs at the highest severity this runtime recognizes. zerolog
// has no distinct "critical" level, so this logs at error level tagged
// with a critical field, reserved for events that precede a fatal abort
// (bind failure, unrecovered panic).
func Critical(logger *zerolog.Logger) *zerolog.Event {
	return logger.WithLevel(zerolog.ErrorLevel).Bool("critical", true)
}

// init sets a human-friendly default time field format; production
// deployments that want structured JSON can override via
// zerolog.TimeFieldFormat before logging.New is called.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
