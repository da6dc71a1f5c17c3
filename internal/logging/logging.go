// Package logging builds the zerolog loggers used by the commands.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TimeLayout is the clock format shown in human-readable output.
const TimeLayout = "15:04"

// New returns a logger writing to w. Human output renders
// "[ 15:04 ] message key=value"; json emits raw zerolog lines.
func New(w io.Writer, debug, json bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	if json {
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}

	out := zerolog.ConsoleWriter{
		Out:             w,
		NoColor:         true,
		FormatTimestamp: formatTimestamp,
		FormatLevel:     formatLevel,
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func formatTimestamp(i interface{}) string {
	s, ok := i.(string)
	if !ok {
		return fmt.Sprintf("[ %v ]", i)
	}
	t, err := time.Parse(zerolog.TimeFieldFormat, s)
	if err != nil {
		return "[ " + s + " ]"
	}
	return "[ " + t.Local().Format(TimeLayout) + " ]"
}

// formatLevel leaves info lines untagged.
func formatLevel(i interface{}) string {
	s, _ := i.(string)
	switch s {
	case "", zerolog.LevelInfoValue:
		return ""
	default:
		return strings.ToUpper(s) + ":"
	}
}
