// Package logging sets up the process-wide zerolog logger, giving both
// binaries structured, leveled logging with an optional file sink.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Setup configures the global zerolog logger from a 0-3 verbosity level
// and an optional file path; level 0 is warn-and-above, level 1 info,
// level 2 enables debug (and CRC-failure frame hex-dumps), level 3 trace.
func Setup(level int, logFile string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			out = io.MultiWriter(out, f)
		}
	}

	zerolog.SetGlobalLevel(levelToZerolog(level))
	return zerolog.New(out).With().Timestamp().Logger()
}

func levelToZerolog(level int) zerolog.Level {
	switch {
	case level <= 0:
		return zerolog.WarnLevel
	case level == 1:
		return zerolog.InfoLevel
	case level == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
