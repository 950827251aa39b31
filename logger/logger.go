// Package logger configures the zerolog logger shared by the scribed daemon
// and its packages. Output goes to a log file when one is configured, so the
// interactive prompt and the approval view keep the terminal to themselves.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

// Init initializes the default logger for scribed, writing JSON logs to
// scribe.log in the current directory. The level comes from the LOG_LEVEL
// environment variable (trace, debug, info, warn, error; default info).
func Init() (zerolog.Logger, error) {
	return InitWithOptions("scribe.log", false)
}

// InitWithOptions initializes the logger. An empty logFile logs to stdout;
// pretty switches stdout output to the human-readable console writer and is
// only meaningful when logFile is empty. The level comes from LOG_LEVEL.
func InitWithOptions(logFile string, pretty bool) (zerolog.Logger, error) {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))

	var output io.Writer
	switch {
	case logFile != "":
		//nolint:gosec // G304: User-specified log file path is intentional
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		output = file
	case pretty:
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	default:
		output = os.Stdout
	}

	log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	event := log.Info().Str("level", level.String())
	switch {
	case logFile != "":
		event.Str("path", logFile).Msg("Logger initialized")
	case pretty:
		event.Str("output", "stdout").Str("format", "pretty").Msg("Logger initialized")
	default:
		event.Str("output", "stdout").Msg("Logger initialized")
	}

	return log, nil
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
