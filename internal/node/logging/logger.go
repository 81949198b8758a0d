package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger returns the process logger. Output always goes to stderr; stdout is
// reserved for the status codes and readiness lines the host process parses.
func NewLogger() *zerolog.Logger {
	return NewLoggerWithLevel(os.Stderr, zerolog.InfoLevel)
}

// NewLoggerWithLevel builds a console logger writing to out at the given level and
// installs it as the global zerolog logger.
func NewLoggerWithLevel(out io.Writer, level zerolog.Level) *zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return &logger
}

// ParseLevel maps a config string onto a zerolog level, falling back to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
