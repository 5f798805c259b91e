// Package logging constructs the application logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a zerolog.Logger writing to stderr. Format "text" selects the
// human-readable console writer; anything else emits JSON lines.
func New(level, format string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	var output io.Writer = os.Stderr
	if format == "text" {
		output = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	return zerolog.New(output).Level(logLevel).With().Timestamp().Logger()
}
