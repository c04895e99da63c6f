// Package logging builds the process logger shared by every command.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mohammad-safakhou/webscraper/config"
	"github.com/rs/zerolog"
)

// New returns a leveled logger writing to stderr. Unknown levels fall back to info.
func New(cfg config.LoggingConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "webscraper").Logger()
}
