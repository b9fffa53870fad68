// Package logging builds the zerolog loggers used across the server and
// provides size-based rotation with gzip-compressed archives for file
// outputs.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values fall back to info.
	Level string
	// Format is json or console.
	Format string
	// Output is stdout, stderr, or a file path.
	Output string
	// Rotation applies when Output is a file path.
	Rotation RotationConfig
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger per the config. The returned closer releases the
// output file, if any; it is a no-op for stdout/stderr.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	var out io.Writer
	var closer io.Closer = nopCloser{}

	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		if cfg.Rotation.Enabled {
			w, err := NewRotatingWriter(cfg.Output, cfg.Rotation)
			if err != nil {
				return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
			}
			out, closer = w, w
		} else {
			f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
			}
			out, closer = f, f
		}
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Logger()
	return logger, closer, nil
}

// Nop returns a disabled logger for tests and default construction.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
