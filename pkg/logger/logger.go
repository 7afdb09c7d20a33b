package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Development gets a human readable console
// writer, every other environment gets JSON lines on stderr.
func New(level, env string) zerolog.Logger {
	return NewWithWriter(os.Stderr, level, env)
}

func NewWithWriter(w io.Writer, level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Nop is used by tests and by components built without a logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
