package internal

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger: JSON in prod, pretty console output in
// dev. Unknown levels fall back to info.
func NewLogger(w io.Writer, env, level string) zerolog.Logger {
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		l = zerolog.InfoLevel
	}

	if env != "prod" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).Level(l).With().Timestamp().Logger()
}
