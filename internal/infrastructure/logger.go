package infrastructure

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Console output unless jsonOutput is set.
func NewLogger(level string, jsonOutput bool) zerolog.Logger {
	return newLogger(os.Stdout, level, jsonOutput)
}

func newLogger(w io.Writer, level string, jsonOutput bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "revenda-bot").Logger()
}
