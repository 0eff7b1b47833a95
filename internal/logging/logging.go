// Package logging builds the zerolog logger shared by the driver and the
// rebalancer.
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"

	"shardring/internal/config"
)

// New returns a timestamped logger writing to w. Unless cfg.JSON is set the
// output goes through a console writer. An empty or unknown level falls back
// to info.
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000", NoColor: true}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
