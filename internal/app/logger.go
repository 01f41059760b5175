package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger. Production always logs JSON so
// stage-transition and stock events stay machine-parsable; elsewhere
// LOG_FORMAT picks the handler, defaulting to text without source
// annotations.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg.IsProduction() || (cfg != nil && cfg.LogFormat == "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
