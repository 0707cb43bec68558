package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the application logger. Production always logs JSON at
// info level; elsewhere the format follows LOG_FORMAT and debug is enabled.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, Level: slog.LevelDebug}
	if cfg.IsProduction() {
		opts.Level = slog.LevelInfo
	}
	if cfg.IsProduction() || (cfg != nil && cfg.LogFormat == "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
