// Package log builds the slog handlers used by pybridge and forwards records
// from Python's logging module into slog.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// HandlerOption configures NewHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Leveler
	addSource bool
	json      bool
	w         io.Writer
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
		w:     os.Stderr,
	}
}

// WithLevel sets the minimum log level to report.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithJSON switches the output from logfmt-style text to JSON lines.
func WithJSON(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.json = enabled
	}
}

// WithWriter sets the destination. Defaults to stderr.
func WithWriter(w io.Writer) HandlerOption {
	return func(c *handlerConfig) {
		c.w = w
	}
}

// NewHandler creates a text or JSON slog handler with the given options.
func NewHandler(opts ...HandlerOption) slog.Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ho := &slog.HandlerOptions{Level: cfg.level, AddSource: cfg.addSource}
	if cfg.json {
		return slog.NewJSONHandler(cfg.w, ho)
	}
	return slog.NewTextHandler(cfg.w, ho)
}

// New returns a logger over NewHandler(opts...).
func New(opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(opts...))
}

// ParseLevel parses debug, info, warn (or warning) and error, case-insensitive.
// Offsets such as "info+2" are accepted as in slog.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		s = "warn"
	}
	err := level.UnmarshalText([]byte(s))
	return level, err
}
