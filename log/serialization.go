package log

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Python logging levels.
const (
	pyDebug    = 10
	pyInfo     = 20
	pyWarning  = 30
	pyError    = 40
	pyCritical = 50
)

// Record is a Python LogRecord as passed to Go.
type Record struct {
	Level   int // levelno
	Logger  string
	Message string
	Created float64 // seconds since the epoch
	Path    string
	Line    int
}

// levelFromPython maps a Python levelno onto the slog scale. The standard
// levels land on slog's: DEBUG is Debug, WARNING is Warn, CRITICAL is
// Error+4. Custom levels in between are interpolated.
func levelFromPython(levelno int) slog.Level {
	return slog.Level((levelno - pyInfo) * 4 / 10)
}

// levelToPython is the inverse of levelFromPython, rounded down.
func levelToPython(level slog.Level) int {
	n := int(math.Floor(float64(level)*10/4)) + pyInfo
	return max(n, 1)
}

func (r Record) time() time.Time {
	if r.Created <= 0 {
		return time.Now()
	}
	sec, frac := math.Modf(r.Created)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// slogRecord converts r. Python-side location goes into attributes because a
// slog.Record only carries a Go program counter.
func (r Record) slogRecord() slog.Record {
	rec := slog.NewRecord(r.time(), levelFromPython(r.Level), r.Message, 0)
	rec.AddAttrs(slog.String("logger", r.Logger))
	if r.Path != "" {
		rec.AddAttrs(slog.String("file", r.Path), slog.Int("line", r.Line))
	}
	return rec
}

// emit hands r to logger's handler if the level is enabled.
func emit(ctx context.Context, logger *slog.Logger, r Record) error {
	level := levelFromPython(r.Level)
	if !logger.Enabled(ctx, level) {
		return nil
	}
	return logger.Handler().Handle(ctx, r.slogRecord())
}
