package log

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/pybridge"
	"github.com/reglet-dev/pybridge/libpython"
)

//go:embed scripts/forward.py
var forwardScript string

// installFunc is the name forwardScript binds in __main__.
const installFunc = "_pybridge_forward_logging"

// Forwarder routes records from Python's root logger to a slog.Logger.
type Forwarder struct {
	b      *pybridge.Bridge
	remove libpython.Ptr
	once   sync.Once
	err    error
}

// Forward installs a logging.Handler on Python's root logger that passes
// every record to logger. The root logger's level is lowered to the lowest
// level logger has enabled, so Python does not drop records slog would keep.
func Forward(b *pybridge.Bridge, logger *slog.Logger) (*Forwarder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := b.Exec(forwardScript); err != nil {
		return nil, fmt.Errorf("define log forwarder: %w", err)
	}
	install, ok, err := b.Global(installFunc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("define log forwarder: %s not defined", installFunc)
	}
	defer b.Release(&install)

	sink := func(levelno int, name, message string, created float64, path string, line int) error {
		return emit(context.Background(), logger, Record{
			Level:   levelno,
			Logger:  name,
			Message: message,
			Created: created,
			Path:    path,
			Line:    line,
		})
	}
	remove, err := b.Call(install, sink, levelToPython(minLevel(logger)))
	if err != nil {
		return nil, fmt.Errorf("install log forwarder: %w", err)
	}
	return &Forwarder{b: b, remove: remove}, nil
}

// Close removes the handler from Python's root logger. The Go sink is
// released once Python drops its last reference to it.
func (f *Forwarder) Close() error {
	f.once.Do(func() {
		res, err := f.b.Call(f.remove)
		if err != nil {
			f.err = fmt.Errorf("remove log forwarder: %w", err)
		}
		f.b.Release(&res, &f.remove)
	})
	return f.err
}

// minLevel returns the lowest standard level logger has enabled.
func minLevel(logger *slog.Logger) slog.Level {
	ctx := context.Background()
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if logger.Enabled(ctx, level) {
			return level
		}
	}
	return slog.LevelError
}
