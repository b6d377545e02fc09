package libpython

import (
	"context"
	"log/slog"
	"time"

	"github.com/reglet-dev/pybridge/domain/entities"
	"github.com/reglet-dev/pybridge/domain/ports"
)

// pythonHome returns the PYTHONHOME value derived from cfg.
func pythonHome(cfg entities.PythonConfig, goos string) string {
	prefix := cfg.Value("prefix")
	execPrefix := cfg.Value("exec_prefix")
	switch {
	case goos == "windows", prefix == "":
		return execPrefix
	case execPrefix == "":
		return prefix
	default:
		return prefix + ":" + execPrefix
	}
}

// configurePythonHome sets PYTHONHOME when it is unset and keeps it only if
// python can still import site with it. It returns the value left in place,
// or the empty string when PYTHONHOME was not touched.
func configurePythonHome(ctx context.Context, runner ports.CommandRunner, env ports.Environment, logger *slog.Logger,
	python string, cfg entities.PythonConfig, goos string, timeout time.Duration,
) string {
	if current, set := env.LookupEnv("PYTHONHOME"); set {
		logger.Debug("PYTHONHOME already set", "value", current)
		return ""
	}
	home := pythonHome(cfg, goos)
	if home == "" {
		return ""
	}
	if err := env.Setenv("PYTHONHOME", home); err != nil {
		logger.Warn("failed to set PYTHONHOME", "error", err)
		return ""
	}

	res, err := runner.Run(ctx, ports.CommandRequest{
		Command: python,
		Args:    []string{"-c", "import site"},
		Env:     env.Environ(),
		Timeout: int(timeout.Milliseconds()),
	})
	if err == nil && res.ExitCode == 0 && !res.IsTimeout {
		logger.Debug("PYTHONHOME configured", "value", home)
		return home
	}

	logger.Debug("site probe failed, leaving PYTHONHOME unset", "value", home, "error", err)
	if err := env.Unsetenv("PYTHONHOME"); err != nil {
		logger.Warn("failed to unset PYTHONHOME", "error", err)
	}
	return ""
}
