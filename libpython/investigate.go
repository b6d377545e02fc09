package libpython

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/reglet-dev/pybridge/domain/entities"
	"github.com/reglet-dev/pybridge/domain/errors"
	"github.com/reglet-dev/pybridge/domain/ports"
)

//go:embed scripts/investigator.py
var investigatorScript string

// ParseConfig parses investigator output. Each line is "key: value"; a value
// of None marks the key as absent.
func ParseConfig(output string) entities.PythonConfig {
	cfg := entities.PythonConfig{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		key, value, ok := strings.Cut(line, ": ")
		if !ok || key == "" {
			continue
		}
		if value == "None" || value == "" {
			continue
		}
		cfg[key] = value
	}
	return cfg
}

// Investigate runs the investigator script with the given Python executable.
func Investigate(ctx context.Context, runner ports.CommandRunner, env ports.Environment, python string, timeout time.Duration) (entities.PythonConfig, error) {
	res, err := runner.Run(ctx, ports.CommandRequest{
		Command: python,
		Args:    []string{"-c", investigatorScript},
		Env:     append(env.Environ(), "PYTHONIOENCODING=UTF-8"),
		Timeout: int(timeout.Milliseconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("investigate %s: %w", python, err)
	}
	if res.IsTimeout {
		return nil, fmt.Errorf("investigate %s: timed out after %s", python, timeout)
	}
	if res.ExitCode != 0 {
		return nil, &errors.ExecError{Command: python, ExitCode: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
	}
	return ParseConfig(res.Stdout), nil
}
