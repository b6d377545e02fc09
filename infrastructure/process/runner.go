// Package process implements ports.CommandRunner on top of os/exec.
package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	domainerrors "github.com/reglet-dev/pybridge/domain/errors"
	"github.com/reglet-dev/pybridge/domain/ports"
)

// Option is a functional option for configuring the Runner.
type Option func(*runnerConfig)

type runnerConfig struct {
	timeout time.Duration
}

func defaultRunnerConfig() runnerConfig {
	return runnerConfig{
		timeout: 30 * time.Second,
	}
}

// WithTimeout sets the default execution timeout.
// A zero or negative duration is ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *runnerConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Runner executes commands on the host.
type Runner struct {
	cfg runnerConfig
}

// NewRunner creates a Runner with the given options.
func NewRunner(opts ...Option) *Runner {
	cfg := defaultRunnerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner{cfg: cfg}
}

var _ ports.CommandRunner = (*Runner)(nil)

// Run executes req and captures its output.
// Failing to start the process is an *errors.ExecError; a non-zero exit
// status or a timeout is reported in the result.
func (r *Runner) Run(ctx context.Context, req ports.CommandRequest) (*ports.CommandResult, error) {
	if req.Command == "" {
		return nil, &domainerrors.ExecError{Err: errors.New("command is required")}
	}

	timeout := r.cfg.timeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: running the configured python executable is the purpose of this function
	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	if req.Dir != "" {
		cmd.Dir = req.Dir
	}
	if req.Env != nil {
		cmd.Env = req.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	res := &ports.CommandResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: duration.Milliseconds(),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.IsTimeout = true
			res.ExitCode = -1 // Conventional timeout code
			return res, nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}

		return nil, &domainerrors.ExecError{Command: req.Command, Err: err}
	}

	return res, nil
}
