package process

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/reglet-dev/pybridge/domain/errors"
	"github.com/reglet-dev/pybridge/domain/ports"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("relies on POSIX utilities")
	}
}

func TestRunner_Success(t *testing.T) {
	skipOnWindows(t)

	res, err := NewRunner().Run(context.Background(), ports.CommandRequest{
		Command: "echo",
		Args:    []string{"VERSION:", "3.11"},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "VERSION: 3.11\n", res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.False(t, res.IsTimeout)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
}

func TestRunner_InvalidCommand(t *testing.T) {
	_, err := NewRunner().Run(context.Background(), ports.CommandRequest{
		Command: "nonexistentpython12345",
	})

	var execErr *domainerrors.ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "nonexistentpython12345", execErr.Command)
}

func TestRunner_EmptyCommand(t *testing.T) {
	_, err := NewRunner().Run(context.Background(), ports.CommandRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
}

func TestRunner_Timeout(t *testing.T) {
	skipOnWindows(t)
	if testing.Short() {
		t.Skip("skipping timeout test in short mode")
	}

	res, err := NewRunner().Run(context.Background(), ports.CommandRequest{
		Command: "sleep",
		Args:    []string{"2"},
		Timeout: 100,
	})

	require.NoError(t, err) // Timeout is a valid result state, not an execution error
	assert.True(t, res.IsTimeout)
	assert.Equal(t, -1, res.ExitCode)
}

func TestRunner_DefaultTimeoutOption(t *testing.T) {
	skipOnWindows(t)
	if testing.Short() {
		t.Skip("skipping timeout test in short mode")
	}

	res, err := NewRunner(WithTimeout(100*time.Millisecond)).Run(context.Background(), ports.CommandRequest{
		Command: "sleep",
		Args:    []string{"2"},
	})

	require.NoError(t, err)
	assert.True(t, res.IsTimeout)
}

func TestRunner_ExitCode(t *testing.T) {
	skipOnWindows(t)

	res, err := NewRunner().Run(context.Background(), ports.CommandRequest{Command: "false"})

	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRunner_Env(t *testing.T) {
	skipOnWindows(t)

	res, err := NewRunner().Run(context.Background(), ports.CommandRequest{
		Command: "env",
		Env:     []string{"PYTHONIOENCODING=UTF-8"},
	})

	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "PYTHONIOENCODING=UTF-8")
}
