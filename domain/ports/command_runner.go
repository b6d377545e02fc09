package ports

import (
	"context"
)

// CommandRunner defines the interface for subprocess execution.
// The resolver uses it to run the Python investigator and the site probe.
type CommandRunner interface {
	// Run executes a command and returns the result.
	// A non-zero exit code is reported in the result, not as an error.
	Run(ctx context.Context, req CommandRequest) (*CommandResult, error)
}

// CommandRequest holds parameters for command execution.
type CommandRequest struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // Full environment; nil inherits the host's
	Timeout int      // milliseconds
}

// CommandResult represents the result of a command execution.
type CommandResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMs int64
	IsTimeout  bool
}
