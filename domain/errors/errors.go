// Package errors provides domain-specific error types for the bridge.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/reglet-dev/pybridge/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail. New error types only need to implement this
// interface without modifying ToErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// This function recognizes custom error types and categorizes them appropriately.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	// If the error is already a *ErrorDetail (entity), use it directly.
	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	// Generic error - categorize as internal
	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// ResolutionError reports that no usable libpython was found, or that a
// mandatory symbol is missing from every library that loaded.
type ResolutionError struct {
	Err    error
	Symbol string   // Missing mandatory symbol, if that was the cause
	Tried  []string // Library paths that were attempted
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	if e.Symbol != "" {
		fmt.Fprintf(&b, "libpython resolution failed: mandatory symbol %s not found", e.Symbol)
	} else {
		b.WriteString("libpython resolution failed: no usable shared library found")
	}
	if len(e.Tried) > 0 {
		fmt.Fprintf(&b, " (tried %s)", strings.Join(e.Tried, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ResolutionError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{Message: e.Error(), Type: "resolution", Code: "no_library"}
	if e.Symbol != "" {
		detail.Code = "missing_symbol"
		detail.Details = map[string]any{"symbol": e.Symbol}
	}
	return detail
}

// InitializationError reports that the interpreter could not be brought up.
type InitializationError struct {
	Err    error
	Reason string
}

func (e *InitializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("python initialization failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("python initialization failed: %s", e.Reason)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
// A Python exception behind the failure is kept as the wrapped detail.
func (e *InitializationError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{Message: e.Error(), Type: "initialization"}
	var pe *PyError
	if stdErrors.As(e.Err, &pe) {
		detail.Wrapped = pe.ToErrorDetail()
	}
	return detail
}

// PyError is a Python exception captured at a call site and normalized into a
// Go error value.
type PyError struct {
	Type      string // Exception class name, e.g. "ZeroDivisionError"
	Message   string // str(exception)
	Traceback string // Formatted traceback, may be empty
}

func (e *PyError) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ToErrorDetail implements DetailedError.
func (e *PyError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Message, Type: "python", Code: e.Type, Traceback: e.Traceback}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}

// ExecError represents a subprocess execution error.
type ExecError struct {
	Err      error
	Command  string
	Stderr   string
	ExitCode int
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to execute '%s': %v", e.Command, e.Err)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("command '%s' exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("command '%s' exited with code %d", e.Command, e.ExitCode)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ExecError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "exec", Code: fmt.Sprintf("exit_%d", e.ExitCode)}
}
