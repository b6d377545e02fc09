package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/pybridge/domain/entities"
)

func TestResolutionError_NoLibrary(t *testing.T) {
	err := &ResolutionError{
		Tried: []string{"/usr/lib/libpython3.11.so", "/usr/lib/libpython3.so"},
	}

	assert.Equal(t,
		"libpython resolution failed: no usable shared library found (tried /usr/lib/libpython3.11.so, /usr/lib/libpython3.so)",
		err.Error())

	detail := err.ToErrorDetail()
	assert.Equal(t, "resolution", detail.Type)
	assert.Equal(t, "no_library", detail.Code)
}

func TestResolutionError_MissingSymbol(t *testing.T) {
	baseErr := fmt.Errorf("dlsym failed")
	err := &ResolutionError{Symbol: "Py_IncRef", Err: baseErr}

	assert.Equal(t, "libpython resolution failed: mandatory symbol Py_IncRef not found: dlsym failed", err.Error())
	assert.True(t, errors.Is(err, baseErr))

	detail := err.ToErrorDetail()
	assert.Equal(t, "missing_symbol", detail.Code)
	assert.Equal(t, "Py_IncRef", detail.Details["symbol"])
}

func TestInitializationError(t *testing.T) {
	err := &InitializationError{Reason: "Py_IsInitialized still false after Py_InitializeEx"}
	assert.Equal(t, "python initialization failed: Py_IsInitialized still false after Py_InitializeEx", err.Error())

	baseErr := fmt.Errorf("no module named 'encodings'")
	wrapped := &InitializationError{Reason: "import builtins", Err: baseErr}
	assert.Equal(t, "python initialization failed: import builtins: no module named 'encodings'", wrapped.Error())
	assert.True(t, errors.Is(wrapped, baseErr))
	assert.Nil(t, wrapped.ToErrorDetail().Wrapped)

	fromPython := &InitializationError{
		Reason: "import __main__",
		Err:    &PyError{Type: "ImportError", Message: "no module named '__main__'"},
	}
	detail := fromPython.ToErrorDetail()
	assert.Equal(t, "initialization", detail.Type)
	require.NotNil(t, detail.Wrapped)
	assert.Equal(t, "ImportError", detail.Wrapped.Code)
	assert.Contains(t, detail.Error(), "python: no module named '__main__' [ImportError]")
}

func TestPyError(t *testing.T) {
	err := &PyError{
		Type:      "ZeroDivisionError",
		Message:   "division by zero",
		Traceback: "Traceback (most recent call last):\n  File \"<string>\", line 1, in <module>\n",
	}

	assert.Equal(t, "ZeroDivisionError: division by zero", err.Error())

	detail := ToErrorDetail(fmt.Errorf("eval: %w", err))
	assert.Equal(t, "python", detail.Type)
	assert.Equal(t, "ZeroDivisionError", detail.Code)
	assert.Contains(t, detail.Traceback, "most recent call last")
}

func TestPyError_NoMessage(t *testing.T) {
	err := &PyError{Type: "StopIteration"}
	assert.Equal(t, "StopIteration", err.Error())
}

func TestConfigError(t *testing.T) {
	baseErr := fmt.Errorf("invalid format")
	err := &ConfigError{
		Field: "log_level",
		Err:   baseErr,
	}

	assert.Equal(t, "config validation failed for field 'log_level': invalid format", err.Error())
	assert.True(t, errors.Is(err, baseErr))

	var confErr *ConfigError
	require.True(t, errors.As(err, &confErr))
	assert.Equal(t, "log_level", confErr.Field)
}

func TestConfigError_NoField(t *testing.T) {
	baseErr := fmt.Errorf("missing required fields")
	err := &ConfigError{
		Err: baseErr,
	}

	assert.Equal(t, "config validation failed: missing required fields", err.Error())
}

func TestExecError_DidNotRun(t *testing.T) {
	baseErr := fmt.Errorf("executable file not found in $PATH")
	err := &ExecError{
		Command: "python9",
		Err:     baseErr,
	}

	assert.Equal(t, "failed to execute 'python9': executable file not found in $PATH", err.Error())
	assert.True(t, errors.Is(err, baseErr))
}

func TestExecError_NonZeroExit(t *testing.T) {
	err := &ExecError{
		Command:  "python3",
		ExitCode: 1,
		Stderr:   "ModuleNotFoundError: No module named 'site'",
	}

	assert.Equal(t, "command 'python3' exited with code 1: ModuleNotFoundError: No module named 'site'", err.Error())

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 1, execErr.ExitCode)
}

func TestExecError_NonZeroExitNoStderr(t *testing.T) {
	err := &ExecError{
		Command:  "false",
		ExitCode: 1,
	}

	assert.Equal(t, "command 'false' exited with code 1", err.Error())
}

func TestToErrorDetail(t *testing.T) {
	assert.Nil(t, ToErrorDetail(nil))

	generic := ToErrorDetail(fmt.Errorf("boom"))
	assert.Equal(t, "internal", generic.Type)
	assert.Equal(t, "boom", generic.Message)

	entity := entities.NewErrorDetail("config", "bad").WithCode("python")
	assert.Same(t, entity, ToErrorDetail(fmt.Errorf("wrapped: %w", entity)))
}

func TestErrorUnwrapping(t *testing.T) {
	baseErr := fmt.Errorf("base error")

	tests := []struct {
		name string
		err  error
	}{
		{"ResolutionError", &ResolutionError{Err: baseErr}},
		{"InitializationError", &InitializationError{Reason: "test", Err: baseErr}},
		{"ConfigError", &ConfigError{Field: "test", Err: baseErr}},
		{"ExecError", &ExecError{Command: "test", Err: baseErr}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, baseErr), "errors.Is should find base error")
			unwrapped := errors.Unwrap(tt.err)
			assert.Equal(t, baseErr, unwrapped, "errors.Unwrap should return base error")
		})
	}
}
