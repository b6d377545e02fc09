package pybridge_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/pybridge"
	pyerrors "github.com/reglet-dev/pybridge/domain/errors"
	"github.com/reglet-dev/pybridge/internal/testutil"
	"github.com/reglet-dev/pybridge/libpython"
)

func newBridge(t *testing.T, opts ...testutil.FakeOption) (*testutil.FakePython, *pybridge.Bridge) {
	t.Helper()
	py := testutil.NewFakePython(opts...)
	b := pybridge.New(py.Sym)
	t.Cleanup(b.Shutdown)
	return py, b
}

func TestEnsureInitialized_RunsOnce(t *testing.T) {
	py, b := newBridge(t)

	require.NoError(t, b.EnsureInitialized())
	require.NoError(t, b.EnsureInitialized())

	assert.Equal(t, 1, py.InitializeCalls)
	assert.Equal(t, 1, py.SetArgvCalls)
	assert.Equal(t, 1, py.SaveThreadCalls, "the GIL is handed back after initialization")
	assert.Equal(t, 0, py.GILDepth())

	assert.False(t, b.Builtins().IsNull())
	assert.False(t, b.Main().IsNull())
	assert.False(t, b.MainDict().IsNull())
}

func TestEnsureInitialized_AdoptsRunningInterpreter(t *testing.T) {
	py, b := newBridge(t, testutil.WithInitialized())

	require.NoError(t, b.EnsureInitialized())
	assert.Equal(t, 0, py.InitializeCalls)
	assert.Equal(t, 0, py.SaveThreadCalls)
	assert.Equal(t, 0, py.GILDepth())
	assert.False(t, b.MainDict().IsNull())
}

func TestEnsureInitialized_Python2(t *testing.T) {
	py, b := newBridge(t, testutil.WithPython2())

	require.NoError(t, b.EnsureInitialized())
	assert.Equal(t, py.Module("__builtin__"), b.Builtins().Addr())
}

func TestEnsureInitialized_FailureIsFatal(t *testing.T) {
	py, b := newBridge(t)
	py.FailInitialize = true

	err := b.EnsureInitialized()
	var initErr *pyerrors.InitializationError
	require.True(t, errors.As(err, &initErr))

	py.FailInitialize = false
	assert.Equal(t, err, b.EnsureInitialized(), "a failed initialization is not retried")
	assert.Equal(t, 1, py.InitializeCalls)

	assert.ErrorAs(t, b.Do(func() error { return nil }), &initErr)
}

func TestShutdown(t *testing.T) {
	py, b := newBridge(t)
	require.NoError(t, b.EnsureInitialized())

	dict := b.MainDict().Addr()
	before := py.RefCount(dict)

	b.Shutdown()
	assert.Equal(t, before-1, py.RefCount(dict), "retained namespace is released")
	assert.True(t, b.Builtins().IsNull())
	assert.True(t, b.Main().IsNull())
	assert.True(t, b.MainDict().IsNull())
	assert.Equal(t, 0, py.GILDepth())

	assert.NotPanics(t, b.Shutdown)
	require.NoError(t, b.Close())

	var initErr *pyerrors.InitializationError
	assert.ErrorAs(t, b.EnsureInitialized(), &initErr)
	assert.Equal(t, 1, py.InitializeCalls)
}

func TestShutdown_BeforeInitialize(t *testing.T) {
	py, b := newBridge(t)

	b.Shutdown()
	assert.Equal(t, 0, py.InitializeCalls)
	assert.Error(t, b.EnsureInitialized())
}

func TestShutdown_DuringCallback(t *testing.T) {
	_, b := newBridge(t)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var nestedErr error
	var fn libpython.Ptr
	require.NoError(t, b.Do(func() error {
		var err error
		fn, err = b.ToPython(func() {
			close(entered)
			<-proceed
			_, nestedErr = b.Eval("1")
		})
		return err
	}))

	callDone := make(chan error, 1)
	go func() {
		_, err := b.Call(fn)
		callDone <- err
	}()
	<-entered

	shutdownDone := make(chan struct{})
	go func() {
		b.Shutdown()
		close(shutdownDone)
	}()

	require.Eventually(t, func() bool {
		return b.String() == "pybridge(libpython-fake, torn-down)"
	}, 2*time.Second, 5*time.Millisecond, "the bridge is marked torn down while the callback holds the GIL")
	select {
	case <-shutdownDone:
		t.Fatal("Shutdown released handles while a callback held the GIL")
	default:
	}

	close(proceed)
	select {
	case err := <-callDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not return after Shutdown")
	}
	select {
	case <-shutdownDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return after the callback")
	}

	var initErr *pyerrors.InitializationError
	assert.ErrorAs(t, nestedErr, &initErr, "a shut-down bridge rejects nested calls")
	assert.True(t, b.MainDict().IsNull())
}

func TestDo_HoldsGILAndNests(t *testing.T) {
	py, b := newBridge(t)

	var outer, inner int
	err := b.Do(func() error {
		outer = py.GILDepth()
		return b.Do(func() error {
			inner = py.GILDepth()
			return nil
		})
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outer)
	assert.Equal(t, 2, inner)
	assert.Equal(t, 0, py.GILDepth())
	assert.Equal(t, 1, py.InitializeCalls, "Do initializes lazily")
}

func TestDo_ReturnsError(t *testing.T) {
	py, b := newBridge(t)
	boom := errors.New("boom")

	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.Equal(t, 0, py.GILDepth())
}

func TestString(t *testing.T) {
	_, b := newBridge(t)
	assert.Equal(t, "pybridge(libpython-fake, uninitialized)", b.String())

	require.NoError(t, b.EnsureInitialized())
	assert.Equal(t, "pybridge(libpython-fake, initialized)", b.String())

	b.Shutdown()
	assert.Equal(t, "pybridge(libpython-fake, torn-down)", b.String())
}
