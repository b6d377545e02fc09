// Package pybridge embeds a CPython interpreter in a Go process.
//
// The interpreter is loaded at run time from the libpython shared library,
// without cgo. A Bridge owns the interpreter lifecycle and serializes access
// to it through the GIL:
//
//	b, err := pybridge.Start(ctx)
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	v, err := b.Eval("1 + 1")
//
// Go functions passed to Python are kept alive by the bridge's guard until
// Python drops its last reference to them.
package pybridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/reglet-dev/pybridge/domain/errors"
	"github.com/reglet-dev/pybridge/gcguard"
	"github.com/reglet-dev/pybridge/libpython"
)

type lifecycle int

const (
	uninitialized lifecycle = iota
	initialized
	tornDown
)

func (l lifecycle) String() string {
	switch l {
	case initialized:
		return "initialized"
	case tornDown:
		return "torn-down"
	default:
		return "uninitialized"
	}
}

// Option configures a Bridge.
type Option func(*bridgeConfig)

type bridgeConfig struct {
	logger         *slog.Logger
	resolveOptions []libpython.Option
}

func defaultBridgeConfig() bridgeConfig {
	return bridgeConfig{}
}

// WithLogger sets the logger for the bridge and its guard.
func WithLogger(logger *slog.Logger) Option {
	return func(c *bridgeConfig) {
		c.logger = logger
	}
}

// WithResolveOptions passes options to libpython.Resolve. Only Start uses them.
func WithResolveOptions(opts ...libpython.Option) Option {
	return func(c *bridgeConfig) {
		c.resolveOptions = append(c.resolveOptions, opts...)
	}
}

// Bridge is the interpreter lifecycle state.
//
// It moves from uninitialized to initialized on the first successful
// EnsureInitialized and to torn-down on Shutdown. It never goes back.
type Bridge struct {
	sym    *libpython.Symbols
	guard  *gcguard.Guard
	logger *slog.Logger

	// mu serializes initialization and the state change of Shutdown. It is
	// never held while waiting for the GIL.
	mu      sync.Mutex
	state   atomic.Int32
	initErr error

	// handles is read lock-free inside Do; Shutdown swaps it to nil.
	handles atomic.Pointer[retained]

	shutdown sync.Once
}

// retained are the modules kept for the lifetime of the bridge.
type retained struct {
	builtins libpython.Ptr
	main     libpython.Ptr
	mainDict libpython.Ptr
}

// New creates a Bridge over a resolved symbol table. It does not call into
// Python.
func New(sym *libpython.Symbols, opts ...Option) *Bridge {
	cfg := defaultBridgeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	b := &Bridge{sym: sym, logger: cfg.logger}
	b.guard = gcguard.New(sym, gcguard.WithConverter(b), gcguard.WithLogger(cfg.logger))
	return b
}

// Start resolves libpython, creates a Bridge and initializes the interpreter.
func Start(ctx context.Context, opts ...Option) (*Bridge, error) {
	cfg := defaultBridgeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	resolveOpts := cfg.resolveOptions
	if cfg.logger != nil {
		resolveOpts = append([]libpython.Option{libpython.WithLogger(cfg.logger)}, resolveOpts...)
	}

	sym, err := libpython.Resolve(ctx, resolveOpts...)
	if err != nil {
		return nil, err
	}
	b := New(sym, opts...)
	if err := b.EnsureInitialized(); err != nil {
		return nil, err
	}
	return b, nil
}

// Symbols returns the bound symbol table.
func (b *Bridge) Symbols() *libpython.Symbols {
	return b.sym
}

// Guard returns the registry keeping Go values alive for Python.
func (b *Bridge) Guard() *gcguard.Guard {
	return b.guard
}

// EnsureInitialized brings the interpreter up if needed. It is idempotent and
// performs the initialization sequence at most once. An interpreter that is
// already running, for example because the host embeds Python elsewhere, is
// adopted without initializing it again. A failure is fatal: later calls
// return the same error.
func (b *Bridge) EnsureInitialized() error {
	if done, err := b.settled(); done {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if done, err := b.settled(); done {
		return err
	}
	if b.initErr != nil {
		return b.initErr
	}

	if err := b.initialize(); err != nil {
		b.initErr = err
		b.logger.Error("python initialization failed", "error", err)
		return err
	}
	b.state.Store(int32(initialized))
	b.logger.Debug("python initialized", "version", b.sym.Version().String(), "library", b.sym.Library())
	return nil
}

// settled reports whether the bridge is past initialization, and the error
// callers get in that case.
func (b *Bridge) settled() (bool, error) {
	switch lifecycle(b.state.Load()) {
	case initialized:
		return true, nil
	case tornDown:
		return true, errShutDown()
	}
	return false, nil
}

func errShutDown() error {
	return &errors.InitializationError{Reason: "bridge has been shut down"}
}

func (b *Bridge) initialize() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	sym := b.sym
	if sym.IsInitialized() != 0 {
		gil := sym.GILStateEnsure()
		defer sym.GILStateRelease(gil)
		return b.retainModules()
	}

	sym.InitializeEx(0)
	if sym.SetArgvEx != nil {
		sym.SetArgvEx(0, 0, 0)
	}
	if sym.IsInitialized() == 0 {
		return &errors.InitializationError{Reason: "interpreter not running after Py_InitializeEx"}
	}

	// The initializing thread holds the GIL; hand it back so Do can take it
	// from any thread.
	defer sym.SaveThread()
	return b.retainModules()
}

// retainModules imports builtins and __main__ and keeps the main namespace.
func (b *Bridge) retainModules() error {
	sym := b.sym

	builtins := sym.FromOwned(sym.ImportModule(sym.BuiltinsModule()))
	if builtins.IsNull() {
		return &errors.InitializationError{Reason: "import " + sym.BuiltinsModule(), Err: sym.FetchError()}
	}
	main := sym.FromOwned(sym.ImportModule("__main__"))
	if main.IsNull() {
		builtins.Release()
		return &errors.InitializationError{Reason: "import __main__", Err: sym.FetchError()}
	}

	b.handles.Store(&retained{
		builtins: builtins,
		main:     main,
		mainDict: sym.FromBorrowed(sym.ModuleGetDict(main.Addr())),
	})
	return nil
}

// Do runs fn with the GIL held on a locked OS thread. Every call into Python,
// including Ptr methods, must happen inside Do. Do may be nested, so Go code
// called back from Python can use it again.
func (b *Bridge) Do(fn func() error) error {
	if err := b.EnsureInitialized(); err != nil {
		return err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	gil := b.sym.GILStateEnsure()
	defer b.sym.GILStateRelease(gil)
	return fn()
}

// Builtins returns the builtins module. The handle is borrowed from the
// bridge and must not be released.
func (b *Bridge) Builtins() libpython.Ptr {
	if r := b.handles.Load(); r != nil {
		return r.builtins
	}
	return libpython.Null()
}

// Main returns the __main__ module (borrowed).
func (b *Bridge) Main() libpython.Ptr {
	if r := b.handles.Load(); r != nil {
		return r.main
	}
	return libpython.Null()
}

// MainDict returns the globals of __main__ (borrowed).
func (b *Bridge) MainDict() libpython.Ptr {
	if r := b.handles.Load(); r != nil {
		return r.mainDict
	}
	return libpython.Null()
}

// globals is MainDict for use inside Do, failing once the bridge is shut down.
func (b *Bridge) globals() (libpython.Ptr, error) {
	if r := b.handles.Load(); r != nil {
		return r.mainDict, nil
	}
	return libpython.Null(), errShutDown()
}

// Shutdown releases the handles the bridge retains and marks it torn down.
// It runs once; later calls do nothing. The interpreter itself is not
// finalized, since extension modules may still hold state in it.
//
// The bridge is marked torn down before the GIL is taken, so a Go callable
// running in Python at that moment sees a shut-down bridge instead of
// blocking. Shutdown returns once that callable has given the GIL back.
func (b *Bridge) Shutdown() {
	b.shutdown.Do(func() {
		b.mu.Lock()
		b.state.Store(int32(tornDown))
		r := b.handles.Swap(nil)
		b.mu.Unlock()

		if r != nil {
			runtime.LockOSThread()
			gil := b.sym.GILStateEnsure()
			r.mainDict.Release()
			r.main.Release()
			r.builtins.Release()
			b.sym.GILStateRelease(gil)
			runtime.UnlockOSThread()
		}
		b.logger.Debug("python bridge shut down", "guarded", b.guard.Count())
	})
}

// Close implements io.Closer by calling Shutdown.
func (b *Bridge) Close() error {
	b.Shutdown()
	return nil
}

// String describes the bridge state.
func (b *Bridge) String() string {
	return fmt.Sprintf("pybridge(%s, %s)", b.sym.Library(), lifecycle(b.state.Load()))
}
