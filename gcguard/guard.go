package gcguard

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/reglet-dev/pybridge/libpython"
)

// methVarArgs is METH_VARARGS.
const methVarArgs = 0x0001

// callableName is the __name__ of Python functions wrapping Go callables.
const callableName = "go_callable"

// methodDef mirrors PyMethodDef.
type methodDef struct {
	name  uintptr
	meth  uintptr
	flags int32
	_     int32
	doc   uintptr
}

// Converter moves values across the boundary for wrapped callables.
type Converter interface {
	// FromPython converts a borrowed argument. The result must not keep p
	// without taking its own reference.
	FromPython(p libpython.Ptr) (any, error)
	// ToPython converts a result into a new reference.
	ToPython(v any) (libpython.Ptr, error)
}

// Option configures a Guard.
type Option func(*guardConfig)

type guardConfig struct {
	converter Converter
	logger    *slog.Logger
}

// WithConverter sets the converter used by wrapped callables.
// The default passes handles through: arguments arrive as libpython.Ptr and
// results must be nil or libpython.Ptr.
func WithConverter(c Converter) Option {
	return func(cfg *guardConfig) {
		cfg.converter = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *guardConfig) {
		cfg.logger = logger
	}
}

// Guard registers Go values with the interpreter.
//
// All methods that create Python objects must run with the GIL held.
type Guard struct {
	sym    *libpython.Symbols
	table  *Table
	conv   Converter
	logger *slog.Logger

	destructor uintptr
	trampoline uintptr

	defOnce sync.Once
	def     uintptr
	defErr  error
}

// New creates a Guard for sym. Its two C callbacks are created here, once.
func New(sym *libpython.Symbols, opts ...Option) *Guard {
	cfg := guardConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.converter == nil {
		cfg.converter = handleConverter{sym: sym}
	}

	g := &Guard{
		sym:    sym,
		table:  NewTable(),
		conv:   cfg.converter,
		logger: cfg.logger,
	}
	g.destructor = sym.NewCallback(g.onDestroy)
	g.trampoline = sym.NewCallback(g.onCall)
	return g
}

// Count returns the number of Go values currently kept alive for Python.
func (g *Guard) Count() int {
	return g.table.Count()
}

// Lookup returns the Go value guarded by a capsule returned by Register.
func (g *Guard) Lookup(wrapper libpython.Ptr) (any, bool) {
	if wrapper.IsNull() {
		return nil, false
	}
	token := g.sym.CapsuleGetPointer(wrapper.Addr(), 0)
	if token == 0 {
		g.sym.ErrClear()
		return nil, false
	}
	return g.table.Lookup(token)
}

// Register guards value and returns the owned PyCapsule that represents it.
// The value stays reachable until Python destroys the capsule.
func (g *Guard) Register(value any) (libpython.Ptr, error) {
	token := g.table.Insert(value)
	capsule := g.sym.FromOwned(g.sym.CapsuleNew(token, 0, g.destructor))
	if capsule.IsNull() {
		g.table.Evict(token)
		if err := g.sym.FetchError(); err != nil {
			return libpython.Null(), fmt.Errorf("create capsule: %w", err)
		}
		return libpython.Null(), fmt.Errorf("create capsule: failed")
	}
	g.logger.Debug("go value guarded", "token", token, "type", fmt.Sprintf("%T", value))
	return capsule, nil
}

// RegisterCallable wraps fn in a Python function. The function holds the
// only reference to fn's capsule, so fn is released when the function is.
func (g *Guard) RegisterCallable(fn Callable) (libpython.Ptr, error) {
	if fn == nil {
		return libpython.Null(), fmt.Errorf("register callable: nil function")
	}
	def, err := g.methodDef()
	if err != nil {
		return libpython.Null(), err
	}

	capsule, err := g.Register(fn)
	if err != nil {
		return libpython.Null(), err
	}
	defer capsule.Release()

	f := g.sym.FromOwned(g.sym.CFunctionNewEx(def, capsule.Addr(), 0))
	if f.IsNull() {
		if err := g.sym.FetchError(); err != nil {
			return libpython.Null(), fmt.Errorf("create function: %w", err)
		}
		return libpython.Null(), fmt.Errorf("create function: failed")
	}
	return f, nil
}

// methodDef allocates the shared PyMethodDef on first use. It lives for the
// rest of the process.
func (g *Guard) methodDef() (uintptr, error) {
	g.defOnce.Do(func() {
		name := g.cString(callableName)
		addr := g.sym.MemMalloc(unsafe.Sizeof(methodDef{}))
		if name == 0 || addr == 0 {
			g.defErr = fmt.Errorf("allocate method definition: out of memory")
			return
		}
		//nolint:gosec // G103: addr is a PyMem_Malloc block sized for methodDef
		def := (*methodDef)(unsafe.Pointer(addr))
		*def = methodDef{name: name, meth: g.trampoline, flags: methVarArgs}
		g.def = addr
	})
	return g.def, g.defErr
}

func (g *Guard) cString(s string) uintptr {
	addr := g.sym.MemMalloc(uintptr(len(s) + 1))
	if addr == 0 {
		return 0
	}
	//nolint:gosec // G103: addr is a PyMem_Malloc block of len(s)+1 bytes
	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(s)+1)
	copy(buf, s)
	buf[len(s)] = 0
	return addr
}

// onDestroy is the capsule destructor.
func (g *Guard) onDestroy(capsule uintptr) {
	token := g.sym.CapsuleGetPointer(capsule, 0)
	if token == 0 {
		g.sym.ErrClear()
		return
	}
	if g.table.Evict(token) {
		g.logger.Debug("go value released", "token", token)
	}
}

// onCall is the PyCFunction trampoline. self is the capsule, args the
// positional argument tuple. It returns a new reference, or 0 with a Python
// exception set.
func (g *Guard) onCall(self, args uintptr) (result uintptr) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("go callable panicked", "panic", r)
			g.raise(g.sym.Exceptions.RuntimeError, fmt.Sprintf("go callable panicked: %v", r))
			result = 0
		}
	}()

	token := g.sym.CapsuleGetPointer(self, 0)
	if token == 0 {
		return 0
	}
	value, ok := g.table.Lookup(token)
	if !ok {
		g.raise(g.sym.Exceptions.RuntimeError, "go callable is no longer registered")
		return 0
	}
	fn, ok := value.(Callable)
	if !ok {
		g.raise(g.sym.Exceptions.TypeError, fmt.Sprintf("guarded %T is not callable", value))
		return 0
	}

	goArgs, err := g.fromArgs(args)
	if err != nil {
		g.raise(g.sym.Exceptions.TypeError, err.Error())
		return 0
	}

	out, err := fn(goArgs)
	if err != nil {
		g.raise(g.sym.Exceptions.RuntimeError, err.Error())
		return 0
	}

	res, err := g.conv.ToPython(out)
	if err != nil {
		g.raise(g.sym.Exceptions.TypeError, err.Error())
		return 0
	}
	if res.IsNull() {
		res = g.sym.None()
	}
	return res.Steal()
}

func (g *Guard) fromArgs(args uintptr) ([]any, error) {
	if args == 0 {
		return nil, nil
	}
	n := g.sym.TupleSize(args)
	out := make([]any, n)
	for i := 0; i < n; i++ {
		item := g.sym.FromBorrowed(g.sym.TupleGetItem(args, i))
		v, err := g.conv.FromPython(item)
		item.Release()
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// raise sets a Python exception unless one is already pending.
func (g *Guard) raise(exc libpython.Ptr, msg string) {
	if g.sym.ErrOccurred() != 0 {
		return
	}
	g.sym.SetError(exc, msg)
}

// handleConverter passes Python handles through unconverted.
type handleConverter struct {
	sym *libpython.Symbols
}

func (c handleConverter) FromPython(p libpython.Ptr) (any, error) {
	return p.Duplicate(), nil
}

func (c handleConverter) ToPython(v any) (libpython.Ptr, error) {
	switch x := v.(type) {
	case nil:
		return c.sym.None(), nil
	case libpython.Ptr:
		return x.Duplicate(), nil
	}
	return libpython.Null(), fmt.Errorf("cannot convert %T to a python object", v)
}
