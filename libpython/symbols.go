// Package libpython locates the CPython shared library, binds its C API and
// wraps Python object addresses in reference-counted handles.
//
// Resolution runs once at startup:
//
//	sym, err := libpython.Resolve(ctx)
//	if err != nil {
//	    return err // *errors.ResolutionError
//	}
//
// The returned *Symbols is the bound symbol table. Every logical name in it
// maps to exactly one concrete C symbol, chosen from the version-dependent
// alternatives the library exports. It must not be modified afterwards.
package libpython

import (
	"unsafe"

	"github.com/reglet-dev/pybridge/domain/entities"
)

// Start symbols for CompileString.
const (
	SingleInput int32 = 256
	FileInput   int32 = 257
	EvalInput   int32 = 258
)

// Rich comparison opcodes.
const (
	CompareLT int32 = iota
	CompareLE
	CompareEQ
	CompareNE
	CompareGT
	CompareGE
)

// TypeTable holds the builtin type objects. They are static objects owned by
// the interpreter; the handles are borrowed and must not be released.
type TypeTable struct {
	Type     Ptr
	Int      Ptr // int on Python 2, int (PyLong) otherwise
	Long     Ptr
	Bool     Ptr
	Float    Ptr
	Complex  Ptr
	Unicode  Ptr
	String   Ptr // 8-bit string type: str on Python 2, bytes otherwise
	List     Ptr
	Tuple    Ptr
	Dict     Ptr
	Set      Ptr
	Function Ptr
	Method   Ptr
}

// ExceptionTable holds builtin exception classes (borrowed).
type ExceptionTable struct {
	RuntimeError Ptr
	TypeError    Ptr
}

// Symbols is the bound symbol table.
//
// Function fields are named by logical operation, not by C symbol; see
// Selection for the concrete names. Py_ssize_t maps to int and C long to int,
// which restricts the bridge to LP64 platforms.
type Symbols struct {
	library   string
	version   entities.Version
	flavor    entities.Flavor
	selection map[string]string

	Types      TypeTable
	Exceptions ExceptionTable

	// NoneStruct is the address of the None singleton.
	NoneStruct uintptr

	// Interpreter lifecycle.
	GetVersion      func() string
	InitializeEx    func(initsigs int32)
	IsInitialized   func() int32
	SetArgvEx       func(argc int32, argv uintptr, updatepath int32) // optional
	GILStateEnsure  func() int32
	GILStateRelease func(state int32)
	SaveThread      func() uintptr
	RestoreThread   func(tstate uintptr)

	// Reference counting. RefCnt is not a C symbol: it reads ob_refcnt.
	IncRef func(obj uintptr)
	DecRef func(obj uintptr)
	RefCnt func(obj uintptr) int

	// Object protocol.
	GetAttrString   func(obj uintptr, name string) uintptr
	SetAttrString   func(obj uintptr, name string, value uintptr) int32
	Call            func(callable, args, kwargs uintptr) uintptr
	IsInstance      func(obj, typ uintptr) int32
	RichCompareBool func(a, b uintptr, op int32) int32
	Repr            func(obj uintptr) uintptr
	Str             func(obj uintptr) uintptr
	CallableCheck   func(obj uintptr) int32

	// Numbers.
	BoolFromLong    func(v int) uintptr
	IntFromSsize    func(v int) uintptr
	IntAsSsize      func(obj uintptr) int
	FloatFromDouble func(v float64) uintptr
	FloatAsDouble   func(obj uintptr) float64

	// Strings.
	BytesFromStringAndSize func(s *byte, n int) uintptr
	BytesAsStringAndSize   func(obj uintptr, s *uintptr, n *int) int32
	UnicodeDecodeUTF8      func(s *byte, n int, errors *byte) uintptr
	UnicodeAsUTF8String    func(obj uintptr) uintptr

	// Containers. GetItem results are borrowed; SetItem steals the value.
	TupleNew          func(n int) uintptr
	TupleSize         func(t uintptr) int
	TupleGetItem      func(t uintptr, i int) uintptr
	TupleSetItem      func(t uintptr, i int, v uintptr) int32
	ListNew           func(n int) uintptr
	ListSize          func(l uintptr) int
	ListGetItem       func(l uintptr, i int) uintptr
	ListSetItem       func(l uintptr, i int, v uintptr) int32
	ListAppend        func(l, v uintptr) int32
	DictNew           func() uintptr
	DictSize          func(d uintptr) int
	DictSetItem       func(d, k, v uintptr) int32
	DictGetItemString func(d uintptr, key string) uintptr
	DictSetItemString func(d uintptr, key string, v uintptr) int32
	DictNext          func(d uintptr, pos *int, key, value *uintptr) int32

	// Modules and code.
	ModuleGetDict func(m uintptr) uintptr
	ImportModule  func(name string) uintptr
	CompileString func(src, filename string, start int32) uintptr
	EvalCode      func(code, globals, locals uintptr) uintptr

	// Wrappers for Go values.
	CapsuleNew        func(pointer, name, destructor uintptr) uintptr
	CapsuleGetPointer func(capsule, name uintptr) uintptr
	CFunctionNewEx    func(def, self, module uintptr) uintptr
	MemMalloc         func(n uintptr) uintptr

	// Error state.
	ErrOccurred           func() uintptr
	ErrFetch              func(typ, value, tb *uintptr)
	ErrNormalizeException func(typ, value, tb *uintptr)
	ErrRestore            func(typ, value, tb uintptr)
	ErrClear              func()
	ErrSetString          func(typ uintptr, msg string)

	// NewCallback turns a Go function into a C function pointer.
	NewCallback func(fn any) uintptr
}

// NewSymbols returns an empty table carrying binding metadata. Resolve fills
// it from a loaded library; test doubles fill the function fields directly.
func NewSymbols(library string, version entities.Version, selection map[string]string) *Symbols {
	sel := make(map[string]string, len(selection))
	for k, v := range selection {
		sel[k] = v
	}
	return &Symbols{
		library:   library,
		version:   version,
		flavor:    flavorOf(sel),
		selection: sel,
	}
}

// Library returns the path of the loaded libpython.
func (s *Symbols) Library() string { return s.library }

// Version returns the version reported by the investigator.
func (s *Symbols) Version() entities.Version { return s.version }

// Flavor returns the version-dependent choices made while binding.
func (s *Symbols) Flavor() entities.Flavor { return s.flavor }

// Selection returns a copy of the logical to concrete symbol mapping.
func (s *Symbols) Selection() map[string]string {
	out := make(map[string]string, len(s.selection))
	for k, v := range s.selection {
		out[k] = v
	}
	return out
}

// static wraps the address of an interpreter-owned static object.
func (s *Symbols) static(addr uintptr) Ptr {
	if addr == 0 {
		return Ptr{}
	}
	return Ptr{addr: addr, sym: s}
}

// IsPython2 reports whether the bound runtime is a Python 2 build.
func (s *Symbols) IsPython2() bool {
	if s.version.Major != 0 {
		return s.version.Major < 3
	}
	return s.flavor.HasIntType
}

// BuiltinsModule returns the name of the builtins module.
func (s *Symbols) BuiltinsModule() string {
	if s.IsPython2() {
		return "__builtin__"
	}
	return "builtins"
}

// readRefcnt reads ob_refcnt, the first field of every PyObject in builds
// without Py_TRACE_REFS.
func readRefcnt(obj uintptr) int {
	//nolint:gosec // G103: obj is a live PyObject address
	return *(*int)(unsafe.Pointer(obj))
}

// derefAddr reads a PyObject* global variable.
func derefAddr(addr uintptr) uintptr {
	//nolint:gosec // G103: addr is the address of a PyObject* variable exported by libpython
	return *(*uintptr)(unsafe.Pointer(addr))
}
