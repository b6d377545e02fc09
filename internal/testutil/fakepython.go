package testutil

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"github.com/reglet-dev/pybridge/domain/entities"
	"github.com/reglet-dev/pybridge/libpython"
)

// Program stands in for compiled Python source in FakePython. It returns a
// new reference (0 means None) or an error, which is raised in the fake
// interpreter. Return a *PyException to choose the exception type.
type Program func(f *FakePython, globals uintptr) (uintptr, error)

// Function is the body of a Python-level function defined with
// FakePython.NewFunction. args are borrowed; the result is a new reference.
type Function func(f *FakePython, args []uintptr) (uintptr, error)

// PyException is an error raised as a specific Python exception type.
type PyException struct {
	Type    string
	Message string
}

func (e *PyException) Error() string { return e.Type + ": " + e.Message }

type kind int

const (
	kindType kind = iota
	kindNone
	kindBool
	kindInt
	kindFloat
	kindStr
	kindTuple
	kindList
	kindDict
	kindCapsule
	kindCFunction
	kindFunction
	kindModule
	kindCode
)

type dictEntry struct {
	key, value uintptr
}

type object struct {
	kind   kind
	typ    uintptr
	refcnt int
	static bool

	name  string // type, module and function names
	i     int
	f     float64
	data  []byte // str and bytes payload, NUL terminated
	items []uintptr
	dict  []dictEntry
	attrs map[string]uintptr

	capsulePointer uintptr
	destructor     uintptr
	def, self      uintptr
	fn             Function
	code           string
}

// FakeOption configures a FakePython.
type FakeOption func(*FakePython)

// WithPython2 makes the fake export the Python 2 symbol flavor.
func WithPython2() FakeOption {
	return func(f *FakePython) {
		f.python2 = true
	}
}

// WithInitialized starts the fake with the interpreter already running, as
// when the host process embeds Python through other means.
func WithInitialized() FakeOption {
	return func(f *FakePython) {
		f.initialized = true
	}
}

// FakePython is an in-memory CPython double. It implements the functions of
// a bound symbol table over a map of fake objects, so code using
// libpython.Symbols can be tested without a Python installation.
//
// Object addresses are opaque integers and are never dereferenced. Memory
// returned by PyMem_Malloc and by the string accessors is real.
// The fake is not safe for concurrent use.
type FakePython struct {
	Sym *libpython.Symbols

	// InitializeCalls counts Py_InitializeEx calls.
	InitializeCalls int
	// SetArgvCalls counts PySys_SetArgvEx calls.
	SetArgvCalls int
	// SaveThreadCalls counts PyEval_SaveThread calls.
	SaveThreadCalls int
	// FailInitialize makes Py_InitializeEx leave the interpreter down.
	FailInitialize bool

	python2     bool
	initialized bool
	gil         gil

	objects   map[uintptr]*object
	nextAddr  uintptr
	callbacks map[uintptr]any
	memory    map[uintptr][]byte
	modules   map[string]uintptr
	programs  map[string]Program
	excTypes  map[string]uintptr

	errType, errValue uintptr

	none, trueObj, falseObj uintptr
	types                   struct {
		typ, intT, longT, boolT, floatT, complexT, unicodeT, stringT uintptr
		list, tuple, dict, set, function, method, capsule, cfunc     uintptr
		module, code, noneT                                          uintptr
	}
}

// NewFakePython builds a fake interpreter and its symbol table.
func NewFakePython(opts ...FakeOption) *FakePython {
	f := &FakePython{
		objects:   make(map[uintptr]*object),
		nextAddr:  0x10000,
		callbacks: make(map[uintptr]any),
		memory:    make(map[uintptr][]byte),
		modules:   make(map[string]uintptr),
		programs:  make(map[string]Program),
		excTypes:  make(map[string]uintptr),
	}
	for _, opt := range opts {
		opt(f)
	}

	t := &f.types
	t.typ = f.newType("type")
	t.intT = f.newType("int")
	t.longT = t.intT
	if f.python2 {
		t.longT = f.newType("long")
	}
	t.boolT = f.newType("bool")
	t.floatT = f.newType("float")
	t.complexT = f.newType("complex")
	t.unicodeT = f.newType("str")
	t.stringT = f.newType("bytes")
	if f.python2 {
		f.objects[t.unicodeT].name = "unicode"
		f.objects[t.stringT].name = "str"
	}
	t.list = f.newType("list")
	t.tuple = f.newType("tuple")
	t.dict = f.newType("dict")
	t.set = f.newType("set")
	t.function = f.newType("function")
	t.method = f.newType("method")
	t.capsule = f.newType("PyCapsule")
	t.cfunc = f.newType("builtin_function_or_method")
	t.module = f.newType("module")
	t.code = f.newType("code")
	t.noneT = f.newType("NoneType")

	f.none = f.newStatic(&object{kind: kindNone, typ: t.noneT})
	f.falseObj = f.newStatic(&object{kind: kindBool, typ: t.boolT, i: 0})
	f.trueObj = f.newStatic(&object{kind: kindBool, typ: t.boolT, i: 1})

	for _, name := range []string{
		"RuntimeError", "TypeError", "ValueError", "ImportError", "SyntaxError",
		"AttributeError", "IndexError", "KeyError", "NameError", "ZeroDivisionError",
	} {
		f.excTypes[name] = f.newType(name)
	}

	if f.python2 {
		f.DefineModule("__builtin__")
	} else {
		f.DefineModule("builtins")
	}
	f.DefineModule("__main__")
	traceback := f.DefineModule("traceback")
	format := f.NewFunction("format_exception", formatException)
	f.SetModuleAttr(traceback, "format_exception", format)
	f.DecRef(format)

	f.Sym = f.buildSymbols()
	return f
}

func (f *FakePython) exports(name string) bool {
	if f.python2 {
		switch {
		case strings.HasPrefix(name, "PyBytes_"),
			name == "PyUnicode_DecodeUTF8", name == "PyUnicode_AsUTF8String":
			return false
		}
		return true
	}
	switch {
	case strings.HasPrefix(name, "PyInt_"),
		strings.HasPrefix(name, "PyString_"),
		strings.HasPrefix(name, "PyUnicodeUCS"):
		return false
	}
	return true
}

func (f *FakePython) buildSymbols() *libpython.Symbols {
	selection, err := libpython.SelectSymbols(f.exports)
	if err != nil {
		panic(fmt.Sprintf("fake python: %v", err))
	}
	version := entities.Version{Raw: "3.11.4", Major: 3, Minor: 11, Micro: 4}
	if f.python2 {
		version = entities.Version{Raw: "2.7.18", Major: 2, Minor: 7, Micro: 18}
	}
	s := libpython.NewSymbols("libpython-fake", version, selection)

	t := f.types
	s.NoneStruct = f.none
	s.Types = libpython.TypeTable{
		Type: s.FromOwned(t.typ), Int: s.FromOwned(t.intT), Long: s.FromOwned(t.longT),
		Bool: s.FromOwned(t.boolT), Float: s.FromOwned(t.floatT), Complex: s.FromOwned(t.complexT),
		Unicode: s.FromOwned(t.unicodeT), String: s.FromOwned(t.stringT), List: s.FromOwned(t.list),
		Tuple: s.FromOwned(t.tuple), Dict: s.FromOwned(t.dict), Set: s.FromOwned(t.set),
		Function: s.FromOwned(t.function), Method: s.FromOwned(t.method),
	}
	s.Exceptions = libpython.ExceptionTable{
		RuntimeError: s.FromOwned(f.excTypes["RuntimeError"]),
		TypeError:    s.FromOwned(f.excTypes["TypeError"]),
	}

	s.GetVersion = func() string { return s.Version().Raw + " (fake)" }
	s.InitializeEx = func(int32) {
		f.InitializeCalls++
		if !f.FailInitialize {
			f.initialized = true
		}
	}
	s.IsInitialized = func() int32 { return boolInt32(f.initialized) }
	s.SetArgvEx = func(int32, uintptr, int32) { f.SetArgvCalls++ }
	s.GILStateEnsure = f.gil.ensure
	s.GILStateRelease = f.gil.release
	s.SaveThread = func() uintptr {
		f.SaveThreadCalls++
		return 0xfeed
	}
	s.RestoreThread = func(uintptr) {}

	s.IncRef = f.IncRef
	s.DecRef = f.DecRef
	s.RefCnt = f.RefCount

	s.GetAttrString = f.getAttr
	s.SetAttrString = f.setAttr
	s.Call = f.call
	s.IsInstance = func(obj, typ uintptr) int32 { return boolInt32(f.isInstance(obj, typ)) }
	s.RichCompareBool = f.richCompare
	s.Repr = func(obj uintptr) uintptr { return f.NewStr(f.repr(obj)) }
	s.Str = func(obj uintptr) uintptr { return f.NewStr(f.str(obj)) }
	s.CallableCheck = func(obj uintptr) int32 {
		k := f.get(obj).kind
		return boolInt32(k == kindCFunction || k == kindFunction || k == kindType)
	}

	s.BoolFromLong = func(v int) uintptr { return f.NewBool(v != 0) }
	s.IntFromSsize = f.NewInt
	s.IntAsSsize = func(obj uintptr) int {
		o := f.get(obj)
		if o.kind != kindInt && o.kind != kindBool {
			f.Raise("TypeError", "an integer is required")
			return -1
		}
		return o.i
	}
	s.FloatFromDouble = f.NewFloat
	s.FloatAsDouble = func(obj uintptr) float64 {
		o := f.get(obj)
		switch o.kind {
		case kindFloat:
			return o.f
		case kindInt, kindBool:
			return float64(o.i)
		}
		f.Raise("TypeError", "must be real number")
		return -1
	}

	s.BytesFromStringAndSize = func(p *byte, n int) uintptr {
		return f.newString(f.types.stringT, copyC(p, n))
	}
	s.BytesAsStringAndSize = func(obj uintptr, p *uintptr, n *int) int32 {
		o := f.get(obj)
		if o.kind != kindStr || o.typ != f.types.stringT {
			f.Raise("TypeError", "expected bytes")
			return -1
		}
		*p = uintptr(unsafe.Pointer(&o.data[0]))
		*n = len(o.data) - 1
		return 0
	}
	s.UnicodeDecodeUTF8 = func(p *byte, n int, _ *byte) uintptr {
		return f.newString(f.types.unicodeT, copyC(p, n))
	}
	s.UnicodeAsUTF8String = func(obj uintptr) uintptr {
		o := f.get(obj)
		if o.kind != kindStr || o.typ != f.types.unicodeT {
			f.Raise("TypeError", "expected str")
			return 0
		}
		return f.newString(f.types.stringT, o.data[:len(o.data)-1])
	}

	s.TupleNew = func(n int) uintptr {
		return f.alloc(&object{kind: kindTuple, typ: f.types.tuple, items: make([]uintptr, n)})
	}
	s.TupleSize = func(t uintptr) int { return len(f.get(t).items) }
	s.TupleGetItem = f.getItem
	s.TupleSetItem = f.setItem
	s.ListNew = func(n int) uintptr {
		return f.alloc(&object{kind: kindList, typ: f.types.list, items: make([]uintptr, n)})
	}
	s.ListSize = func(l uintptr) int { return len(f.get(l).items) }
	s.ListGetItem = f.getItem
	s.ListSetItem = f.setItem
	s.ListAppend = func(l, v uintptr) int32 {
		f.IncRef(v)
		o := f.get(l)
		o.items = append(o.items, v)
		return 0
	}
	s.DictNew = f.NewDict
	s.DictSize = func(d uintptr) int { return len(f.get(d).dict) }
	s.DictSetItem = func(d, k, v uintptr) int32 {
		f.DictSet(d, k, v)
		return 0
	}
	s.DictGetItemString = func(d uintptr, key string) uintptr {
		k := f.NewStr(key)
		defer f.DecRef(k)
		return f.DictGet(d, k)
	}
	s.DictSetItemString = func(d uintptr, key string, v uintptr) int32 {
		k := f.NewStr(key)
		defer f.DecRef(k)
		f.DictSet(d, k, v)
		return 0
	}
	s.DictNext = func(d uintptr, pos *int, k, v *uintptr) int32 {
		o := f.get(d)
		if *pos >= len(o.dict) {
			return 0
		}
		e := o.dict[*pos]
		*pos++
		*k, *v = e.key, e.value
		return 1
	}

	s.ModuleGetDict = func(m uintptr) uintptr { return f.get(m).attrs["__dict__"] }
	s.ImportModule = func(name string) uintptr {
		m, ok := f.modules[name]
		if !ok {
			f.Raise("ImportError", fmt.Sprintf("No module named '%s'", name))
			return 0
		}
		f.IncRef(m)
		return m
	}
	s.CompileString = func(src, _ string, _ int32) uintptr {
		if _, ok := f.programs[src]; !ok {
			f.Raise("SyntaxError", "invalid syntax")
			return 0
		}
		return f.alloc(&object{kind: kindCode, typ: f.types.code, code: src})
	}
	s.EvalCode = func(code, globals, _ uintptr) uintptr {
		program := f.programs[f.get(code).code]
		res, err := program(f, globals)
		if err != nil {
			f.raiseError(err)
			return 0
		}
		if res == 0 {
			return f.None()
		}
		return res
	}

	s.CapsuleNew = func(pointer, _, destructor uintptr) uintptr {
		if pointer == 0 {
			f.Raise("ValueError", "PyCapsule_New called with null pointer")
			return 0
		}
		return f.alloc(&object{kind: kindCapsule, typ: f.types.capsule, capsulePointer: pointer, destructor: destructor})
	}
	s.CapsuleGetPointer = func(capsule, _ uintptr) uintptr {
		o, ok := f.objects[capsule]
		if !ok || o.kind != kindCapsule {
			f.Raise("ValueError", "PyCapsule_GetPointer called with invalid PyCapsule object")
			return 0
		}
		return o.capsulePointer
	}
	s.CFunctionNewEx = func(def, self, _ uintptr) uintptr {
		if self != 0 {
			f.IncRef(self)
		}
		return f.alloc(&object{kind: kindCFunction, typ: f.types.cfunc, def: def, self: self})
	}
	s.MemMalloc = func(n uintptr) uintptr {
		if n == 0 {
			n = 1
		}
		buf := make([]byte, n)
		addr := uintptr(unsafe.Pointer(&buf[0]))
		f.memory[addr] = buf
		return addr
	}

	s.ErrOccurred = func() uintptr { return f.errType }
	s.ErrFetch = func(t, v, tb *uintptr) {
		*t, *v, *tb = f.errType, f.errValue, 0
		f.errType, f.errValue = 0, 0
	}
	s.ErrNormalizeException = func(_, _, _ *uintptr) {}
	s.ErrRestore = func(t, v, _ uintptr) {
		f.clearError()
		f.errType, f.errValue = t, v
	}
	s.ErrClear = f.clearError
	s.ErrSetString = func(t uintptr, msg string) {
		f.clearError()
		f.IncRef(t)
		f.errType, f.errValue = t, f.NewStr(msg)
	}

	s.NewCallback = func(fn any) uintptr {
		addr := f.nextAddress()
		f.callbacks[addr] = fn
		return addr
	}
	return s
}

// Object management.

func (f *FakePython) nextAddress() uintptr {
	addr := f.nextAddr
	f.nextAddr += 0x10
	return addr
}

func (f *FakePython) alloc(o *object) uintptr {
	o.refcnt = 1
	addr := f.nextAddress()
	f.objects[addr] = o
	return addr
}

func (f *FakePython) newStatic(o *object) uintptr {
	addr := f.alloc(o)
	o.static = true
	o.refcnt = 1 << 20
	return addr
}

func (f *FakePython) newType(name string) uintptr {
	return f.newStatic(&object{kind: kindType, typ: f.types.typ, name: name})
}

func (f *FakePython) get(addr uintptr) *object {
	o, ok := f.objects[addr]
	if !ok {
		panic(fmt.Sprintf("fake python: access to dead or unknown object %#x", addr))
	}
	return o
}

// IncRef increments the reference count of addr.
func (f *FakePython) IncRef(addr uintptr) {
	f.get(addr).refcnt++
}

// DecRef decrements the reference count of addr and destroys it at zero.
func (f *FakePython) DecRef(addr uintptr) {
	o := f.get(addr)
	o.refcnt--
	if o.refcnt > 0 || o.static {
		return
	}

	if o.kind == kindCapsule && o.destructor != 0 {
		f.callbacks[o.destructor].(func(uintptr))(addr)
	}
	delete(f.objects, addr)

	for _, item := range o.items {
		if item != 0 {
			f.DecRef(item)
		}
	}
	for _, e := range o.dict {
		f.DecRef(e.key)
		f.DecRef(e.value)
	}
	for _, v := range o.attrs {
		f.DecRef(v)
	}
	if o.self != 0 {
		f.DecRef(o.self)
	}
}

// RefCount returns the reference count of a live object.
func (f *FakePython) RefCount(addr uintptr) int {
	return f.get(addr).refcnt
}

// Alive reports whether addr is a live object.
func (f *FakePython) Alive(addr uintptr) bool {
	_, ok := f.objects[addr]
	return ok
}

// Live returns the number of live non-static objects.
func (f *FakePython) Live() int {
	n := 0
	for _, o := range f.objects {
		if !o.static {
			n++
		}
	}
	return n
}

// GILDepth returns how many PyGILState_Ensure calls are outstanding.
func (f *FakePython) GILDepth() int {
	return f.gil.level()
}

// gil is a reentrant lock owned by one goroutine at a time, like the
// interpreter lock for threads that use PyGILState_Ensure.
type gil struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64
	depth int
}

func (g *gil) ensure() int32 {
	id := goid()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cond == nil {
		g.cond = sync.NewCond(&g.mu)
	}
	for g.depth > 0 && g.owner != id {
		g.cond.Wait()
	}
	g.owner = id
	g.depth++
	if g.depth == 1 {
		return 1
	}
	return 0
}

func (g *gil) release(int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.depth--
	if g.depth == 0 {
		g.owner = 0
		if g.cond != nil {
			g.cond.Broadcast()
		}
	}
}

func (g *gil) level() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth
}

// goid parses the current goroutine id from its stack header,
// "goroutine 42 [running]:".
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseUint(field, 10, 64)
	return id
}

// Constructors. All return new references.

// None returns a new reference to None.
func (f *FakePython) None() uintptr {
	f.IncRef(f.none)
	return f.none
}

// NewBool returns True or False.
func (f *FakePython) NewBool(v bool) uintptr {
	addr := f.falseObj
	if v {
		addr = f.trueObj
	}
	f.IncRef(addr)
	return addr
}

// NewInt creates an int.
func (f *FakePython) NewInt(v int) uintptr {
	return f.alloc(&object{kind: kindInt, typ: f.types.intT, i: v})
}

// NewFloat creates a float.
func (f *FakePython) NewFloat(v float64) uintptr {
	return f.alloc(&object{kind: kindFloat, typ: f.types.floatT, f: v})
}

// NewStr creates a text string.
func (f *FakePython) NewStr(v string) uintptr {
	typ := f.types.unicodeT
	if f.python2 {
		typ = f.types.stringT
	}
	return f.newString(typ, []byte(v))
}

// NewBytes creates a bytes object.
func (f *FakePython) NewBytes(v []byte) uintptr {
	return f.newString(f.types.stringT, v)
}

func (f *FakePython) newString(typ uintptr, v []byte) uintptr {
	data := make([]byte, len(v)+1)
	copy(data, v)
	return f.alloc(&object{kind: kindStr, typ: typ, data: data})
}

// NewTuple creates a tuple, taking new references to items.
func (f *FakePython) NewTuple(items ...uintptr) uintptr {
	for _, it := range items {
		f.IncRef(it)
	}
	return f.alloc(&object{kind: kindTuple, typ: f.types.tuple, items: append([]uintptr(nil), items...)})
}

// NewList creates a list, taking new references to items.
func (f *FakePython) NewList(items ...uintptr) uintptr {
	for _, it := range items {
		f.IncRef(it)
	}
	return f.alloc(&object{kind: kindList, typ: f.types.list, items: append([]uintptr(nil), items...)})
}

// NewDict creates an empty dict.
func (f *FakePython) NewDict() uintptr {
	return f.alloc(&object{kind: kindDict, typ: f.types.dict})
}

// NewFunction creates a Python-level function backed by fn.
func (f *FakePython) NewFunction(name string, fn Function) uintptr {
	return f.alloc(&object{kind: kindFunction, typ: f.types.function, name: name, fn: fn})
}

// DictSet stores key and value in d, taking new references.
func (f *FakePython) DictSet(d, key, value uintptr) {
	o := f.get(d)
	f.IncRef(key)
	f.IncRef(value)
	for i, e := range o.dict {
		if f.equal(e.key, key) {
			f.DecRef(e.key)
			f.DecRef(e.value)
			o.dict[i] = dictEntry{key: key, value: value}
			return
		}
	}
	o.dict = append(o.dict, dictEntry{key: key, value: value})
}

// DictGet returns a borrowed reference to d[key], or 0.
func (f *FakePython) DictGet(d, key uintptr) uintptr {
	for _, e := range f.get(d).dict {
		if f.equal(e.key, key) {
			return e.value
		}
	}
	return 0
}

// DefineModule registers an importable module and returns it (borrowed).
func (f *FakePython) DefineModule(name string) uintptr {
	dict := f.NewDict()
	nameObj := f.NewStr(name)
	f.DictSet(dict, f.internKey("__name__"), nameObj)
	f.DecRef(nameObj)
	m := f.newStatic(&object{kind: kindModule, typ: f.types.module, name: name, attrs: map[string]uintptr{"__dict__": dict}})
	f.get(dict).static = true
	f.modules[name] = m
	return m
}

// SetModuleAttr sets an attribute of a module, taking a new reference.
func (f *FakePython) SetModuleAttr(module uintptr, name string, value uintptr) {
	key := f.NewStr(name)
	f.DictSet(f.get(module).attrs["__dict__"], key, value)
	f.DecRef(key)
}

// Module returns a registered module (borrowed) or 0.
func (f *FakePython) Module(name string) uintptr {
	return f.modules[name]
}

// DefineProgram makes src compile to program.
func (f *FakePython) DefineProgram(src string, program Program) {
	f.programs[src] = program
}

func (f *FakePython) internKey(s string) uintptr {
	key := f.NewStr(s)
	f.get(key).static = true
	return key
}

// Values.

// Value returns the Go value of a scalar, string or sequence object.
func (f *FakePython) Value(addr uintptr) any {
	o := f.get(addr)
	switch o.kind {
	case kindNone:
		return nil
	case kindBool:
		return o.i != 0
	case kindInt:
		return o.i
	case kindFloat:
		return o.f
	case kindStr:
		if o.typ == f.types.stringT && !f.python2 {
			return append([]byte(nil), o.data[:len(o.data)-1]...)
		}
		return string(o.data[:len(o.data)-1])
	case kindTuple, kindList:
		out := make([]any, len(o.items))
		for i, it := range o.items {
			out[i] = f.Value(it)
		}
		return out
	}
	return o
}

// Errors.

// Raise sets the pending exception to typeName(msg).
func (f *FakePython) Raise(typeName, msg string) {
	typ, ok := f.excTypes[typeName]
	if !ok {
		typ = f.newType(typeName)
		f.excTypes[typeName] = typ
	}
	f.clearError()
	f.IncRef(typ)
	f.errType, f.errValue = typ, f.NewStr(msg)
}

func (f *FakePython) raiseError(err error) {
	if pe, ok := err.(*PyException); ok {
		f.Raise(pe.Type, pe.Message)
		return
	}
	f.Raise("RuntimeError", err.Error())
}

// PendingError returns the type name and message of the pending exception.
func (f *FakePython) PendingError() (string, string, bool) {
	if f.errType == 0 {
		return "", "", false
	}
	msg := ""
	if f.errValue != 0 {
		msg = f.str(f.errValue)
	}
	return f.get(f.errType).name, msg, true
}

func (f *FakePython) clearError() {
	if f.errType != 0 {
		f.DecRef(f.errType)
	}
	if f.errValue != 0 {
		f.DecRef(f.errValue)
	}
	f.errType, f.errValue = 0, 0
}

// Protocol implementations.

func (f *FakePython) isInstance(obj, typ uintptr) bool {
	o := f.get(obj)
	if o.typ == typ {
		return true
	}
	return o.typ == f.types.boolT && typ == f.types.intT
}

func (f *FakePython) getAttr(obj uintptr, name string) uintptr {
	o := f.get(obj)
	switch {
	case o.kind == kindModule:
		key := f.NewStr(name)
		v := f.DictGet(o.attrs["__dict__"], key)
		f.DecRef(key)
		if v != 0 {
			f.IncRef(v)
			return v
		}
	case o.kind == kindType && name == "__name__":
		return f.NewStr(o.name)
	default:
		if v, ok := o.attrs[name]; ok {
			f.IncRef(v)
			return v
		}
	}
	f.Raise("AttributeError", fmt.Sprintf("object has no attribute '%s'", name))
	return 0
}

func (f *FakePython) setAttr(obj uintptr, name string, value uintptr) int32 {
	o := f.get(obj)
	if o.kind == kindModule {
		f.SetModuleAttr(obj, name, value)
		return 0
	}
	if o.attrs == nil {
		o.attrs = make(map[string]uintptr)
	}
	f.IncRef(value)
	if old, ok := o.attrs[name]; ok {
		f.DecRef(old)
	}
	o.attrs[name] = value
	return 0
}

func (f *FakePython) call(callable, args, _ uintptr) uintptr {
	o := f.get(callable)
	switch o.kind {
	case kindCFunction:
		//nolint:gosec // G103: def points to PyMethodDef memory from MemMalloc
		meth := *(*uintptr)(unsafe.Pointer(o.def + unsafe.Sizeof(uintptr(0))))
		fn, ok := f.callbacks[meth].(func(uintptr, uintptr) uintptr)
		if !ok {
			panic("fake python: C function without a registered callback")
		}
		return fn(o.self, args)
	case kindFunction:
		res, err := o.fn(f, f.get(args).items)
		if err != nil {
			f.raiseError(err)
			return 0
		}
		if res == 0 {
			return f.None()
		}
		return res
	}
	f.Raise("TypeError", fmt.Sprintf("'%s' object is not callable", f.get(o.typ).name))
	return 0
}

func (f *FakePython) getItem(seq uintptr, i int) uintptr {
	o := f.get(seq)
	if i < 0 || i >= len(o.items) {
		f.Raise("IndexError", "index out of range")
		return 0
	}
	return o.items[i]
}

func (f *FakePython) setItem(seq uintptr, i int, v uintptr) int32 {
	o := f.get(seq)
	if i < 0 || i >= len(o.items) {
		if v != 0 {
			f.DecRef(v)
		}
		f.Raise("IndexError", "assignment index out of range")
		return -1
	}
	if old := o.items[i]; old != 0 {
		f.DecRef(old)
	}
	o.items[i] = v
	return 0
}

func (f *FakePython) richCompare(a, b uintptr, op int32) int32 {
	eq := f.equal(a, b)
	switch op {
	case libpython.CompareEQ:
		return boolInt32(eq)
	case libpython.CompareNE:
		return boolInt32(!eq)
	}
	f.Raise("TypeError", "ordering comparison not supported")
	return -1
}

func (f *FakePython) equal(a, b uintptr) bool {
	if a == b {
		return true
	}
	x, y := f.get(a), f.get(b)
	switch {
	case isNumber(x) && isNumber(y):
		return x.number() == y.number()
	case x.kind == kindStr && y.kind == kindStr:
		return x.typ == y.typ && bytes.Equal(x.data, y.data)
	}
	return false
}

func isNumber(o *object) bool {
	return o.kind == kindInt || o.kind == kindBool || o.kind == kindFloat
}

func (o *object) number() float64 {
	if o.kind == kindFloat {
		return o.f
	}
	return float64(o.i)
}

func (f *FakePython) str(addr uintptr) string {
	o := f.get(addr)
	switch o.kind {
	case kindStr:
		if o.typ == f.types.stringT && !f.python2 {
			return f.repr(addr)
		}
		return string(o.data[:len(o.data)-1])
	}
	return f.repr(addr)
}

func (f *FakePython) repr(addr uintptr) string {
	o := f.get(addr)
	switch o.kind {
	case kindNone:
		return "None"
	case kindBool:
		if o.i != 0 {
			return "True"
		}
		return "False"
	case kindInt:
		return strconv.Itoa(o.i)
	case kindFloat:
		s := strconv.FormatFloat(o.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eN") {
			s += ".0"
		}
		return s
	case kindStr:
		body := string(o.data[:len(o.data)-1])
		if o.typ == f.types.stringT && !f.python2 {
			return "b'" + body + "'"
		}
		return "'" + body + "'"
	case kindTuple, kindList:
		parts := make([]string, len(o.items))
		for i, it := range o.items {
			parts[i] = f.repr(it)
		}
		if o.kind == kindList {
			return "[" + strings.Join(parts, ", ") + "]"
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case kindDict:
		parts := make([]string, len(o.dict))
		for i, e := range o.dict {
			parts[i] = f.repr(e.key) + ": " + f.repr(e.value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case kindType:
		return fmt.Sprintf("<class '%s'>", o.name)
	case kindModule:
		return fmt.Sprintf("<module '%s'>", o.name)
	case kindFunction:
		return fmt.Sprintf("<function %s>", o.name)
	}
	return fmt.Sprintf("<%s object at %#x>", f.get(o.typ).name, addr)
}

func formatException(f *FakePython, args []uintptr) (uintptr, error) {
	line := "Traceback (most recent call last):\n"
	if len(args) >= 2 && args[0] != f.none {
		line += f.get(args[0]).name
		if args[1] != f.none {
			line += ": " + f.str(args[1])
		}
		line += "\n"
	}
	text := f.NewStr(line)
	defer f.DecRef(text)
	return f.NewList(text), nil
}

func copyC(p *byte, n int) []byte {
	if n == 0 || p == nil {
		return nil
	}
	return append([]byte(nil), unsafe.Slice(p, n)...)
}

func boolInt32(v bool) int32 {
	if v {
		return 1
	}
	return 0
}
