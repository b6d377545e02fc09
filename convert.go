package pybridge

import (
	"fmt"
	"math"
	"reflect"

	"github.com/reglet-dev/pybridge/gcguard"
	"github.com/reglet-dev/pybridge/libpython"
)

var _ gcguard.Converter = (*Bridge)(nil)

// ToPython converts a Go value to a new Python reference. It must run
// inside Do.
//
// Supported: nil, bool, integers, floats, string, []byte, slices (as
// lists), maps with string keys (as dicts), libpython.Ptr (a new reference
// to the same object) and functions. Functions become Python callables kept
// alive by the guard; typed functions are adapted with gcguard.Func.
func (b *Bridge) ToPython(v any) (libpython.Ptr, error) {
	sym := b.sym
	switch x := v.(type) {
	case nil:
		return sym.None(), nil
	case libpython.Ptr:
		if x.IsNull() {
			return sym.None(), nil
		}
		return x.Duplicate(), nil
	case bool:
		return b.owned(sym.BoolFromLong(boolInt(x)), "bool")
	case int:
		return b.owned(sym.IntFromSsize(x), "int")
	case int8:
		return b.owned(sym.IntFromSsize(int(x)), "int")
	case int16:
		return b.owned(sym.IntFromSsize(int(x)), "int")
	case int32:
		return b.owned(sym.IntFromSsize(int(x)), "int")
	case int64:
		return b.owned(sym.IntFromSsize(int(x)), "int")
	case uint8:
		return b.owned(sym.IntFromSsize(int(x)), "int")
	case uint16:
		return b.owned(sym.IntFromSsize(int(x)), "int")
	case uint32:
		return b.owned(sym.IntFromSsize(int(x)), "int")
	case uint:
		return b.fromUint(uint64(x))
	case uint64:
		return b.fromUint(x)
	case float32:
		return b.owned(sym.FloatFromDouble(float64(x)), "float")
	case float64:
		return b.owned(sym.FloatFromDouble(x), "float")
	case string:
		return sym.NewString(x)
	case []byte:
		return sym.NewBytes(x)
	case gcguard.Callable:
		return b.guard.RegisterCallable(x)
	case func([]any) (any, error):
		return b.guard.RegisterCallable(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		c, err := gcguard.Func(v)
		if err != nil {
			return libpython.Null(), err
		}
		return b.guard.RegisterCallable(c)
	case reflect.Slice, reflect.Array:
		return b.list(rv)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return b.dict(rv)
		}
	case reflect.Pointer:
		if rv.IsNil() {
			return sym.None(), nil
		}
	}
	return libpython.Null(), fmt.Errorf("cannot convert %T to a python object", v)
}

func (b *Bridge) fromUint(x uint64) (libpython.Ptr, error) {
	if x > math.MaxInt {
		return libpython.Null(), fmt.Errorf("integer %d overflows Py_ssize_t", x)
	}
	return b.owned(b.sym.IntFromSsize(int(x)), "int")
}

func (b *Bridge) owned(addr uintptr, what string) (libpython.Ptr, error) {
	p := b.sym.FromOwned(addr)
	if p.IsNull() {
		return libpython.Null(), b.pyError("create " + what)
	}
	return p, nil
}

func (b *Bridge) list(rv reflect.Value) (libpython.Ptr, error) {
	list, err := b.owned(b.sym.ListNew(rv.Len()), "list")
	if err != nil {
		return list, err
	}
	for i := 0; i < rv.Len(); i++ {
		item, err := b.ToPython(rv.Index(i).Interface())
		if err != nil {
			list.Release()
			return libpython.Null(), fmt.Errorf("index %d: %w", i, err)
		}
		if b.sym.ListSetItem(list.Addr(), i, item.Steal()) != 0 {
			list.Release()
			return libpython.Null(), b.pyError("fill list")
		}
	}
	return list, nil
}

func (b *Bridge) dict(rv reflect.Value) (libpython.Ptr, error) {
	dict, err := b.owned(b.sym.DictNew(), "dict")
	if err != nil {
		return dict, err
	}
	iter := rv.MapRange()
	for iter.Next() {
		key, err := b.sym.NewString(iter.Key().String())
		if err != nil {
			dict.Release()
			return libpython.Null(), err
		}
		value, err := b.ToPython(iter.Value().Interface())
		if err != nil {
			key.Release()
			dict.Release()
			return libpython.Null(), fmt.Errorf("key %q: %w", iter.Key().String(), err)
		}
		rc := b.sym.DictSetItem(dict.Addr(), key.Addr(), value.Addr())
		key.Release()
		value.Release()
		if rc != 0 {
			dict.Release()
			return libpython.Null(), b.pyError("fill dict")
		}
	}
	return dict, nil
}

// FromPython converts a Python object to a Go value. It must run inside Do.
// p stays owned by the caller.
//
// None, bool, int, float, str, bytes, list, tuple and dict are converted.
// Dict keys become strings (str() of non-string keys). A capsule created
// by the guard yields the Go value it guards. Anything else is returned as a
// new libpython.Ptr reference, which the caller must release.
func (b *Bridge) FromPython(p libpython.Ptr) (any, error) {
	sym := b.sym
	if p.IsNull() {
		return nil, fmt.Errorf("convert: null object")
	}
	if p.IsNone() {
		return nil, nil
	}

	is := func(t libpython.Ptr) bool {
		return !t.IsNull() && sym.IsInstance(p.Addr(), t.Addr()) == 1
	}

	switch {
	case is(sym.Types.Bool):
		return sym.IntAsSsize(p.Addr()) != 0, nil
	case is(sym.Types.Int), is(sym.Types.Long):
		n := sym.IntAsSsize(p.Addr())
		if n == -1 && sym.ErrOccurred() != 0 {
			return nil, b.pyError("convert int")
		}
		return n, nil
	case is(sym.Types.Float):
		f := sym.FloatAsDouble(p.Addr())
		if f == -1 && sym.ErrOccurred() != 0 {
			return nil, b.pyError("convert float")
		}
		return f, nil
	case is(sym.Types.Unicode):
		return sym.GoString(p)
	case is(sym.Types.String):
		if sym.Flavor().StringAsBytes {
			return sym.BytesOf(p)
		}
		return sym.GoString(p)
	case is(sym.Types.List):
		return b.sequence(p, sym.ListSize, sym.ListGetItem)
	case is(sym.Types.Tuple):
		return b.sequence(p, sym.TupleSize, sym.TupleGetItem)
	case is(sym.Types.Dict):
		return b.mapping(p)
	}

	if v, ok := b.guard.Lookup(p); ok {
		return v, nil
	}
	return p.Duplicate(), nil
}

func (b *Bridge) sequence(p libpython.Ptr, size func(uintptr) int, get func(uintptr, int) uintptr) ([]any, error) {
	n := size(p.Addr())
	out := make([]any, n)
	for i := 0; i < n; i++ {
		item := b.sym.FromBorrowed(get(p.Addr(), i))
		v, err := b.FromPython(item)
		item.Release()
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (b *Bridge) mapping(p libpython.Ptr) (map[string]any, error) {
	out := make(map[string]any, b.sym.DictSize(p.Addr()))
	var pos int
	var k, v uintptr
	for b.sym.DictNext(p.Addr(), &pos, &k, &v) != 0 {
		key := b.sym.FromBorrowed(k)
		value := b.sym.FromBorrowed(v)

		name, err := b.sym.GoString(key)
		if err != nil {
			key.Release()
			value.Release()
			return nil, err
		}
		converted, err := b.FromPython(value)
		key.Release()
		value.Release()
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", name, err)
		}
		out[name] = converted
	}
	return out, nil
}

// Value converts the handle returned by Eval, Call and friends to a Go value
// and releases it. It passes err through, so calls can be chained:
//
//	v, err := b.Value(b.Eval("1 + 1"))
func (b *Bridge) Value(p libpython.Ptr, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	var out any
	err = b.Do(func() error {
		defer p.Release()
		var convErr error
		out, convErr = b.FromPython(p)
		return convErr
	})
	return out, err
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
