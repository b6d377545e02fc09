package pybridge

import (
	"fmt"

	"github.com/reglet-dev/pybridge/libpython"
)

// Import imports a module and returns an owned handle to it.
func (b *Bridge) Import(name string) (libpython.Ptr, error) {
	var module libpython.Ptr
	err := b.Do(func() error {
		module = b.sym.FromOwned(b.sym.ImportModule(name))
		if module.IsNull() {
			return b.pyError("import " + name)
		}
		return nil
	})
	return module, err
}

// Exec runs statements in the __main__ namespace.
func (b *Bridge) Exec(src string) error {
	return b.Do(func() error {
		res, err := b.run(src, libpython.FileInput)
		res.Release()
		return err
	})
}

// Eval evaluates an expression in the __main__ namespace and returns an
// owned handle to the result.
func (b *Bridge) Eval(src string) (libpython.Ptr, error) {
	var res libpython.Ptr
	err := b.Do(func() error {
		var err error
		res, err = b.run(src, libpython.EvalInput)
		return err
	})
	return res, err
}

func (b *Bridge) run(src string, start int32) (libpython.Ptr, error) {
	code := b.sym.FromOwned(b.sym.CompileString(src, "<string>", start))
	if code.IsNull() {
		return libpython.Null(), b.pyError("compile")
	}
	defer code.Release()

	globals, err := b.globals()
	if err != nil {
		return libpython.Null(), err
	}
	res := b.sym.FromOwned(b.sym.EvalCode(code.Addr(), globals.Addr(), globals.Addr()))
	if res.IsNull() {
		return libpython.Null(), b.pyError("eval")
	}
	return res, nil
}

// Call calls fn with args converted by ToPython and returns an owned handle
// to the result.
func (b *Bridge) Call(fn libpython.Ptr, args ...any) (libpython.Ptr, error) {
	var res libpython.Ptr
	err := b.Do(func() error {
		tuple, err := b.tuple(args)
		if err != nil {
			return err
		}
		defer tuple.Release()

		res = b.sym.FromOwned(b.sym.Call(fn.Addr(), tuple.Addr(), 0))
		if res.IsNull() {
			return b.pyError("call")
		}
		return nil
	})
	return res, err
}

// GetAttr returns an owned handle to obj.name.
func (b *Bridge) GetAttr(obj libpython.Ptr, name string) (libpython.Ptr, error) {
	var attr libpython.Ptr
	err := b.Do(func() error {
		attr = b.sym.FromOwned(b.sym.GetAttrString(obj.Addr(), name))
		if attr.IsNull() {
			return b.pyError("getattr " + name)
		}
		return nil
	})
	return attr, err
}

// CallMethod calls obj.name(*args).
func (b *Bridge) CallMethod(obj libpython.Ptr, name string, args ...any) (libpython.Ptr, error) {
	var res libpython.Ptr
	err := b.Do(func() error {
		method, err := b.GetAttr(obj, name)
		if err != nil {
			return err
		}
		defer method.Release()
		res, err = b.Call(method, args...)
		return err
	})
	return res, err
}

// SetGlobal binds name in __main__ to v converted by ToPython.
func (b *Bridge) SetGlobal(name string, v any) error {
	return b.Do(func() error {
		value, err := b.ToPython(v)
		if err != nil {
			return err
		}
		defer value.Release()
		globals, err := b.globals()
		if err != nil {
			return err
		}
		if b.sym.DictSetItemString(globals.Addr(), name, value.Addr()) != 0 {
			return b.pyError("set global " + name)
		}
		return nil
	})
}

// Global returns an owned handle to a name in __main__. The boolean is
// false when the name is not bound.
func (b *Bridge) Global(name string) (libpython.Ptr, bool, error) {
	var value libpython.Ptr
	err := b.Do(func() error {
		globals, err := b.globals()
		if err != nil {
			return err
		}
		value = b.sym.FromBorrowed(b.sym.DictGetItemString(globals.Addr(), name))
		return nil
	})
	return value, !value.IsNull(), err
}

// Release drops handles inside the GIL. Null handles are skipped.
func (b *Bridge) Release(ptrs ...*libpython.Ptr) {
	_ = b.Do(func() error {
		for _, p := range ptrs {
			p.Release()
		}
		return nil
	})
}

func (b *Bridge) tuple(args []any) (libpython.Ptr, error) {
	tuple := b.sym.FromOwned(b.sym.TupleNew(len(args)))
	if tuple.IsNull() {
		return libpython.Null(), b.pyError("create tuple")
	}
	for i, arg := range args {
		item, err := b.ToPython(arg)
		if err != nil {
			tuple.Release()
			return libpython.Null(), fmt.Errorf("argument %d: %w", i+1, err)
		}
		if b.sym.TupleSetItem(tuple.Addr(), i, item.Steal()) != 0 {
			tuple.Release()
			return libpython.Null(), b.pyError("fill tuple")
		}
	}
	return tuple, nil
}

// pyError turns the pending Python exception into an error naming op.
func (b *Bridge) pyError(op string) error {
	if err := b.sym.FetchError(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: failed without a python exception", op)
}
