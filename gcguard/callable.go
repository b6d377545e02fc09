package gcguard

import (
	"fmt"
	"reflect"
)

// Callable is a Go function Python can call. Arguments arrive converted to
// Go values; the result is converted back to Python.
type Callable func(args []any) (any, error)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Func adapts a typed Go function into a Callable. fn may return nothing, a
// value, an error, or a value and an error. Arguments are checked and
// converted against fn's parameter types at call time.
func Func(fn any) (Callable, error) {
	if c, ok := fn.(Callable); ok {
		return c, nil
	}
	if c, ok := fn.(func([]any) (any, error)); ok {
		return c, nil
	}

	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("gcguard: %T is not a function", fn)
	}
	t := v.Type()

	switch t.NumOut() {
	case 0, 1:
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("gcguard: second result of %s must be error", t)
		}
	default:
		return nil, fmt.Errorf("gcguard: %s returns too many values", t)
	}

	return func(args []any) (any, error) {
		in, err := buildArgs(t, args)
		if err != nil {
			return nil, err
		}
		return splitResults(t, v.Call(in))
	}, nil
}

func buildArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("expected at least %d arguments, got %d", fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("expected %d arguments, got %d", fixed, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		target := t.In(min(i, t.NumIn()-1))
		if t.IsVariadic() && i >= fixed {
			target = target.Elem()
		}
		val, err := convertArg(arg, target)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in[i] = val
	}
	return in, nil
}

func convertArg(arg any, target reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch target.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, fmt.Errorf("None cannot be used as %s", target)
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(target.Kind()) && v.Type().ConvertibleTo(target) {
		if isFloat(v.Kind()) && !isFloat(target.Kind()) {
			return reflect.Value{}, fmt.Errorf("%s cannot be used as %s", v.Type(), target)
		}
		return v.Convert(target), nil
	}
	if target.Kind() == reflect.Slice && v.Kind() == reflect.Slice {
		out := reflect.MakeSlice(target, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := convertArg(v.Index(i).Interface(), target.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("%s cannot be used as %s", v.Type(), target)
}

func splitResults(t reflect.Type, out []reflect.Value) (any, error) {
	switch t.NumOut() {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	default:
		return out[0].Interface(), asError(out[1])
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
