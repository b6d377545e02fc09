package libpython

import (
	"fmt"
	"strings"

	"github.com/reglet-dev/pybridge/domain/errors"
)

// FetchError takes the pending Python exception, if any, and returns it as a
// *errors.PyError. The error indicator is cleared.
func (s *Symbols) FetchError() error {
	if s.ErrOccurred() == 0 {
		return nil
	}

	var typ, value, tb uintptr
	s.ErrFetch(&typ, &value, &tb)
	s.ErrNormalizeException(&typ, &value, &tb)

	t, v, b := s.FromOwned(typ), s.FromOwned(value), s.FromOwned(tb)
	defer t.Release()
	defer v.Release()
	defer b.Release()

	pe := &errors.PyError{Type: s.typeName(t)}
	if !v.IsNull() {
		if msg, err := s.GoString(v); err == nil {
			pe.Message = msg
		} else {
			s.ErrClear()
		}
	}
	pe.Traceback = s.formatException(t, v, b)
	return pe
}

// SetError raises exc with msg in the interpreter.
func (s *Symbols) SetError(exc Ptr, msg string) {
	s.ErrSetString(exc.addr, msg)
}

// fetchOr returns the pending exception, or a plain error naming op when the
// interpreter did not set one.
func (s *Symbols) fetchOr(op string) error {
	if err := s.FetchError(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: failed without a python exception", op)
}

func (s *Symbols) typeName(t Ptr) string {
	if t.IsNull() {
		return "UnknownError"
	}
	name := s.FromOwned(s.GetAttrString(t.addr, "__name__"))
	if name.IsNull() {
		s.ErrClear()
		return "UnknownError"
	}
	defer name.Release()
	str, err := s.GoString(name)
	if err != nil {
		s.ErrClear()
		return "UnknownError"
	}
	return str
}

// formatException renders the exception with traceback.format_exception.
// Formatting problems are swallowed and yield an empty string.
func (s *Symbols) formatException(t, v, tb Ptr) string {
	module := s.FromOwned(s.ImportModule("traceback"))
	if module.IsNull() {
		s.ErrClear()
		return ""
	}
	defer module.Release()

	format := s.FromOwned(s.GetAttrString(module.addr, "format_exception"))
	if format.IsNull() {
		s.ErrClear()
		return ""
	}
	defer format.Release()

	args := s.FromOwned(s.TupleNew(3))
	if args.IsNull() {
		s.ErrClear()
		return ""
	}
	defer args.Release()
	for i, item := range []Ptr{t, v, tb} {
		if item.IsNull() {
			item = s.None()
		} else {
			item = item.Duplicate()
		}
		s.TupleSetItem(args.addr, i, item.Steal())
	}

	lines := s.FromOwned(s.Call(format.addr, args.addr, 0))
	if lines.IsNull() {
		s.ErrClear()
		return ""
	}
	defer lines.Release()

	var b strings.Builder
	n := s.ListSize(lines.addr)
	for i := 0; i < n; i++ {
		line, err := s.GoString(s.static(s.ListGetItem(lines.addr, i)))
		if err != nil {
			s.ErrClear()
			return ""
		}
		b.WriteString(line)
	}
	return b.String()
}
