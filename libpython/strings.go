package libpython

import (
	"fmt"
	"unsafe"
)

// NewString creates a Python text string.
// Runtimes with a bytes API get a UTF-8 decoded unicode object, Python 2 gets
// a native 8-bit str.
func (s *Symbols) NewString(v string) (Ptr, error) {
	var addr uintptr
	if s.flavor.StringAsBytes {
		addr = s.UnicodeDecodeUTF8(unsafe.StringData(v), len(v), nil)
	} else {
		addr = s.BytesFromStringAndSize(unsafe.StringData(v), len(v))
	}
	p := s.FromOwned(addr)
	if p.IsNull() {
		return Ptr{}, s.fetchOr("create string")
	}
	return p, nil
}

// NewBytes creates a Python 8-bit string (bytes on Python 3).
func (s *Symbols) NewBytes(v []byte) (Ptr, error) {
	var data *byte
	if len(v) > 0 {
		data = &v[0]
	}
	p := s.FromOwned(s.BytesFromStringAndSize(data, len(v)))
	if p.IsNull() {
		return Ptr{}, s.fetchOr("create bytes")
	}
	return p, nil
}

// BytesOf copies the contents of an 8-bit string object.
func (s *Symbols) BytesOf(p Ptr) ([]byte, error) {
	var data uintptr
	var n int
	if s.BytesAsStringAndSize(p.addr, &data, &n) != 0 {
		return nil, s.fetchOr("read bytes")
	}
	out := make([]byte, n)
	if n > 0 {
		//nolint:gosec // G103: data points to n bytes owned by the bytes object
		copy(out, unsafe.Slice((*byte)(unsafe.Pointer(data)), n))
	}
	return out, nil
}

// GoString returns the text of a str, unicode or bytes object, or str(p) for
// anything else.
func (s *Symbols) GoString(p Ptr) (string, error) {
	if p.IsNull() {
		return "", fmt.Errorf("read string: null object")
	}
	if s.IsInstance(p.addr, s.Types.Unicode.addr) == 1 {
		encoded := s.FromOwned(s.UnicodeAsUTF8String(p.addr))
		if encoded.IsNull() {
			return "", s.fetchOr("encode utf-8")
		}
		defer encoded.Release()
		b, err := s.BytesOf(encoded)
		return string(b), err
	}
	if s.IsInstance(p.addr, s.Types.String.addr) == 1 {
		b, err := s.BytesOf(p)
		return string(b), err
	}

	str := s.FromOwned(s.Str(p.addr))
	if str.IsNull() {
		return "", s.fetchOr("str")
	}
	defer str.Release()
	return s.GoString(str)
}

// ReprString returns repr(p) as a Go string.
func (s *Symbols) ReprString(p Ptr) (string, error) {
	r := s.FromOwned(s.Repr(p.addr))
	if r.IsNull() {
		return "", s.fetchOr("repr")
	}
	defer r.Release()
	return s.GoString(r)
}
