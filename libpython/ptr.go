package libpython

import (
	"fmt"
)

// Ptr is a handle to a Python object.
//
// A non-null Ptr owns exactly one reference. Copying a Ptr does not take a
// new reference; use Duplicate for that. The zero value is the null handle.
// All methods except IsNull, Addr and String call into libpython and must run
// with the GIL held.
type Ptr struct {
	addr uintptr
	sym  *Symbols
}

// Null returns the null handle.
func Null() Ptr {
	return Ptr{}
}

// FromOwned wraps a new reference returned by the C API.
// The reference count is left unchanged. A zero address yields Null.
func (s *Symbols) FromOwned(addr uintptr) Ptr {
	if addr == 0 {
		return Ptr{}
	}
	return Ptr{addr: addr, sym: s}
}

// FromBorrowed wraps a borrowed reference, taking a reference of its own.
func (s *Symbols) FromBorrowed(addr uintptr) Ptr {
	p := s.FromOwned(addr)
	if !p.IsNull() {
		s.IncRef(addr)
	}
	return p
}

// None returns an owned handle to the None singleton.
func (s *Symbols) None() Ptr {
	return s.FromBorrowed(s.NoneStruct)
}

// Addr returns the raw object address, 0 for Null.
func (p Ptr) Addr() uintptr {
	return p.addr
}

// Symbols returns the table the handle was created from, nil for Null.
func (p Ptr) Symbols() *Symbols {
	return p.sym
}

// IsNull reports whether p is the null handle.
func (p Ptr) IsNull() bool {
	return p.addr == 0
}

// IsNone reports whether p refers to None.
func (p Ptr) IsNone() bool {
	return p.addr != 0 && p.addr == p.sym.NoneStruct
}

// Duplicate returns a second owner of the same object.
func (p Ptr) Duplicate() Ptr {
	if p.IsNull() {
		return Ptr{}
	}
	p.sym.IncRef(p.addr)
	return p
}

// Release drops the reference held by p and resets it to Null.
// Releasing Null is a no-op, so a handle can never be released twice.
func (p *Ptr) Release() {
	if p.IsNull() {
		return
	}
	addr, sym := p.addr, p.sym
	*p = Ptr{}
	sym.DecRef(addr)
}

// Steal hands the reference to a C function that steals it and resets p to
// Null. The caller must pass the returned address on.
func (p *Ptr) Steal() uintptr {
	addr := p.addr
	*p = Ptr{}
	return addr
}

// RefCount returns the current reference count. The boolean is false for
// Null, whose count is unknown.
func (p Ptr) RefCount() (int, bool) {
	if p.IsNull() {
		return 0, false
	}
	return p.sym.RefCnt(p.addr), true
}

// RichEqual compares p and q with Python's == operator.
// Go's == on Ptr compares identity.
func (p Ptr) RichEqual(q Ptr) (bool, error) {
	if p.IsNull() || q.IsNull() {
		return p.addr == q.addr, nil
	}
	switch p.sym.RichCompareBool(p.addr, q.addr, CompareEQ) {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		if err := p.sym.FetchError(); err != nil {
			return false, fmt.Errorf("compare: %w", err)
		}
		return false, fmt.Errorf("compare: comparison failed")
	}
}

// String implements fmt.Stringer without calling into Python.
func (p Ptr) String() string {
	if p.IsNull() {
		return "Ptr(NULL)"
	}
	return fmt.Sprintf("Ptr(%#x)", p.addr)
}
