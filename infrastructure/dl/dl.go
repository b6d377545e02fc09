// Package dl implements ports.LibraryLoader on top of purego, loading shared
// libraries and binding their functions without cgo.
package dl

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/reglet-dev/pybridge/domain/ports"
)

// Loader opens shared libraries with dlopen semantics.
type Loader struct{}

// NewLoader returns a Loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ ports.LibraryLoader = (*Loader)(nil)

// Open loads the library at path with lazy binding and global symbol
// visibility, so extension modules loaded later resolve against it.
func (l *Loader) Open(path string) (ports.Library, error) {
	handle, err := openLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return &Library{path: path, handle: handle}, nil
}

// Library is a library opened by Loader.
type Library struct {
	path   string
	handle uintptr
	once   sync.Once
}

var _ ports.Library = (*Library)(nil)

// Path returns the path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Lookup returns the address of an exported symbol.
func (l *Library) Lookup(name string) (uintptr, bool) {
	addr, err := lookupSymbol(l.handle, name)
	if err != nil || addr == 0 {
		return 0, false
	}
	return addr, true
}

// Bind makes *fptr call the C function at addr.
// fptr must point to a func variable whose signature uses C-compatible types.
func (l *Library) Bind(fptr any, addr uintptr) (err error) {
	if addr == 0 {
		return fmt.Errorf("cannot bind null function pointer")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bind failed: %v", r)
		}
	}()
	purego.RegisterFunc(fptr, addr)
	return nil
}

// NewCallback returns a C function pointer that invokes fn.
// Callbacks are never freed; create them once per process.
func (l *Library) NewCallback(fn any) uintptr {
	return purego.NewCallback(fn)
}

// Close unloads the library. It is safe to call more than once.
func (l *Library) Close() error {
	var err error
	l.once.Do(func() {
		err = closeLibrary(l.handle)
	})
	return err
}
