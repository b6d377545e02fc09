package ports

// LibraryLoader opens shared libraries.
type LibraryLoader interface {
	// Open loads the shared library at path.
	Open(path string) (Library, error)
}

// Library is a loaded shared library.
type Library interface {
	// Path returns the path the library was opened from.
	Path() string

	// Lookup returns the address of an exported symbol.
	// The boolean is false when the symbol does not exist.
	Lookup(name string) (uintptr, bool)

	// Bind makes the Go function pointed to by fptr call the C function at addr.
	Bind(fptr any, addr uintptr) error

	// NewCallback returns a C function pointer that calls the Go function fn.
	NewCallback(fn any) uintptr

	// Close unloads the library.
	Close() error
}
