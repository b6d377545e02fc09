//go:build !(darwin || freebsd || linux)

package dl

import (
	"fmt"
	"runtime"
)

func openLibrary(path string) (uintptr, error) {
	return 0, fmt.Errorf("dynamic loading is not supported on %s", runtime.GOOS)
}

func lookupSymbol(uintptr, string) (uintptr, error) {
	return 0, fmt.Errorf("dynamic loading is not supported on %s", runtime.GOOS)
}

func closeLibrary(uintptr) error {
	return nil
}
