// Command pybridge inspects and drives the embedded Python interpreter.
//
//	pybridge doctor --format yaml
//	pybridge exec -c 'import sys; _ = sys.version'
//	pybridge schema settings
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
