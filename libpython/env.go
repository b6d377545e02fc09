package libpython

import (
	"os"
)

// OSEnvironment is a ports.Environment backed by the process environment.
type OSEnvironment struct{}

func (OSEnvironment) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (OSEnvironment) Setenv(key, value string) error      { return os.Setenv(key, value) }
func (OSEnvironment) Unsetenv(key string) error           { return os.Unsetenv(key) }
func (OSEnvironment) Environ() []string                   { return os.Environ() }
