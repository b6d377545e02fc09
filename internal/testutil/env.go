package testutil

import (
	"sort"
)

// MapEnvironment is an in-memory ports.Environment.
type MapEnvironment map[string]string

func (e MapEnvironment) LookupEnv(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

func (e MapEnvironment) Setenv(key, value string) error {
	e[key] = value
	return nil
}

func (e MapEnvironment) Unsetenv(key string) error {
	delete(e, key)
	return nil
}

func (e MapEnvironment) Environ() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
