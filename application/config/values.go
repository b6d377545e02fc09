// Package config loads pybridge settings from defaults, an optional YAML or
// TOML file and the environment.
package config

import (
	"fmt"
	"time"

	"github.com/reglet-dev/pybridge/domain/errors"
)

// Values is a decoded settings file keyed by setting name.
//
// Accessors return (value, present, error): a missing key is not an error,
// a key holding the wrong kind of value is a *errors.ConfigError.
type Values map[string]any

// String returns the string stored at key.
func (v Values) String(key string) (string, bool, error) {
	raw, ok := v[key]
	if !ok {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", true, mismatch(key, "a string", raw)
	}
	return s, true, nil
}

// Bool returns the bool stored at key.
func (v Values) Bool(key string) (bool, bool, error) {
	raw, ok := v[key]
	if !ok {
		return false, false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, true, mismatch(key, "a boolean", raw)
	}
	return b, true, nil
}

// Seconds returns the number stored at key as a float. YAML decodes whole
// numbers as int, TOML as int64.
func (v Values) Seconds(key string) (float64, bool, error) {
	raw, ok := v[key]
	if !ok {
		return 0, false, nil
	}
	switch n := raw.(type) {
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case float64:
		return n, true, nil
	}
	return 0, true, mismatch(key, "a number", raw)
}

// Duration accepts a Go duration string ("5s", "250ms") or a number of
// seconds.
func (v Values) Duration(key string) (time.Duration, bool, error) {
	if s, ok := v[key].(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, true, &errors.ConfigError{Field: key, Err: err}
		}
		return d, true, nil
	}
	secs, ok, err := v.Seconds(key)
	if !ok || err != nil {
		if err != nil {
			err = mismatch(key, "a duration string or a number of seconds", v[key])
		}
		return 0, ok, err
	}
	return time.Duration(secs * float64(time.Second)), true, nil
}

func mismatch(key, want string, got any) error {
	return &errors.ConfigError{Field: key, Err: fmt.Errorf("want %s, got %T", want, got)}
}
