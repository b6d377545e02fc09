package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// PythonConfig is the configuration a Python executable reports about itself.
// Keys follow sys and sysconfig naming (VERSION, LIBDIR, exec_prefix, ...).
// Absent values are simply missing from the map.
type PythonConfig map[string]string

// Get returns the value for key and whether it was reported.
func (c PythonConfig) Get(key string) (string, bool) {
	v, ok := c[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Value returns the value for key or the empty string.
func (c PythonConfig) Value(key string) string {
	v, _ := c.Get(key)
	return v
}

// Multiarch returns the multi-architecture triplet, preferring the
// sysconfig variable over the sys.implementation attribute.
func (c PythonConfig) Multiarch() string {
	if v, ok := c.Get("MULTIARCH"); ok {
		return v
	}
	return c.Value("multiarch")
}

// Version is a parsed Python version.
type Version struct {
	Raw   string `json:"raw" yaml:"raw"`
	Major int    `json:"major" yaml:"major"`
	Minor int    `json:"minor" yaml:"minor"`
	Micro int    `json:"micro" yaml:"micro"`
}

// ParseVersion parses the leading "X.Y[.Z]" of a version description such as
// the string returned by Py_GetVersion ("3.11.4 (main, Jun  7 2023, ...)").
func ParseVersion(s string) (Version, error) {
	v := Version{Raw: strings.TrimSpace(s)}
	head, _, _ := strings.Cut(v.Raw, " ")
	parts := strings.SplitN(head, ".", 3)
	if len(parts) < 2 {
		return v, fmt.Errorf("malformed python version %q", s)
	}

	var err error
	if v.Major, err = strconv.Atoi(parts[0]); err != nil {
		return v, fmt.Errorf("malformed python major version %q: %w", s, err)
	}
	if v.Minor, err = strconv.Atoi(leadingDigits(parts[1])); err != nil {
		return v, fmt.Errorf("malformed python minor version %q: %w", s, err)
	}
	if len(parts) == 3 {
		// Micro may carry a release suffix ("0rc1", "4+").
		v.Micro, _ = strconv.Atoi(leadingDigits(parts[2]))
	}
	return v, nil
}

// AtLeast reports whether v >= major.minor.
func (v Version) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// String returns "X.Y.Z".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

func leadingDigits(s string) string {
	for i, r := range s {
		if r < '0' || r > '9' {
			return s[:i]
		}
	}
	return s
}
