package libpython_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reglet-dev/pybridge/domain/entities"
	"github.com/reglet-dev/pybridge/libpython"
)

func debianConfig() entities.PythonConfig {
	return entities.PythonConfig{
		"executable":  "/usr/bin/python3",
		"prefix":      "/usr",
		"exec_prefix": "/usr",
		"VERSION":     "3.11",
		"INSTSONAME":  "libpython3.11.so.1.0",
		"LDLIBRARY":   "libpython3.11.so",
		"LIBRARY":     "libpython3.11.a",
		"LIBDIR":      "/usr/lib",
		"MULTIARCH":   "x86_64-linux-gnu",
	}
}

func TestParseConfig(t *testing.T) {
	out := "executable: /usr/bin/python3\n" +
		"prefix: /usr\n" +
		"PYTHONFRAMEWORKPREFIX: None\n" +
		"INSTSONAME: libpython3.11.so.1.0\r\n" +
		"LIBDIR: /opt/py: with colon\n" +
		"garbage line\n" +
		"MULTIARCH: \n"

	cfg := libpython.ParseConfig(out)

	assert.Equal(t, "/usr/bin/python3", cfg.Value("executable"))
	assert.Equal(t, "libpython3.11.so.1.0", cfg.Value("INSTSONAME"))
	assert.Equal(t, "/opt/py: with colon", cfg.Value("LIBDIR"))

	_, ok := cfg.Get("PYTHONFRAMEWORKPREFIX")
	assert.False(t, ok, "None must be treated as absent")
	_, ok = cfg.Get("MULTIARCH")
	assert.False(t, ok)
	assert.Len(t, cfg, 4)
}

func TestCandidates_Linux(t *testing.T) {
	paths := libpython.Candidates(debianConfig(), "linux")

	assert.Equal(t, []string{
		"/usr/lib/libpython3.11.so.1.0",
		"/usr/lib/libpython3.11.so.1.0.so",
		"/usr/lib/x86_64-linux-gnu/libpython3.11.so.1.0",
		"/usr/lib/x86_64-linux-gnu/libpython3.11.so.1.0.so",
		"/usr/libpython3.11.so.1.0",
		"/usr/libpython3.11.so.1.0.so",
		"/usr/x86_64-linux-gnu/libpython3.11.so.1.0",
		"/usr/x86_64-linux-gnu/libpython3.11.so.1.0.so",
		"/usr/lib/libpython3.11.so",
	}, paths[:9])

	assert.Contains(t, paths, "/usr/lib/libpython.so")
	assert.NotContains(t, paths, "/usr/lib/libpython3.11.so.so")

	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate candidate %s", p)
		seen[p] = true
	}
}

func TestCandidates_NamesOrder(t *testing.T) {
	cfg := entities.PythonConfig{
		"LIBDIR":  "/opt/lib",
		"VERSION": "3.12",
		"LIBRARY": "libpython3.12.a",
	}

	paths := libpython.Candidates(cfg, "linux")

	assert.Equal(t, []string{
		"/opt/lib/libpython3.12",
		"/opt/lib/libpython3.12.so",
		"/opt/lib/libpython",
		"/opt/lib/libpython.so",
	}, paths)
}

func TestCandidates_Darwin(t *testing.T) {
	cfg := entities.PythonConfig{
		"executable":            "/Library/Frameworks/Python.framework/Versions/3.11/bin/python3",
		"VERSION":               "3.11",
		"PYTHONFRAMEWORKPREFIX": "/Library/Frameworks",
	}

	paths := libpython.Candidates(cfg, "darwin")

	assert.Contains(t, paths, "/Library/Frameworks/libpython3.11.dylib")
	assert.Contains(t, paths, "/Library/Frameworks/Python.framework/Versions/3.11/lib/libpython3.11.dylib")
}

func TestCandidates_FrameworkIgnoredOffDarwin(t *testing.T) {
	cfg := entities.PythonConfig{
		"VERSION":               "3.11",
		"PYTHONFRAMEWORKPREFIX": "/Library/Frameworks",
	}

	assert.Empty(t, libpython.Candidates(cfg, "linux"))
}
