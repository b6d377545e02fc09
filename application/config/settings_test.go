package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/pybridge/domain/errors"
	"github.com/reglet-dev/pybridge/internal/testutil"
	"github.com/reglet-dev/pybridge/libpython"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("", WithEnvironment(testutil.MapEnvironment{}))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestLoad_Files(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    func(*Settings)
	}{
		{
			name: "yaml",
			path: "/etc/pybridge.yaml",
			content: `python: /usr/bin/python3.11
manage_python_home: false
probe_timeout: 3s
log_level: debug
`,
			want: func(s *Settings) {
				s.Python = "/usr/bin/python3.11"
				s.ManagePythonHome = false
				s.ProbeTimeout = 3 * time.Second
				s.LogLevel = "debug"
			},
		},
		{
			name: "toml",
			path: "/etc/pybridge.toml",
			content: `libpython = "/opt/py/lib/libpython3.12.so"
probe_timeout = 2
log_format = "json"
`,
			want: func(s *Settings) {
				s.LibPython = "/opt/py/lib/libpython3.12.so"
				s.ProbeTimeout = 2 * time.Second
				s.LogFormat = "json"
			},
		},
		{
			name:    "fractional seconds",
			path:    "/etc/pybridge.yml",
			content: "probe_timeout: 0.5\n",
			want: func(s *Settings) {
				s.ProbeTimeout = 500 * time.Millisecond
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := memfs.New()
			require.NoError(t, util.WriteFile(fs, tt.path, []byte(tt.content), 0o644))

			got, err := Load(tt.path, WithFilesystem(fs), WithEnvironment(testutil.MapEnvironment{}))
			require.NoError(t, err)

			want := Defaults()
			tt.want(&want)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoad_EnvironmentWins(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/cfg.yaml", []byte("python: python3\nlog_level: error\n"), 0o644))
	env := testutil.MapEnvironment{
		EnvPython:   "/venv/bin/python",
		EnvLogLevel: "DEBUG",
	}

	got, err := Load("/cfg.yaml", WithFilesystem(fs), WithEnvironment(env))
	require.NoError(t, err)
	assert.Equal(t, "/venv/bin/python", got.Python)
	assert.Equal(t, "debug", got.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		content   string
		env       testutil.MapEnvironment
		wantField string
		wantErr   string
	}{
		{name: "unknown extension", path: "/cfg.json", content: "{}", wantErr: "unsupported settings file"},
		{name: "missing file", path: "/absent.yaml", wantErr: "read /absent.yaml"},
		{name: "bad yaml", path: "/cfg.yaml", content: "python: [", wantErr: "parse /cfg.yaml"},
		{name: "unknown key", path: "/cfg.yaml", content: "pyhton: x\n", wantField: "pyhton", wantErr: "unknown settings pyhton"},
		{name: "wrong type", path: "/cfg.yaml", content: "manage_python_home: sometimes\n", wantField: "manage_python_home"},
		{name: "bad duration", path: "/cfg.yaml", content: "probe_timeout: soon\n", wantField: "probe_timeout"},
		{name: "timeout too short", path: "/cfg.yaml", content: "probe_timeout: 1ms\n", wantField: "ProbeTimeout"},
		{name: "bad log level", path: "/cfg.yaml", content: "log_level: loud\n", wantField: "LogLevel"},
		{name: "relative libpython", path: "/cfg.toml", content: "libpython = \"lib/libpython.so\"\n", wantField: "LibPython"},
		{name: "bad env format", env: testutil.MapEnvironment{EnvLogFormat: "xml"}, wantField: "LogFormat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := memfs.New()
			if tt.content != "" {
				require.NoError(t, util.WriteFile(fs, tt.path, []byte(tt.content), 0o644))
			}
			env := tt.env
			if env == nil {
				env = testutil.MapEnvironment{}
			}

			_, err := Load(tt.path, WithFilesystem(fs), WithEnvironment(env))
			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, cfgErr.Field)
			}
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSettings_ResolveOptions(t *testing.T) {
	assert.Len(t, Defaults().ResolveOptions(), 2)

	s := Defaults()
	s.Python = "python3.12"
	s.LibPython = "/usr/lib/libpython3.12.so"
	opts := s.ResolveOptions()
	assert.Len(t, opts, 4)
	assert.IsType(t, libpython.Option(nil), opts[0])
}

func TestSettings_Logger(t *testing.T) {
	s := Defaults()
	s.LogFormat = "json"
	s.LogLevel = "warning"

	var buf bytes.Buffer
	logger, err := s.Logger(&buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestValues(t *testing.T) {
	v := Values{"s": "x", "b": true, "i": 3, "i64": int64(4), "f": 0.25, "d": "1m", "n": nil}

	str, ok, err := v.String("s")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", str)

	_, ok, err = v.String("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = v.Bool("s")
	assert.True(t, ok)
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "s", cfgErr.Field)
	assert.Contains(t, err.Error(), "want a boolean, got string")

	for key, want := range map[string]time.Duration{
		"i":   3 * time.Second,
		"i64": 4 * time.Second,
		"f":   250 * time.Millisecond,
		"d":   time.Minute,
	} {
		got, ok, err := v.Duration(key)
		require.NoError(t, err, key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	_, _, err = v.Duration("b")
	assert.ErrorContains(t, err, "want a duration string or a number of seconds, got bool")
	_, _, err = v.Duration("n")
	assert.ErrorContains(t, err, "got <nil>")
}
