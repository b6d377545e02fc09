package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYamlSettingsParser(t *testing.T) {
	data := []byte(`
python: /usr/bin/python3.11
libpython: /usr/lib/x86_64-linux-gnu/libpython3.11.so.1.0
manage_python_home: false
probe_timeout: 10s
`)

	settings, err := NewYamlSettingsParser().Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/python3.11", settings["python"])
	assert.Equal(t, "/usr/lib/x86_64-linux-gnu/libpython3.11.so.1.0", settings["libpython"])
	assert.Equal(t, false, settings["manage_python_home"])
	assert.Equal(t, "10s", settings["probe_timeout"])
}

func TestYamlSettingsParser_Invalid(t *testing.T) {
	_, err := NewYamlSettingsParser().Parse([]byte("python: [unterminated"))
	assert.Error(t, err)
}

func TestTomlSettingsParser(t *testing.T) {
	data := []byte(`
python = "python3"
log_level = "debug"
manage_python_home = true
`)

	settings, err := NewTomlSettingsParser().Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "python3", settings["python"])
	assert.Equal(t, "debug", settings["log_level"])
	assert.Equal(t, true, settings["manage_python_home"])
}

func TestTomlSettingsParser_Invalid(t *testing.T) {
	_, err := NewTomlSettingsParser().Parse([]byte("python = "))
	assert.Error(t, err)
}
