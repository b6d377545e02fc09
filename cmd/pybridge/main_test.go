package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/pybridge/application/config"
	"github.com/reglet-dev/pybridge/domain/entities"
	"github.com/reglet-dev/pybridge/internal/testutil"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr, config.WithEnvironment(testutil.MapEnvironment{}))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSchemaCommand(t *testing.T) {
	out, _, err := run(t, "schema")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc["properties"], "probe_timeout")

	out, _, err = run(t, "schema", "report")
	require.NoError(t, err)
	assert.Contains(t, out, "candidates")

	_, _, err = run(t, "schema", "manifest")
	assert.ErrorContains(t, err, "unknown schema")
}

func TestDoctorCommand_RejectsFormat(t *testing.T) {
	_, _, err := run(t, "doctor", "--format", "xml")
	assert.ErrorContains(t, err, `unknown format "xml"`)
}

func TestExecCommand_NeedsExactlyOneSource(t *testing.T) {
	_, _, err := run(t, "exec")
	assert.ErrorContains(t, err, "exactly one of -c CODE or FILE")

	_, _, err = run(t, "exec", "-c", "pass", "script.py")
	assert.ErrorContains(t, err, "exactly one of -c CODE or FILE")
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pybridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_format: xml\n"), 0o600))

	_, _, err := run(t, "--config", path, "schema")
	assert.ErrorContains(t, err, "LogFormat")

	_, _, err = run(t, "--config", filepath.Join(dir, "missing.toml"), "schema")
	assert.ErrorContains(t, err, "missing.toml")
}

func TestWriteReport(t *testing.T) {
	report := &entities.Report{
		Python:     "/usr/bin/python3",
		Version:    entities.Version{Raw: "3.12.1", Major: 3, Minor: 12, Micro: 1},
		Library:    "/usr/lib/libpython3.12.so.1.0",
		Candidates: []entities.Candidate{{Path: "/usr/lib/libpython3.12.so.1.0", Source: entities.SourceSearch}},
		Selection:  map[string]string{"IntFromSsize": "PyLong_FromSsize_t"},
		Flavor:     entities.Flavor{StringAsBytes: true},
	}

	var out bytes.Buffer
	a := &app{stdout: &out}
	require.NoError(t, writeReport(a, "json", report))
	testutil.AssertJSONEqual(t, `{
		"python": "/usr/bin/python3",
		"version": {"raw": "3.12.1", "major": 3, "minor": 12, "micro": 1},
		"library": "/usr/lib/libpython3.12.so.1.0",
		"candidates": [{"path": "/usr/lib/libpython3.12.so.1.0", "source": "search"}],
		"selection": {"IntFromSsize": "PyLong_FromSsize_t"},
		"flavor": {"has_int_type": false, "string_as_bytes": true}
	}`, out.String())

	out.Reset()
	require.NoError(t, writeReport(a, "yaml", report))
	assert.Contains(t, out.String(), "library: /usr/lib/libpython3.12.so.1.0\n")
	assert.Contains(t, out.String(), "  string_as_bytes: true\n")
}
