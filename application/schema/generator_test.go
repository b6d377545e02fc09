package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestNamed_Settings(t *testing.T) {
	data, err := Named("settings")
	require.NoError(t, err)
	doc := decode(t, data)

	properties, ok := doc["properties"].(map[string]any)
	require.True(t, ok, "properties should be a map")
	assert.Len(t, properties, 6)
	for _, key := range []string{"python", "libpython", "manage_python_home", "probe_timeout", "log_level", "log_format"} {
		assert.Contains(t, properties, key)
	}

	level, ok := properties["log_level"].(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"debug", "info", "warn", "warning", "error"}, level["enum"])

	required, ok := doc["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "log_level")
	assert.NotContains(t, required, "python", "omitempty fields are optional")
}

func TestNamed_Report(t *testing.T) {
	data, err := Named("report")
	require.NoError(t, err)
	doc := decode(t, data)

	properties, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"python", "version", "library", "candidates", "selection", "flavor"} {
		assert.Contains(t, properties, key)
	}
	assert.Contains(t, string(data), "string_as_bytes")
}

func TestNamed_Unknown(t *testing.T) {
	_, err := Named("manifest")
	assert.ErrorContains(t, err, `unknown schema "manifest"`)
	assert.Equal(t, []string{"report", "settings"}, Names())
}

func TestGenerateSchema_EmptyStruct(t *testing.T) {
	type empty struct{}

	data, err := GenerateSchema(empty{})
	require.NoError(t, err)
	assert.NotEmpty(t, decode(t, data))
}
