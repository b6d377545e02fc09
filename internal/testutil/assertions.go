// Package testutil provides test doubles and assertions shared by pybridge's
// tests.
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pyerrors "github.com/reglet-dev/pybridge/domain/errors"
)

// RequirePyError asserts that err wraps a *errors.PyError of the given
// Python exception type and returns it.
func RequirePyError(t *testing.T, err error, wantType string, msgAndArgs ...interface{}) *pyerrors.PyError {
	t.Helper()

	var pe *pyerrors.PyError
	require.ErrorAs(t, err, &pe, msgAndArgs...)
	assert.Equal(t, wantType, pe.Type, msgAndArgs...)
	return pe
}

// AssertNoLeaks runs fn and asserts that it leaves no new live objects in py.
func AssertNoLeaks(t *testing.T, py *FakePython, fn func(), msgAndArgs ...interface{}) {
	t.Helper()

	before := py.Live()
	fn()
	assert.Equal(t, before, py.Live(), msgAndArgs...)
}

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}
