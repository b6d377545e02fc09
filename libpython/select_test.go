package libpython_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/pybridge/domain/entities"
	domainerrors "github.com/reglet-dev/pybridge/domain/errors"
	"github.com/reglet-dev/pybridge/libpython"
)

func except(prefixes ...string) func(string) bool {
	return func(name string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(name, p) {
				return false
			}
		}
		return true
	}
}

func TestSelectSymbols_Python3(t *testing.T) {
	sel, err := libpython.SelectSymbols(except("PyInt_", "PyString_", "PyUnicodeUCS"))
	require.NoError(t, err)

	assert.Equal(t, "PyLong_FromSsize_t", sel["IntFromSsize"])
	assert.Equal(t, "PyLong_Type", sel["IntType"])
	assert.Equal(t, "PyBytes_FromStringAndSize", sel["BytesFromStringAndSize"])
	assert.Equal(t, "PyBytes_Type", sel["StringType"])
	assert.Equal(t, "PyUnicode_DecodeUTF8", sel["UnicodeDecodeUTF8"])
	assert.Equal(t, "PyExc_RuntimeError", sel["RuntimeError"])

	flavor := libpython.NewSymbols("lib", entities.Version{}, sel).Flavor()
	assert.Equal(t, entities.Flavor{HasIntType: false, StringAsBytes: true}, flavor)
}

func TestSelectSymbols_Python2UCS4(t *testing.T) {
	has := func(name string) bool {
		switch {
		case strings.HasPrefix(name, "PyBytes_"),
			strings.HasPrefix(name, "PyUnicodeUCS2_"),
			name == "PyUnicode_DecodeUTF8",
			name == "PyUnicode_AsUTF8String":
			return false
		}
		return true
	}

	sel, err := libpython.SelectSymbols(has)
	require.NoError(t, err)

	assert.Equal(t, "PyInt_FromSsize_t", sel["IntFromSsize"])
	assert.Equal(t, "PyInt_Type", sel["IntType"])
	assert.Equal(t, "PyString_FromStringAndSize", sel["BytesFromStringAndSize"])
	assert.Equal(t, "PyUnicodeUCS4_DecodeUTF8", sel["UnicodeDecodeUTF8"])
	assert.Equal(t, "PyUnicodeUCS4_AsUTF8String", sel["UnicodeAsUTF8String"])

	sym := libpython.NewSymbols("lib", entities.Version{}, sel)
	assert.Equal(t, entities.Flavor{HasIntType: true, StringAsBytes: false, UnicodeWidth: "UCS4"}, sym.Flavor())
	assert.True(t, sym.IsPython2())
	assert.Equal(t, "__builtin__", sym.BuiltinsModule())
}

func TestSelectSymbols_PrefersFirstCandidate(t *testing.T) {
	// Both the agnostic and the UCS4 names exist: the agnostic one wins.
	sel, err := libpython.SelectSymbols(except("PyInt_", "PyString_"))
	require.NoError(t, err)
	assert.Equal(t, "PyUnicode_DecodeUTF8", sel["UnicodeDecodeUTF8"])
}

func TestSelectSymbols_OptionalMissing(t *testing.T) {
	sel, err := libpython.SelectSymbols(except("PyInt_", "PyString_", "PyUnicodeUCS", "PySys_SetArgvEx"))
	require.NoError(t, err)
	_, ok := sel["SetArgvEx"]
	assert.False(t, ok)
}

func TestSelectSymbols_MandatoryMissing(t *testing.T) {
	_, err := libpython.SelectSymbols(except("PyInt_", "PyString_", "PyUnicode"))
	require.Error(t, err)

	var re *domainerrors.ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "PyUnicode_DecodeUTF8 or PyUnicodeUCS4_DecodeUTF8 or PyUnicodeUCS2_DecodeUTF8", re.Symbol)
}

func TestSelectSymbols_EveryLogicalNameChosen(t *testing.T) {
	sel, err := libpython.SelectSymbols(except("PyInt_", "PyString_", "PyUnicodeUCS"))
	require.NoError(t, err)
	for _, name := range libpython.LogicalNames() {
		assert.NotEmpty(t, sel[name], name)
	}
}

func TestSymbols_SelectionIsACopy(t *testing.T) {
	sel, err := libpython.SelectSymbols(except("PyInt_", "PyString_", "PyUnicodeUCS"))
	require.NoError(t, err)
	sym := libpython.NewSymbols("lib", entities.Version{Major: 3, Minor: 12}, sel)

	got := sym.Selection()
	got["IntType"] = "tampered"
	assert.Equal(t, "PyLong_Type", sym.Selection()["IntType"])
	assert.Equal(t, "builtins", sym.BuiltinsModule())
}
