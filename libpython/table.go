package libpython

import (
	"fmt"
	"strings"

	"github.com/reglet-dev/pybridge/domain/entities"
	"github.com/reglet-dev/pybridge/domain/errors"
	"github.com/reglet-dev/pybridge/domain/ports"
)

// funcBinding binds one logical C function to a Symbols field.
// Candidates are tried in order; the first one the library exports wins.
type funcBinding struct {
	name       string
	candidates []string
	optional   bool
	field      func(*Symbols) any
}

// objectBinding binds one logical global object.
// Indirect objects are PyObject* variables and are dereferenced once.
type objectBinding struct {
	name       string
	candidates []string
	indirect   bool
	assign     func(s *Symbols, addr uintptr)
}

func one(name string) []string { return []string{name} }

var funcBindings = []funcBinding{
	{name: "GetVersion", candidates: one("Py_GetVersion"), field: func(s *Symbols) any { return &s.GetVersion }},
	{name: "InitializeEx", candidates: one("Py_InitializeEx"), field: func(s *Symbols) any { return &s.InitializeEx }},
	{name: "IsInitialized", candidates: one("Py_IsInitialized"), field: func(s *Symbols) any { return &s.IsInitialized }},
	{name: "SetArgvEx", candidates: one("PySys_SetArgvEx"), optional: true, field: func(s *Symbols) any { return &s.SetArgvEx }},
	{name: "GILStateEnsure", candidates: one("PyGILState_Ensure"), field: func(s *Symbols) any { return &s.GILStateEnsure }},
	{name: "GILStateRelease", candidates: one("PyGILState_Release"), field: func(s *Symbols) any { return &s.GILStateRelease }},
	{name: "SaveThread", candidates: one("PyEval_SaveThread"), field: func(s *Symbols) any { return &s.SaveThread }},
	{name: "RestoreThread", candidates: one("PyEval_RestoreThread"), field: func(s *Symbols) any { return &s.RestoreThread }},

	{name: "IncRef", candidates: one("Py_IncRef"), field: func(s *Symbols) any { return &s.IncRef }},
	{name: "DecRef", candidates: one("Py_DecRef"), field: func(s *Symbols) any { return &s.DecRef }},

	{name: "GetAttrString", candidates: one("PyObject_GetAttrString"), field: func(s *Symbols) any { return &s.GetAttrString }},
	{name: "SetAttrString", candidates: one("PyObject_SetAttrString"), field: func(s *Symbols) any { return &s.SetAttrString }},
	{name: "Call", candidates: one("PyObject_Call"), field: func(s *Symbols) any { return &s.Call }},
	{name: "IsInstance", candidates: one("PyObject_IsInstance"), field: func(s *Symbols) any { return &s.IsInstance }},
	{name: "RichCompareBool", candidates: one("PyObject_RichCompareBool"), field: func(s *Symbols) any { return &s.RichCompareBool }},
	{name: "Repr", candidates: one("PyObject_Repr"), field: func(s *Symbols) any { return &s.Repr }},
	{name: "Str", candidates: one("PyObject_Str"), field: func(s *Symbols) any { return &s.Str }},
	{name: "CallableCheck", candidates: one("PyCallable_Check"), field: func(s *Symbols) any { return &s.CallableCheck }},

	{name: "BoolFromLong", candidates: one("PyBool_FromLong"), field: func(s *Symbols) any { return &s.BoolFromLong }},
	{
		name:       "IntFromSsize",
		candidates: []string{"PyInt_FromSsize_t", "PyLong_FromSsize_t"},
		field:      func(s *Symbols) any { return &s.IntFromSsize },
	},
	{
		name:       "IntAsSsize",
		candidates: []string{"PyInt_AsSsize_t", "PyLong_AsSsize_t"},
		field:      func(s *Symbols) any { return &s.IntAsSsize },
	},
	{name: "FloatFromDouble", candidates: one("PyFloat_FromDouble"), field: func(s *Symbols) any { return &s.FloatFromDouble }},
	{name: "FloatAsDouble", candidates: one("PyFloat_AsDouble"), field: func(s *Symbols) any { return &s.FloatAsDouble }},

	{
		name:       "BytesFromStringAndSize",
		candidates: []string{"PyString_FromStringAndSize", "PyBytes_FromStringAndSize"},
		field:      func(s *Symbols) any { return &s.BytesFromStringAndSize },
	},
	{
		name:       "BytesAsStringAndSize",
		candidates: []string{"PyString_AsStringAndSize", "PyBytes_AsStringAndSize"},
		field:      func(s *Symbols) any { return &s.BytesAsStringAndSize },
	},
	{
		name:       "UnicodeDecodeUTF8",
		candidates: []string{"PyUnicode_DecodeUTF8", "PyUnicodeUCS4_DecodeUTF8", "PyUnicodeUCS2_DecodeUTF8"},
		field:      func(s *Symbols) any { return &s.UnicodeDecodeUTF8 },
	},
	{
		name:       "UnicodeAsUTF8String",
		candidates: []string{"PyUnicode_AsUTF8String", "PyUnicodeUCS4_AsUTF8String", "PyUnicodeUCS2_AsUTF8String"},
		field:      func(s *Symbols) any { return &s.UnicodeAsUTF8String },
	},

	{name: "TupleNew", candidates: one("PyTuple_New"), field: func(s *Symbols) any { return &s.TupleNew }},
	{name: "TupleSize", candidates: one("PyTuple_Size"), field: func(s *Symbols) any { return &s.TupleSize }},
	{name: "TupleGetItem", candidates: one("PyTuple_GetItem"), field: func(s *Symbols) any { return &s.TupleGetItem }},
	{name: "TupleSetItem", candidates: one("PyTuple_SetItem"), field: func(s *Symbols) any { return &s.TupleSetItem }},
	{name: "ListNew", candidates: one("PyList_New"), field: func(s *Symbols) any { return &s.ListNew }},
	{name: "ListSize", candidates: one("PyList_Size"), field: func(s *Symbols) any { return &s.ListSize }},
	{name: "ListGetItem", candidates: one("PyList_GetItem"), field: func(s *Symbols) any { return &s.ListGetItem }},
	{name: "ListSetItem", candidates: one("PyList_SetItem"), field: func(s *Symbols) any { return &s.ListSetItem }},
	{name: "ListAppend", candidates: one("PyList_Append"), field: func(s *Symbols) any { return &s.ListAppend }},
	{name: "DictNew", candidates: one("PyDict_New"), field: func(s *Symbols) any { return &s.DictNew }},
	{name: "DictSize", candidates: one("PyDict_Size"), field: func(s *Symbols) any { return &s.DictSize }},
	{name: "DictSetItem", candidates: one("PyDict_SetItem"), field: func(s *Symbols) any { return &s.DictSetItem }},
	{name: "DictGetItemString", candidates: one("PyDict_GetItemString"), field: func(s *Symbols) any { return &s.DictGetItemString }},
	{name: "DictSetItemString", candidates: one("PyDict_SetItemString"), field: func(s *Symbols) any { return &s.DictSetItemString }},
	{name: "DictNext", candidates: one("PyDict_Next"), field: func(s *Symbols) any { return &s.DictNext }},

	{name: "ModuleGetDict", candidates: one("PyModule_GetDict"), field: func(s *Symbols) any { return &s.ModuleGetDict }},
	{name: "ImportModule", candidates: one("PyImport_ImportModule"), field: func(s *Symbols) any { return &s.ImportModule }},
	{name: "CompileString", candidates: one("Py_CompileString"), field: func(s *Symbols) any { return &s.CompileString }},
	{name: "EvalCode", candidates: one("PyEval_EvalCode"), field: func(s *Symbols) any { return &s.EvalCode }},

	{name: "CapsuleNew", candidates: one("PyCapsule_New"), field: func(s *Symbols) any { return &s.CapsuleNew }},
	{name: "CapsuleGetPointer", candidates: one("PyCapsule_GetPointer"), field: func(s *Symbols) any { return &s.CapsuleGetPointer }},
	{name: "CFunctionNewEx", candidates: one("PyCFunction_NewEx"), field: func(s *Symbols) any { return &s.CFunctionNewEx }},
	{name: "MemMalloc", candidates: one("PyMem_Malloc"), field: func(s *Symbols) any { return &s.MemMalloc }},

	{name: "ErrOccurred", candidates: one("PyErr_Occurred"), field: func(s *Symbols) any { return &s.ErrOccurred }},
	{name: "ErrFetch", candidates: one("PyErr_Fetch"), field: func(s *Symbols) any { return &s.ErrFetch }},
	{name: "ErrNormalizeException", candidates: one("PyErr_NormalizeException"), field: func(s *Symbols) any { return &s.ErrNormalizeException }},
	{name: "ErrRestore", candidates: one("PyErr_Restore"), field: func(s *Symbols) any { return &s.ErrRestore }},
	{name: "ErrClear", candidates: one("PyErr_Clear"), field: func(s *Symbols) any { return &s.ErrClear }},
	{name: "ErrSetString", candidates: one("PyErr_SetString"), field: func(s *Symbols) any { return &s.ErrSetString }},
}

var objectBindings = []objectBinding{
	{name: "None", candidates: one("_Py_NoneStruct"), assign: func(s *Symbols, a uintptr) { s.NoneStruct = a }},

	{name: "TypeType", candidates: one("PyType_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Type = s.static(a) }},
	{
		name:       "IntType",
		candidates: []string{"PyInt_Type", "PyLong_Type"},
		assign:     func(s *Symbols, a uintptr) { s.Types.Int = s.static(a) },
	},
	{name: "LongType", candidates: one("PyLong_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Long = s.static(a) }},
	{name: "BoolType", candidates: one("PyBool_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Bool = s.static(a) }},
	{name: "FloatType", candidates: one("PyFloat_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Float = s.static(a) }},
	{name: "ComplexType", candidates: one("PyComplex_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Complex = s.static(a) }},
	{name: "UnicodeType", candidates: one("PyUnicode_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Unicode = s.static(a) }},
	{
		name:       "StringType",
		candidates: []string{"PyString_Type", "PyBytes_Type"},
		assign:     func(s *Symbols, a uintptr) { s.Types.String = s.static(a) },
	},
	{name: "ListType", candidates: one("PyList_Type"), assign: func(s *Symbols, a uintptr) { s.Types.List = s.static(a) }},
	{name: "TupleType", candidates: one("PyTuple_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Tuple = s.static(a) }},
	{name: "DictType", candidates: one("PyDict_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Dict = s.static(a) }},
	{name: "SetType", candidates: one("PySet_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Set = s.static(a) }},
	{name: "FunctionType", candidates: one("PyFunction_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Function = s.static(a) }},
	{name: "MethodType", candidates: one("PyMethod_Type"), assign: func(s *Symbols, a uintptr) { s.Types.Method = s.static(a) }},

	{
		name:       "RuntimeError",
		candidates: one("PyExc_RuntimeError"),
		indirect:   true,
		assign:     func(s *Symbols, a uintptr) { s.Exceptions.RuntimeError = s.static(a) },
	},
	{
		name:       "TypeError",
		candidates: one("PyExc_TypeError"),
		indirect:   true,
		assign:     func(s *Symbols, a uintptr) { s.Exceptions.TypeError = s.static(a) },
	},
}

// LogicalNames returns every logical name the table binds, in table order.
func LogicalNames() []string {
	names := make([]string, 0, len(funcBindings)+len(objectBindings))
	for _, b := range funcBindings {
		names = append(names, b.name)
	}
	for _, b := range objectBindings {
		names = append(names, b.name)
	}
	return names
}

// SelectSymbols picks a concrete symbol for every logical name.
// has reports whether the library exports a symbol. A logical name whose
// candidates are all absent fails the selection unless it is optional.
func SelectSymbols(has func(name string) bool) (map[string]string, error) {
	selection := make(map[string]string, len(funcBindings)+len(objectBindings))

	pick := func(name string, candidates []string, optional bool) error {
		for _, c := range candidates {
			if has(c) {
				selection[name] = c
				return nil
			}
		}
		if optional {
			return nil
		}
		return &errors.ResolutionError{Symbol: strings.Join(candidates, " or ")}
	}

	for _, b := range funcBindings {
		if err := pick(b.name, b.candidates, b.optional); err != nil {
			return nil, err
		}
	}
	for _, b := range objectBindings {
		if err := pick(b.name, b.candidates, false); err != nil {
			return nil, err
		}
	}
	return selection, nil
}

// flavorOf derives the Flavor from a selection.
func flavorOf(selection map[string]string) entities.Flavor {
	var f entities.Flavor
	f.HasIntType = selection["IntType"] == "PyInt_Type"
	f.StringAsBytes = selection["BytesFromStringAndSize"] == "PyBytes_FromStringAndSize"
	switch {
	case strings.HasPrefix(selection["UnicodeDecodeUTF8"], "PyUnicodeUCS4_"):
		f.UnicodeWidth = "UCS4"
	case strings.HasPrefix(selection["UnicodeDecodeUTF8"], "PyUnicodeUCS2_"):
		f.UnicodeWidth = "UCS2"
	}
	return f
}

// bindSymbols fills a table from lib according to selection.
func bindSymbols(lib ports.Library, version entities.Version, selection map[string]string) (*Symbols, error) {
	s := NewSymbols(lib.Path(), version, selection)

	for _, b := range funcBindings {
		concrete, ok := selection[b.name]
		if !ok {
			continue
		}
		addr, _ := lib.Lookup(concrete)
		if err := lib.Bind(b.field(s), addr); err != nil {
			return nil, fmt.Errorf("bind %s: %w", concrete, err)
		}
	}

	for _, b := range objectBindings {
		addr, _ := lib.Lookup(selection[b.name])
		if b.indirect && addr != 0 {
			addr = derefAddr(addr)
		}
		b.assign(s, addr)
	}

	s.RefCnt = readRefcnt
	s.NewCallback = lib.NewCallback
	return s, nil
}
