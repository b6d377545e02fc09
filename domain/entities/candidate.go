package entities

// CandidateSource tells where a library candidate came from.
type CandidateSource string

const (
	// SourceOverride is the LIBPYTHON environment variable or an explicit option.
	SourceOverride CandidateSource = "override"
	// SourceSearch is the investigator-driven search order.
	SourceSearch CandidateSource = "search"
)

// Candidate is one libpython path considered during resolution.
type Candidate struct {
	Path   string          `json:"path" yaml:"path"`
	Source CandidateSource `json:"source" yaml:"source"`

	// Error is set when loading or binding this candidate failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Flavor records the version-dependent choices made while binding symbols.
type Flavor struct {
	// HasIntType is true for runtimes with a separate int type (Python 2).
	HasIntType bool `json:"has_int_type" yaml:"has_int_type"`

	// StringAsBytes is true when the 8-bit string API is the bytes API.
	StringAsBytes bool `json:"string_as_bytes" yaml:"string_as_bytes"`

	// UnicodeWidth is "", "UCS2" or "UCS4" depending on which unicode
	// entry points the library exports.
	UnicodeWidth string `json:"unicode_width,omitempty" yaml:"unicode_width,omitempty"`
}

// Report summarizes a resolution for diagnostics.
type Report struct {
	Python     string            `json:"python" yaml:"python"`
	Version    Version           `json:"version" yaml:"version"`
	Library    string            `json:"library" yaml:"library"`
	PythonHome string            `json:"python_home,omitempty" yaml:"python_home,omitempty"`
	Candidates []Candidate       `json:"candidates" yaml:"candidates"`
	Selection  map[string]string `json:"selection" yaml:"selection"`
	Flavor     Flavor            `json:"flavor" yaml:"flavor"`
	Error      *ErrorDetail      `json:"error,omitempty" yaml:"error,omitempty"`
}
