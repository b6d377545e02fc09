package entities

import "fmt"

// ErrorDetail is the structured form of a bridge error, as printed by
// `pybridge doctor`.
//
// Type is one of "resolution", "initialization", "python", "config", "exec"
// or "internal".
type ErrorDetail struct {
	// Wrapped is the detail of the underlying cause, when it has one.
	Wrapped *ErrorDetail `json:"wrapped,omitempty" yaml:"wrapped,omitempty"`

	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`

	Message string `json:"message" yaml:"message"`
	Type    string `json:"type" yaml:"type"`
	Code    string `json:"code" yaml:"code"`

	// Traceback holds the formatted Python traceback for "python" errors.
	Traceback string `json:"traceback,omitempty" yaml:"traceback,omitempty"`
}

// Error renders "type: message [code]: wrapped".
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}

// NewErrorDetail creates a new ErrorDetail with the given type and message.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{Type: errorType, Message: message}
}

// WithCode attaches a code and returns the same ErrorDetail.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}
