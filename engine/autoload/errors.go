package autoload

import "fmt"

// Error codes
const (
	ErrCodeDiscoveryFailed = "AUTOLOAD_DISCOVERY_FAILED"
	ErrCodeFileFailed      = "AUTOLOAD_FILE_FAILED"
	ErrCodeInvalidPattern  = "INVALID_PATTERN"
	ErrCodePathEscape      = "PATH_ESCAPE_ATTEMPT"
)

// Error is a loading failure tagged with a stable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given code and cause
func NewError(err error, code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NewErrorf creates an Error with a formatted message
func NewErrorf(err error, code, format string, args ...any) *Error {
	return NewError(err, code, fmt.Sprintf(format, args...))
}
