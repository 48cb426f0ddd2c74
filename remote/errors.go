package remote

import "fmt"

// ErrorCode follows the classic storage API numbering
type ErrorCode int

const (
	OK           ErrorCode = 0
	EInternal    ErrorCode = -1
	EArgs        ErrorCode = -2
	EAgain       ErrorCode = -3
	ERateLimit   ErrorCode = -4
	EFailed      ErrorCode = -5
	ENoent       ErrorCode = -9
	EAccess      ErrorCode = -11
	EIncomplete  ErrorCode = -13
	EOverQuota   ErrorCode = -17
	ETempUnavail ErrorCode = -18
	EWrite       ErrorCode = -20
	ERead        ErrorCode = -21
)

var codeNames = map[ErrorCode]string{
	OK:           "No error",
	EInternal:    "Internal error",
	EArgs:        "Invalid argument",
	EAgain:       "Request failed, retrying",
	ERateLimit:   "Rate limit exceeded",
	EFailed:      "Failed permanently",
	ENoent:       "Not found",
	EAccess:      "Access denied",
	EIncomplete:  "Incomplete",
	EOverQuota:   "Over quota",
	ETempUnavail: "Temporarily not available",
	EWrite:       "Write error",
	ERead:        "Read error",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown error (%d)", int(c))
}

// Error is the outcome attached to finish and temporary-error events
type Error struct {
	Code    ErrorCode
	Message string
}

// Errorf builds an Error with a formatted detail message
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsOK reports whether e is nil or carries the OK code
func (e *Error) IsOK() bool {
	return e == nil || e.Code == OK
}

func (e *Error) Error() string {
	if e == nil {
		return OK.String()
	}
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Message)
}
