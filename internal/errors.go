package internal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents different types of session errors
type ErrorType int

const (
	ErrNotLoggedIn ErrorType = iota
	ErrNodeNotFound
	ErrNotADirectory
	ErrSessionBusy
	ErrInvalidSelection
	ErrRemoteRequestFailed
	ErrTransferFailed
	ErrOverQuota
	ErrNodeUnavailable
	ErrSessionClosed
	ErrUnsupportedLink
	ErrTimeout
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// SessionError is the typed error returned by session, tracker and backend code.
// Code carries the remote API error code when one exists.
type SessionError struct {
	Code       int                    `json:"code"`
	Message    string                 `json:"message"`
	Type       ErrorType              `json:"type"`
	Severity   ErrorSeverity          `json:"severity"`
	Op         string                 `json:"op,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	RetryAfter int                    `json:"retry_after,omitempty"` // seconds
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *SessionError) Error() string {
	var parts []string

	head := e.Type.String()
	if e.Op != "" {
		head = fmt.Sprintf("%s failed: %s", e.Op, head)
	}
	if e.Type == ErrRemoteRequestFailed || e.Type == ErrTransferFailed || e.Code != 0 {
		head = fmt.Sprintf("%s (code %d)", head, e.Code)
	}
	parts = append(parts, head)

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	return strings.Join(parts, " - ")
}

// DetailedError returns a multi-line message with context and suggestion
func (e *SessionError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s", e.Severity.String(), e.Type.String()))

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("Operation: %s", e.Op))
	}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("Code: %d", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("Message: %s", e.Message))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("Retry after: %d seconds", e.RetryAfter))
	}

	return strings.Join(parts, "\n")
}

// Is reports whether target is a SessionError of the same type, so that
// errors.Is(err, &SessionError{Type: ErrSessionBusy}) works.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// String returns the string representation of ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrNotLoggedIn:
		return "NotLoggedIn"
	case ErrNodeNotFound:
		return "NodeNotFound"
	case ErrNotADirectory:
		return "NotADirectory"
	case ErrSessionBusy:
		return "SessionBusy"
	case ErrInvalidSelection:
		return "InvalidSelection"
	case ErrRemoteRequestFailed:
		return "RemoteRequestFailed"
	case ErrTransferFailed:
		return "TransferFailed"
	case ErrOverQuota:
		return "OverQuota"
	case ErrNodeUnavailable:
		return "NodeUnavailable"
	case ErrSessionClosed:
		return "SessionClosed"
	case ErrUnsupportedLink:
		return "UnsupportedLink"
	case ErrTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// String returns the string representation of ErrorSeverity
func (es ErrorSeverity) String() string {
	switch es {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// NewSessionError creates a SessionError with default suggestion and severity
func NewSessionError(code int, message string, errorType ErrorType) *SessionError {
	return &SessionError{
		Code:       code,
		Message:    message,
		Type:       errorType,
		Severity:   getDefaultSeverity(errorType),
		Suggestion: getDefaultSuggestion(errorType),
		Context:    make(map[string]interface{}),
	}
}

// WithOp names the operation that failed
func (e *SessionError) WithOp(op string) *SessionError {
	e.Op = op
	return e
}

// WithSuggestion adds a custom suggestion to the error
func (e *SessionError) WithSuggestion(suggestion string) *SessionError {
	e.Suggestion = suggestion
	return e
}

// WithRetryAfter sets the retry delay for over-quota errors
func (e *SessionError) WithRetryAfter(seconds int) *SessionError {
	e.RetryAfter = seconds
	return e
}

// WithContext adds context information to the error
func (e *SessionError) WithContext(key string, value interface{}) *SessionError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if repeating the operation later may succeed
func (e *SessionError) IsRetryable() bool {
	switch e.Type {
	case ErrOverQuota, ErrSessionBusy, ErrTimeout:
		return true
	default:
		return false
	}
}

// IsCritical returns true if the error is critical and should stop execution
func (e *SessionError) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// IsType reports whether err wraps a SessionError of type t
func IsType(err error, t ErrorType) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Type == t
	}
	return false
}

// ValidationError represents configuration and input validation errors
type ValidationError struct {
	Field      string                 `json:"field"`
	Message    string                 `json:"message"`
	Value      interface{}            `json:"value,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := []string{fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// DetailedError returns a detailed validation error message
func (e *ValidationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Validation Error for field '%s'", e.Field))
	parts = append(parts, fmt.Sprintf("Message: %s", e.Message))

	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("Provided value: %v", e.Value))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(contextParts)
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "\n")
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewValidationErrorWithValue creates a ValidationError with the invalid value
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Context: make(map[string]interface{}),
	}
}

// WithSuggestion adds a suggestion to the validation error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

// WithContext adds context to the validation error
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func getDefaultSuggestion(errorType ErrorType) string {
	switch errorType {
	case ErrNotLoggedIn:
		return "Open a folder or file link first"
	case ErrNodeNotFound:
		return "Refresh the listing, the node may have been removed"
	case ErrNotADirectory:
		return "This operation needs a folder link"
	case ErrSessionBusy:
		return "Wait for the current request to finish"
	case ErrInvalidSelection:
		return "Use indices and ranges like 1,3,5-7"
	case ErrRemoteRequestFailed:
		return "Check that the link is valid and still shared"
	case ErrTransferFailed:
		return "Download failed. Check available disk space and network connection"
	case ErrOverQuota:
		return "The backend quota is exhausted. The transfer continues once it resets"
	case ErrNodeUnavailable:
		return "Check that the destination directory exists and is writable"
	case ErrSessionClosed:
		return "Open the link again to start a new session"
	case ErrUnsupportedLink:
		return "Supported links are file:///path and s3://bucket/prefix"
	case ErrTimeout:
		return "The session is in an unknown state. Quit and open the link again"
	default:
		return "Please check the error details and try again"
	}
}

func getDefaultSeverity(errorType ErrorType) ErrorSeverity {
	switch errorType {
	case ErrOverQuota, ErrSessionBusy:
		return SeverityWarning
	case ErrNodeUnavailable:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// Common error constructors

// NewNotLoggedInError reports an operation that needs a current node
func NewNotLoggedInError(op string) *SessionError {
	return NewSessionError(0, "no current node", ErrNotLoggedIn).WithOp(op)
}

// NewNodeNotFoundError reports a handle that no longer resolves
func NewNodeNotFoundError(handle string) *SessionError {
	return NewSessionError(0, fmt.Sprintf("node %q not found", handle), ErrNodeNotFound).
		WithContext("handle", handle)
}

// NewNotADirectoryError reports a folder-only operation on a file
func NewNotADirectoryError(name string) *SessionError {
	return NewSessionError(0, fmt.Sprintf("%q is not a folder", name), ErrNotADirectory)
}

// NewSessionBusyError reports a request issued while another is pending
func NewSessionBusyError(op, pending string) *SessionError {
	return NewSessionError(0, fmt.Sprintf("%s is still pending", pending), ErrSessionBusy).
		WithOp(op).
		WithContext("pending", pending)
}

// NewInvalidSelectionError reports a malformed selection expression
func NewInvalidSelectionError(expr, reason string) *SessionError {
	return NewSessionError(0, reason, ErrInvalidSelection).
		WithContext("expression", expr)
}

// NewRemoteRequestError wraps a non-OK request completion
func NewRemoteRequestError(op string, code int, message string) *SessionError {
	return NewSessionError(code, message, ErrRemoteRequestFailed).WithOp(op)
}

// NewTransferFailedError wraps a non-OK transfer completion
func NewTransferFailedError(name string, code int, message string) *SessionError {
	return NewSessionError(code, message, ErrTransferFailed).
		WithOp("download").
		WithContext("transfer", name)
}

// NewOverQuotaError reports a quota condition and the next retry delay
func NewOverQuotaError(retryAfter int) *SessionError {
	return NewSessionError(0, "backend quota exceeded", ErrOverQuota).
		WithRetryAfter(retryAfter)
}

// NewNodeUnavailableError reports a node or destination that cannot be used
func NewNodeUnavailableError(path, reason string) *SessionError {
	return NewSessionError(0, reason, ErrNodeUnavailable).
		WithContext("path", path)
}

// NewSessionClosedError reports an operation on a closed session
func NewSessionClosedError(op string) *SessionError {
	return NewSessionError(0, "session is closed", ErrSessionClosed).WithOp(op)
}

// NewUnsupportedLinkError reports a link no backend can open
func NewUnsupportedLinkError(link, reason string) *SessionError {
	return NewSessionError(0, reason, ErrUnsupportedLink).
		WithContext("link", redactSensitiveURL(link))
}

// NewTimeoutError reports a wait that ended before the completion event
func NewTimeoutError(op string) *SessionError {
	return NewSessionError(0, "no completion event before the deadline", ErrTimeout).WithOp(op)
}

func redactSensitiveURL(url string) string {
	if idx := strings.Index(url, "?"); idx >= 0 {
		return url[:idx] + "?[REDACTED]"
	}
	return url
}
