package internal

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// SecureLogger redacts credentials and signed URLs before handing messages to zerolog
type SecureLogger struct {
	zl        zerolog.Logger
	level     LogLevel
	debug     bool
	quiet     bool
	redactors []Redactor
}

// Redactor defines an interface for redacting sensitive information
type Redactor interface {
	Redact(input string) string
}

// CredentialRedactor redacts header-style credentials such as bearer tokens
type CredentialRedactor struct{}

func (r *CredentialRedactor) Redact(input string) string {
	patterns := []string{
		"Authorization:",
		"Bearer ",
		"X-Amz-Security-Token:",
		"aws_secret_access_key=",
		"Cookie:",
	}

	result := input
	for _, pattern := range patterns {
		result = redactAfter(result, pattern, " ;\n\r")
	}
	return result
}

// URLRedactor redacts sensitive URL parameters, including presigned S3 signatures
type URLRedactor struct{}

func (r *URLRedactor) Redact(input string) string {
	sensitiveParams := []string{
		"x-amz-signature=",
		"x-amz-credential=",
		"x-amz-security-token=",
		"access_token=",
		"token=",
		"key=",
		"secret=",
		"password=",
	}

	result := input
	for _, param := range sensitiveParams {
		result = redactAfter(result, param, "& \n")
	}
	return result
}

// SecretRedactor masks known secret values wherever they appear
type SecretRedactor struct {
	secrets []string
}

// NewSecretRedactor creates a redactor for the given values. Empty values are ignored.
func NewSecretRedactor(secrets ...string) *SecretRedactor {
	r := &SecretRedactor{}
	for _, secret := range secrets {
		if secret != "" {
			r.secrets = append(r.secrets, secret)
		}
	}
	return r
}

func (r *SecretRedactor) Redact(input string) string {
	for _, secret := range r.secrets {
		input = strings.ReplaceAll(input, secret, "[REDACTED]")
	}
	return input
}

// redactAfter replaces the value following every case-insensitive occurrence
// of pattern, up to the first byte in stops.
func redactAfter(input, pattern, stops string) string {
	const mask = "[REDACTED]"
	lowerPattern := strings.ToLower(pattern)

	result := input
	from := 0
	for {
		index := strings.Index(strings.ToLower(result[from:]), lowerPattern)
		if index == -1 {
			return result
		}
		start := from + index + len(pattern)
		end := start
		for end < len(result) && !strings.ContainsRune(stops, rune(result[end])) {
			end++
		}
		if end > start && result[start:end] != mask {
			result = result[:start] + mask + result[end:]
			end = start + len(mask)
		}
		from = end
	}
}

// NewSecureLogger creates a new secure logger writing human-readable lines to output
func NewSecureLogger(output io.Writer, level LogLevel, debug, quiet bool) *SecureLogger {
	writer := zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}

	return &SecureLogger{
		zl:    zerolog.New(writer).With().Timestamp().Logger(),
		level: level,
		debug: debug,
		quiet: quiet,
		redactors: []Redactor{
			&CredentialRedactor{},
			&URLRedactor{},
		},
	}
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger(debug, quiet bool) *SecureLogger {
	logger := NewSecureLogger(os.Stderr, LogLevelInfo, false, false)
	logger.SetDebug(debug)
	logger.SetQuiet(quiet)
	return logger
}

// With returns a child logger that adds key=value to every line
func (sl *SecureLogger) With(key string, value interface{}) *SecureLogger {
	child := *sl
	child.zl = sl.zl.With().Interface(key, value).Logger()
	child.redactors = append([]Redactor(nil), sl.redactors...)
	return &child
}

func (sl *SecureLogger) redactSensitiveData(input string) string {
	result := input
	for _, redactor := range sl.redactors {
		result = redactor.Redact(result)
	}
	return result
}

func (sl *SecureLogger) shouldLog(level LogLevel) bool {
	if sl.quiet && level > LogLevelError {
		return false
	}
	return level <= sl.level
}

func (sl *SecureLogger) write(level LogLevel, format string, args ...interface{}) {
	if !sl.shouldLog(level) {
		return
	}

	message := sl.redactSensitiveData(fmt.Sprintf(format, args...))
	event := sl.zl.WithLevel(level.zerolog())
	if sl.debug {
		if caller := callerLocation(); caller != "" {
			event = event.Str("caller", caller)
		}
	}
	event.Msg(message)
}

// callerLocation returns file:line of the first frame outside the logging files
func callerLocation() string {
	for depth := 2; depth <= 6; depth++ {
		_, file, line, ok := runtime.Caller(depth)
		if !ok {
			return ""
		}
		base := filepath.Base(file)
		if base == "logger.go" || base == "log.go" {
			continue
		}
		return fmt.Sprintf("%s:%d", base, line)
	}
	return ""
}

// Error logs an error message
func (sl *SecureLogger) Error(format string, args ...interface{}) {
	sl.write(LogLevelError, format, args...)
}

// Warn logs a warning message
func (sl *SecureLogger) Warn(format string, args ...interface{}) {
	sl.write(LogLevelWarn, format, args...)
}

// Info logs an info message
func (sl *SecureLogger) Info(format string, args ...interface{}) {
	sl.write(LogLevelInfo, format, args...)
}

// Debug logs a debug message
func (sl *SecureLogger) Debug(format string, args ...interface{}) {
	sl.write(LogLevelDebug, format, args...)
}

// LogHTTPRequest logs an HTTP request with sensitive data redacted
func (sl *SecureLogger) LogHTTPRequest(req *http.Request) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}

	sl.Debug("HTTP Request: %s %s Headers: %v", req.Method, sl.redactSensitiveData(req.URL.String()), sl.sanitizeHeaders(req.Header))
}

// LogHTTPResponse logs an HTTP response with sensitive data redacted
func (sl *SecureLogger) LogHTTPResponse(resp *http.Response) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}

	sl.Debug("HTTP Response: %d %s Headers: %v", resp.StatusCode, resp.Status, sl.sanitizeHeaders(resp.Header))
}

func (sl *SecureLogger) sanitizeHeaders(header http.Header) map[string]string {
	sanitized := make(map[string]string, len(header))
	for name, values := range header {
		if sl.isSensitiveHeader(name) {
			sanitized[name] = "[REDACTED]"
		} else {
			sanitized[name] = strings.Join(values, ", ")
		}
	}
	return sanitized
}

func (sl *SecureLogger) isSensitiveHeader(name string) bool {
	sensitiveHeaders := []string{
		"authorization",
		"cookie",
		"x-amz-security-token",
		"x-auth-token",
		"x-api-key",
		"bearer",
		"token",
	}

	lowerName := strings.ToLower(name)
	for _, sensitive := range sensitiveHeaders {
		if strings.Contains(lowerName, sensitive) {
			return true
		}
	}
	return false
}

// SetLevel sets the logging level. Setters are not synchronized and are
// meant for configuring a logger before it is shared.
func (sl *SecureLogger) SetLevel(level LogLevel) {
	sl.level = level
}

// SetDebug enables or disables debug mode
func (sl *SecureLogger) SetDebug(debug bool) {
	sl.debug = debug
	if debug && sl.level < LogLevelDebug {
		sl.level = LogLevelDebug
	}
}

// SetQuiet enables or disables quiet mode
func (sl *SecureLogger) SetQuiet(quiet bool) {
	sl.quiet = quiet
	if quiet {
		sl.level = LogLevelError
	}
}

// AddRedactor adds a custom redactor
func (sl *SecureLogger) AddRedactor(redactor Redactor) {
	sl.redactors = append(sl.redactors, redactor)
}
