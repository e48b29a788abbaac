package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of pipeline errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeAdmission  ErrorType = "admission"
	ErrorTypeResource   ErrorType = "resource"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes shared across the guard components. Security codes are part of
// the external contract and must stay stable.
const (
	CodeChecksumMismatch    = "CHECKSUM_MISMATCH"
	CodeJavaScriptDetected  = "JAVASCRIPT_DETECTED"
	CodeEmbeddedFiles       = "EMBEDDED_FILES_DETECTED"
	CodePathTraversal       = "PATH_TRAVERSAL"
	CodeNullByte            = "NULL_BYTE"
	CodeBaseNotAllowed      = "BASE_NOT_ALLOWED"
	CodeSymlinkDenied       = "SYMLINK_DENIED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeConcurrencyExceeded = "CONCURRENCY_EXCEEDED"
	CodeMemoryExceeded      = "MEMORY_EXCEEDED"
	CodeBiDiDetected        = "BIDI_DETECTED"
)

// GuardError is a structured error type carried across the security pipeline.
type GuardError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *GuardError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *GuardError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *GuardError) Is(target error) bool {
	var t *GuardError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *GuardError) WithContext(key string, value interface{}) *GuardError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent records the guard component that produced the error.
func (e *GuardError) WithComponent(component string) *GuardError {
	e.Component = component

	return e
}

// Error creation functions

// NewSecurityError creates a non-recoverable security error.
func NewSecurityError(code, message string) *GuardError {
	return &GuardError{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewAdmissionError creates a recoverable admission (rate/concurrency) error.
func NewAdmissionError(code, message string) *GuardError {
	return &GuardError{
		Type:        ErrorTypeAdmission,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewResourceError creates a recoverable resource-budget error.
func NewResourceError(code, message string) *GuardError {
	return &GuardError{
		Type:        ErrorTypeResource,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *GuardError {
	return &GuardError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *GuardError {
	return &GuardError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *GuardError {
	return &GuardError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *GuardError {
	return &GuardError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error classification utilities

// IsRecoverable checks if an error is recoverable by backing off or shrinking
// the request.
func IsRecoverable(err error) bool {
	var ge *GuardError
	if errors.As(err, &ge) {
		return ge.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var ge *GuardError
	if errors.As(err, &ge) {
		return ge.Type == ErrorTypeSecurity
	}

	return false
}

// CodeOf extracts the guard error code, or "" for foreign errors.
func CodeOf(err error) string {
	var ge *GuardError
	if errors.As(err, &ge) {
		return ge.Code
	}

	return ""
}

// ContextOf extracts the guard error context, or nil for foreign errors.
func ContextOf(err error) map[string]interface{} {
	var ge *GuardError
	if errors.As(err, &ge) {
		return ge.Context
	}

	return nil
}

// Convenience constructors for well-known attacks

// ErrPathTraversal creates an error for path traversal attempts.
func ErrPathTraversal(path string) *GuardError {
	return NewSecurityError(CodePathTraversal, "path traversal attempt detected").
		WithContext("path", path)
}

// ErrNullByte creates an error for embedded null bytes in paths.
func ErrNullByte(path string) *GuardError {
	return NewSecurityError(CodeNullByte, "null byte in path").
		WithContext("path", path)
}

// ErrChecksumMismatch creates an error carrying both digests so the caller
// can log the evidence.
func ErrChecksumMismatch(path, expected, actual string) *GuardError {
	return NewSecurityError(CodeChecksumMismatch, "template checksum mismatch").
		WithContext("path", path).
		WithContext("expected", expected).
		WithContext("actual", actual)
}
