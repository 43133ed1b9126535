// Package errors provides the structured error type used across specto and
// a parser for Elm compiler diagnostics.
//
// Errors carry a Type and a Recoverable flag. Recoverable errors stay local
// to one build cycle or one connection; non-recoverable ones (a lost watch
// subscription, a socket that cannot be bound) end the process.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeWatch    ErrorType = "watch"
	ErrorTypeBuild    ErrorType = "build"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeServer   ErrorType = "server"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeWatchFailed      = "ERR_WATCH_FAILED"
	ErrCodeWatchRootRemoved = "ERR_WATCH_ROOT_REMOVED"
	ErrCodeWatchEvent       = "ERR_WATCH_EVENT"
	ErrCodeBuildFailed      = "ERR_BUILD_FAILED"
	ErrCodeBuildTimeout     = "ERR_BUILD_TIMEOUT"
	ErrCodeCompilerNotFound = "ERR_COMPILER_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeSourceNotFound   = "ERR_SOURCE_NOT_FOUND"
	ErrCodeBindFailed       = "ERR_BIND_FAILED"
	ErrCodeArtifactMissing  = "ERR_ARTIFACT_MISSING"
	ErrCodeHandshakeFailed  = "ERR_HANDSHAKE_FAILED"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// SpectoError is a structured error type with context.
type SpectoError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *SpectoError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if path, ok := e.Context["path"].(string); ok && path != "" {
		parts = append(parts, path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SpectoError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SpectoError with the same type and code.
func (e *SpectoError) Is(target error) bool {
	var t *SpectoError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SpectoError) WithContext(key string, value interface{}) *SpectoError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath records the filesystem path the error is about.
func (e *SpectoError) WithPath(path string) *SpectoError {
	return e.WithContext("path", path)
}

// NewWatchError creates a watch error. Fatal watch errors end the coordinator.
func NewWatchError(code, message string, cause error, fatal bool) *SpectoError {
	return &SpectoError{
		Type:        ErrorTypeWatch,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: !fatal,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *SpectoError {
	return &SpectoError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *SpectoError {
	return &SpectoError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewServerError creates a server error.
func NewServerError(code, message string, cause error) *SpectoError {
	return &SpectoError{
		Type:        ErrorTypeServer,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SpectoError {
	return &SpectoError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *SpectoError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsFatal reports whether err must stop the whole process. Errors that are
// not SpectoErrors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	return !IsRecoverable(err)
}

// IsWatchError checks if an error came from the filesystem watch.
func IsWatchError(err error) bool {
	var se *SpectoError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeWatch
	}

	return false
}

// ErrWatchRootRemoved creates the fatal error raised when the watched tree disappears.
func ErrWatchRootRemoved(root string) *SpectoError {
	return NewWatchError(ErrCodeWatchRootRemoved, "watched directory was removed", nil, true).WithPath(root)
}

// ErrSourceNotFound creates the setup error for a missing entry point.
func ErrSourceNotFound(path string, cause error) *SpectoError {
	return NewConfigError(ErrCodeSourceNotFound, "source file not found", cause).WithPath(path)
}

// ErrCompilerNotFound creates the setup error for a missing compiler binary.
func ErrCompilerNotFound(command string, cause error) *SpectoError {
	return NewConfigError(
		ErrCodeCompilerNotFound,
		fmt.Sprintf("compiler %q not found in PATH (install it from https://guide.elm-lang.org/install/)", command),
		cause,
	)
}

// ErrBindFailed creates the setup error for a listener that cannot be bound.
func ErrBindFailed(address string, cause error) *SpectoError {
	return NewServerError(ErrCodeBindFailed, "cannot listen on "+address, cause).
		WithContext("address", address)
}
