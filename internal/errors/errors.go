// Package errors provides a lightweight structured error type (CodegendError)
// for category-based classification and severity routing in the CLI and daemon.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a codegend error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Generation pipeline errors
	CategoryGenerate   ErrorCategory = "generate"
	CategoryCompile    ErrorCategory = "compile"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryStorage  ErrorCategory = "storage"
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// CodegendError is a structured error with category, severity, and context
type CodegendError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for CodegendError
type ContextFields map[string]any

// Error implements the error interface
func (e *CodegendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *CodegendError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *CodegendError) WithContext(key string, value any) *CodegendError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new CodegendError
func New(category ErrorCategory, severity ErrorSeverity, message string) *CodegendError {
	return &CodegendError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new CodegendError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *CodegendError {
	return &CodegendError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if ce, ok := err.(*CodegendError); ok {
		return ce.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal otherwise
func GetCategory(err error) ErrorCategory {
	if ce, ok := err.(*CodegendError); ok {
		return ce.Category
	}
	return CategoryInternal
}

// GetSeverity extracts the severity from an error, or returns SeverityError otherwise
func GetSeverity(err error) ErrorSeverity {
	if ce, ok := err.(*CodegendError); ok {
		return ce.Severity
	}
	return SeverityError
}

// AsCodegend extracts a *CodegendError from an error chain.
func AsCodegend(err error) (*CodegendError, bool) {
	for err != nil {
		if ce, ok := err.(*CodegendError); ok {
			return ce, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
