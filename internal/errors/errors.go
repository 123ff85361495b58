// Package errors provides structured error types for mockgen.
// Every error carries a category, a code and a retryable flag so the CLI can
// decide between aborting, warning and retrying.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the stage that produced them.
type ErrorCategory string

const (
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryIO       ErrorCategory = "IO"
	ErrCategorySchema   ErrorCategory = "SCHEMA"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeConfigUnreadable = "CONFIG_UNREADABLE"
	CodeConfigMalformed  = "CONFIG_MALFORMED"
	CodeInvalidValue     = "INVALID_VALUE"

	// IO codes
	CodeOutputUnwritable = "OUTPUT_UNWRITABLE"
	CodeWriteFailed      = "WRITE_FAILED"

	// Schema codes
	CodeReferenceMissing    = "REFERENCE_MISSING"
	CodeReferenceUnreadable = "REFERENCE_UNREADABLE"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeLedgerFailed   = "LEDGER_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// MockgenError is the structured error type used throughout the generator.
type MockgenError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *MockgenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *MockgenError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *MockgenError) Is(target error) bool {
	var t *MockgenError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new MockgenError.
func New(category ErrorCategory, code, message string) *MockgenError {
	return &MockgenError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new MockgenError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *MockgenError {
	e := New(category, code, message)
	e.Cause = cause
	return e
}

// WithDetails returns a copy of the error with additional details.
func (e *MockgenError) WithDetails(details map[string]interface{}) *MockgenError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var me *MockgenError
	if errors.As(err, &me) {
		return me.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a MockgenError.
func GetCategory(err error) ErrorCategory {
	var me *MockgenError
	if errors.As(err, &me) {
		return me.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
func GetCode(err error) string {
	var me *MockgenError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsFatal reports whether err must abort a run. Schema problems only degrade
// the output; everything else stops the generator.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return GetCategory(err) != ErrCategorySchema
}

func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryStorage && code == CodeUploadFailed
}

// Convenience constructors for common errors.

func NewConfigError(code, message string, cause error) *MockgenError {
	return Wrap(ErrCategoryConfig, code, message, cause)
}

func NewIOError(code, message string, cause error) *MockgenError {
	return Wrap(ErrCategoryIO, code, message, cause)
}

func NewSchemaError(code, message string, cause error) *MockgenError {
	return Wrap(ErrCategorySchema, code, message, cause)
}

func NewStorageError(code, message string, cause error) *MockgenError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *MockgenError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
