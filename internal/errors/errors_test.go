package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestMockgenError_Error(t *testing.T) {
	err := New(ErrCategoryIO, CodeOutputUnwritable, "cannot create output root")
	expected := "[IO:OUTPUT_UNWRITABLE] cannot create output root"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestMockgenError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload failed", cause)
	expected := "[STORAGE:UPLOAD_FAILED] upload failed: permission denied"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestMockgenError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryConfig, CodeConfigMalformed, "bad yaml", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestMockgenError_Is(t *testing.T) {
	err1 := New(ErrCategoryConfig, CodeInvalidValue, "users < 0")
	err2 := New(ErrCategoryConfig, CodeInvalidValue, "days < 0")
	err3 := New(ErrCategoryConfig, CodeConfigMalformed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("app: %w", err1)
	if !errors.Is(wrapped, New(ErrCategoryConfig, CodeInvalidValue, "")) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryStorage, CodeLedgerFailed, false},
		{ErrCategoryConfig, CodeConfigMalformed, false},
		{ErrCategoryIO, CodeWriteFailed, false},
		{ErrCategorySchema, CodeReferenceMissing, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("mirror: %w", NewSchemaError(CodeReferenceUnreadable, "bad header", nil))
	if GetCategory(err) != ErrCategorySchema {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategorySchema)
	}
	if GetCode(err) != CodeReferenceUnreadable {
		t.Errorf("got %q, want %q", GetCode(err), CodeReferenceUnreadable)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" || GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("plain errors should have no category or code")
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(nil) {
		t.Error("nil is not fatal")
	}
	if IsFatal(NewSchemaError(CodeReferenceMissing, "no dir", nil)) {
		t.Error("schema errors degrade output only")
	}
	if !IsFatal(NewIOError(CodeOutputUnwritable, "ro fs", nil)) {
		t.Error("io errors are fatal")
	}
	if !IsFatal(fmt.Errorf("plain")) {
		t.Error("unclassified errors are fatal")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryConfig, CodeInvalidValue, "bad probability")
	detailed := err.WithDetails(map[string]interface{}{"field": "probabilities.wheel"})

	if detailed.Details["field"] != "probabilities.wheel" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	c := NewConfigError(CodeConfigUnreadable, "missing file", cause)
	if c.Category != ErrCategoryConfig || !errors.Is(c, cause) {
		t.Error("NewConfigError mismatch")
	}

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !s.Retryable {
		t.Error("NewStorageError mismatch")
	}

	io := NewIOError(CodeWriteFailed, "disk full", cause)
	if io.Category != ErrCategoryIO {
		t.Error("NewIOError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
