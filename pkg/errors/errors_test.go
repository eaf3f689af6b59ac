package errors

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", 500)

	if err.Cause != originalErr {
		t.Errorf("Cause = %v, want %v", err.Cause, originalErr)
	}

	// Check error message includes cause
	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "original error") {
		t.Errorf("Error() should contain cause, got: %v", errorMsg)
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("field", "value").WithContext("count", 42)

	if err.Context["field"] != "value" {
		t.Errorf("Context[field] = %v, want 'value'", err.Context["field"])
	}
	if err.Context["count"] != 42 {
		t.Errorf("Context[count] = %v, want 42", err.Context["count"])
	}
}

func TestNewRateLimitError(t *testing.T) {
	err := NewRateLimitError(300 * time.Second)
	if err.Code != ErrCodeRateLimit {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeRateLimit)
	}
	if err.HTTPStatus != 429 {
		t.Errorf("HTTPStatus = %v, want 429", err.HTTPStatus)
	}
	if got := err.RetryAfter(); got != 300*time.Second {
		t.Errorf("RetryAfter() = %v, want 300s", got)
	}
}

func TestNewConfigurationError(t *testing.T) {
	err := NewConfigurationError("app id is not configured")
	if err.Code != ErrCodeConfiguration {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeConfiguration)
	}
	if err.HTTPStatus != 500 {
		t.Errorf("HTTPStatus = %v, want 500", err.HTTPStatus)
	}
}

func TestGetAppError_Wrapped(t *testing.T) {
	inner := NewNotFoundError("live session")
	wrapped := WrapError(inner, ErrCodeInternal, "lookup failed", 500)

	got := GetAppError(wrapped)
	if got == nil {
		t.Fatal("GetAppError() returned nil for wrapped AppError")
	}
	if got.Code != ErrCodeInternal {
		t.Errorf("Code = %v, want %v", got.Code, ErrCodeInternal)
	}
}

func TestGetAppError_NotAppError(t *testing.T) {
	if got := GetAppError(errors.New("plain")); got != nil {
		t.Errorf("GetAppError() = %v, want nil", got)
	}
	if got := GetAppError(nil); got != nil {
		t.Errorf("GetAppError(nil) = %v, want nil", got)
	}
}
