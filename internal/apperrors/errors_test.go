package apperrors

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorCodeValues(t *testing.T) {
	tests := []struct {
		name string
		code ErrorCode
	}{
		{"storage", ErrStorage},
		{"remote transient", ErrRemoteTransient},
		{"malformed document", ErrMalformedDocument},
		{"policy", ErrPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code == "" {
				t.Errorf("ErrorCode %q should not be empty", tt.name)
			}
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: &AppError{Code: ErrPolicy, Message: "journal entry has no matching progress row"},
			want:     "[POLICY_ERROR] journal entry has no matching progress row",
		},
		{
			name:     "error with underlying error",
			appError: &AppError{Code: ErrStorage, Message: "transaction failed", Err: errors.New("disk full")},
			want:     "[STORAGE_ERROR] transaction failed: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appError.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")

	withCause := &AppError{Code: ErrStorage, Message: "failed", Err: underlying}
	if got := withCause.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}

	noCause := &AppError{Code: ErrStorage, Message: "failed"}
	if got := noCause.Unwrap(); got != nil {
		t.Errorf("Unwrap() = %v, want nil", got)
	}
}

func TestNew(t *testing.T) {
	err := New(ErrMalformedDocument, "missing updatedAt")
	if err.Code != ErrMalformedDocument {
		t.Errorf("code = %q, want %q", err.Code, ErrMalformedDocument)
	}
	if err.Message != "missing updatedAt" {
		t.Errorf("message = %q, want 'missing updatedAt'", err.Message)
	}
	if err.Err != nil {
		t.Error("New() should not wrap an error")
	}
}

func TestWrap(t *testing.T) {
	underlying := errors.New("connection reset")
	err := Wrap(ErrRemoteTransient, "upload failed", underlying)

	if err.Code != ErrRemoteTransient {
		t.Errorf("code = %q, want %q", err.Code, ErrRemoteTransient)
	}
	if err.Err != underlying {
		t.Errorf("Err = %v, want %v", err.Err, underlying)
	}

	var _ error = err
	if err.Error() == "" {
		t.Error("Wrap() error message should not be empty")
	}
}

func TestWrap_withNilError(t *testing.T) {
	err := Wrap(ErrStorage, "test", nil)
	if err.Err != nil {
		t.Errorf("Wrap() with nil error should have nil Err, got %v", err.Err)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching AppError", &AppError{Code: ErrPolicy, Message: "x"}, ErrPolicy, true},
		{"non-matching AppError", &AppError{Code: ErrPolicy, Message: "x"}, ErrStorage, false},
		{"non-AppError", errors.New("plain"), ErrStorage, false},
		{"nil error", nil, ErrStorage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCodes_areUnique(t *testing.T) {
	codes := []ErrorCode{ErrStorage, ErrRemoteTransient, ErrMalformedDocument, ErrPolicy}
	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("ErrorCode %q is duplicated", code)
		}
		seen[code] = true
	}
}

func TestErrorCode_isUppercase(t *testing.T) {
	codes := []ErrorCode{ErrStorage, ErrRemoteTransient, ErrMalformedDocument, ErrPolicy}
	for _, code := range codes {
		str := string(code)
		if str != strings.ToUpper(str) {
			t.Errorf("ErrorCode %q should be uppercase", str)
		}
	}
}
