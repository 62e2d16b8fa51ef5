// Package apperrors provides the error taxonomy for the sync core.
package apperrors

import "fmt"

// ErrorCode names one of the kinds of failure this core distinguishes.
type ErrorCode string

const (
	// ErrStorage: the local store failed a read or transaction. Surfaced to
	// the caller of the Repository method; a cycle-level occurrence aborts
	// the engine's cycle with status "error".
	ErrStorage ErrorCode = "STORAGE_ERROR"

	// ErrRemoteTransient: the Remote Gateway failed. Never surfaced to the
	// caller; recorded on the journal entry as an incremented retry count.
	ErrRemoteTransient ErrorCode = "REMOTE_TRANSIENT_ERROR"

	// ErrMalformedDocument: a downloaded record is missing or has invalid
	// fields. Warned and skipped; the download phase continues.
	ErrMalformedDocument ErrorCode = "MALFORMED_REMOTE_DOCUMENT"

	// ErrPolicy: an internal contract violation, e.g. a journal entry
	// without a matching progress row. Logged as a warning, never fatal.
	ErrPolicy ErrorCode = "POLICY_ERROR"
)

// AppError represents an application error tagged with one of the kinds
// above.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with no wrapped cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Is checks whether err is an *AppError carrying the given code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
