package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// StorageErrorMessage describes inventory database failures.
	StorageErrorMessage = "inventory storage failed"
	// ModelErrorMessage describes language model failures.
	ModelErrorMessage = "language model request failed"
	// ValidationErrorMessage describes malformed caller input.
	ValidationErrorMessage = "invalid request"
)

var (
	// ErrAuthenticationRequired marks a write statement without the write token.
	ErrAuthenticationRequired = errors.New("Authentication required for updates")
	// ErrDestructiveStatement marks a DELETE/DROP style statement.
	ErrDestructiveStatement = errors.New("Destructive statements (DELETE, DROP) are not permitted")
	// ErrUnreadableQuery marks a query tool call whose arguments are not a single SQL string.
	ErrUnreadableQuery = errors.New("The generated query could not be read, so it was not executed")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Validation wraps caller input errors.
func Validation(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadRequest, ValidationErrorMessage)
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the safe message carried by err, or the system message.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}
