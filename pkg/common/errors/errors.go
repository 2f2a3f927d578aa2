package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common sentinel errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")

	// ErrAlreadyExists is returned when creating a tag at an occupied path.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNoSuchValue is returned when an enum tag does not know a value name.
	ErrNoSuchValue = errors.New("no such value")
	// ErrIllegalMutation is returned for mutations a tag kind does not support,
	// such as adding blocks to a virtual tag or saving a memory-only tag.
	ErrIllegalMutation = errors.New("illegal mutation")
	// ErrInvalidExpression is the root of all lexer and parser failures.
	ErrInvalidExpression = errors.New("invalid expression")
)

// AppError represents an application-specific error with an HTTP status code.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MapError maps a common error to an AppError with an appropriate HTTP status code.
func MapError(err error) *AppError {
	if err == nil {
		return nil
	}

	// Check for existing AppError
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	// Map sentinel errors
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidExpression):
		return NewAppError(http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoSuchValue):
		return NewAppError(http.StatusNotFound, "Resource not found", err)
	case errors.Is(err, ErrAlreadyExists):
		return NewAppError(http.StatusConflict, "Resource already exists", err)
	case errors.Is(err, ErrIllegalMutation):
		return NewAppError(http.StatusUnprocessableEntity, "Operation not allowed", err)
	}

	// Default to internal server error
	return NewAppError(http.StatusInternalServerError, "Internal server error", err)
}
