// Package errors defines custom error types and error handling utilities for the cluster key manager.
// This package provides structured error types that carry a stable code and an HTTP status.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// AppError represents a structured error with additional metadata
type AppError interface {
	error

	// Code returns the stable error code
	Code() Code

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) AppError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) AppError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

// baseError is the internal implementation of AppError
type baseError struct {
	code        Code
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Code returns the error code
func (e *baseError) Code() Code {
	return e.code
}

// HTTPStatus returns the HTTP status code
func (e *baseError) HTTPStatus() int {
	return e.httpStatus
}

// Description returns the error description
func (e *baseError) Description() string {
	return e.description
}

// Unwrap returns the underlying cause error
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is reports whether target is an AppError with the same code, so sentinel
// values work with errors.Is.
func (e *baseError) Is(target error) bool {
	t, ok := target.(AppError)
	if !ok {
		return false
	}
	return t.Code() == e.code
}

// WithCause adds a cause error to the error chain
func (e *baseError) WithCause(cause error) AppError {
	e.cause = cause
	return e
}

// WithMetadata adds additional context metadata
func (e *baseError) WithMetadata(key string, value interface{}) AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all metadata
func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new AppError with the specified parameters
func NewError(code Code, httpStatus int, description string, message string) AppError {
	if httpStatus == 0 {
		httpStatus = StatusForCode(code)
	}
	return &baseError{
		code:        code,
		httpStatus:  httpStatus,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Sentinel Errors
// ================================================================================

// Sentinels for errors.Is comparisons. They are never returned directly;
// constructors below build fresh values carrying the same code.
var (
	ErrKeyNotFound      = NewError(CodeKeyNotFound, http.StatusNotFound, "no matching key", "")
	ErrDeadlineExceeded = NewError(CodeDeadlineExceeded, http.StatusGatewayTimeout, "deadline exceeded", "")
	ErrStoreUnavailable = NewError(CodeStoreUnavailable, http.StatusServiceUnavailable, "key store unavailable", "")
	ErrDuplicateKey     = NewError(CodeDuplicateKey, http.StatusConflict, "duplicate key id", "")
	ErrInvalidArgument  = NewError(CodeInvalidArgument, http.StatusBadRequest, "invalid argument", "")
	ErrIllegalState     = NewError(CodeIllegalState, http.StatusConflict, "illegal state", "")
	ErrInternal         = NewError(CodeInternal, http.StatusInternalServerError, "internal error", "")
)

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// KeyNotFound creates a key_not_found error
func KeyNotFound(message string) AppError {
	return NewError(
		CodeKeyNotFound,
		http.StatusNotFound,
		"No key in the cache satisfies the lookup.",
		message,
	)
}

// DeadlineExceeded creates a deadline_exceeded error
func DeadlineExceeded(message string) AppError {
	return NewError(
		CodeDeadlineExceeded,
		http.StatusGatewayTimeout,
		"The operation did not complete before its deadline.",
		message,
	)
}

// StoreUnavailable creates a store_unavailable error
func StoreUnavailable(message string) AppError {
	return NewError(
		CodeStoreUnavailable,
		http.StatusServiceUnavailable,
		"The durable key store could not be reached or refused the operation.",
		message,
	)
}

// DuplicateKey creates a duplicate_key error
func DuplicateKey(message string) AppError {
	return NewError(
		CodeDuplicateKey,
		http.StatusConflict,
		"A key with the same purpose and id already exists.",
		message,
	)
}

// InvalidArgument creates an invalid_argument error
func InvalidArgument(message string) AppError {
	return NewError(
		CodeInvalidArgument,
		http.StatusBadRequest,
		"The request contains an invalid parameter.",
		message,
	)
}

// IllegalState creates an illegal_state error
func IllegalState(message string) AppError {
	return NewError(
		CodeIllegalState,
		http.StatusConflict,
		"The component is not in a state that allows this operation.",
		message,
	)
}

// Internal creates an internal error
func Internal(message string) AppError {
	return NewError(
		CodeInternal,
		http.StatusInternalServerError,
		"An unexpected error occurred.",
		message,
	)
}

// ================================================================================
// Error Validation Utilities
// ================================================================================

// AsAppError attempts to find an AppError in the chain
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether any AppError in the chain carries code
func HasCode(err error, code Code) bool {
	for err != nil {
		if appErr, ok := err.(AppError); ok && appErr.Code() == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsKeyNotFound checks if an error is a key_not_found error
func IsKeyNotFound(err error) bool {
	return HasCode(err, CodeKeyNotFound)
}

// IsDeadlineExceeded checks if an error is a deadline_exceeded error
func IsDeadlineExceeded(err error) bool {
	return HasCode(err, CodeDeadlineExceeded)
}

// IsStoreUnavailable checks if an error is a store_unavailable error
func IsStoreUnavailable(err error) bool {
	return HasCode(err, CodeStoreUnavailable)
}

// IsDuplicateKey checks if an error is a duplicate_key error
func IsDuplicateKey(err error) bool {
	return HasCode(err, CodeDuplicateKey)
}

// IsTransientError checks if an error is transient and can be retried
func IsTransientError(err error) bool {
	return IsStoreUnavailable(err) || IsDeadlineExceeded(err)
}

// Wrap wraps a generic error into an AppError. An error that already carries
// code is returned unchanged.
func Wrap(err error, code Code, message string) AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(AppError); ok && appErr.Code() == code {
		return appErr
	}
	if message == "" {
		message = string(code)
	}
	return NewError(code, StatusForCode(code), err.Error(), message).WithCause(err)
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts any error to an ErrorResponse and its HTTP status
func ToErrorResponse(err error) (int, *ErrorResponse) {
	if appErr, ok := AsAppError(err); ok {
		resp := &ErrorResponse{
			Error:            string(appErr.Code()),
			ErrorDescription: appErr.Error(),
		}
		if len(appErr.Metadata()) > 0 {
			resp.Metadata = appErr.Metadata()
		}
		return appErr.HTTPStatus(), resp
	}

	// Fallback to generic server error
	return http.StatusInternalServerError, &ErrorResponse{
		Error:            string(CodeInternal),
		ErrorDescription: "An unexpected error occurred",
	}
}

//Personal.AI order the ending
