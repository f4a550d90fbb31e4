package errors

import "net/http"

// Code defines the type for error codes.
type Code string

const (
	// CodeKeyNotFound indicates no cached key satisfies a lookup.
	CodeKeyNotFound Code = "key_not_found"
	// CodeDeadlineExceeded indicates a wait ended before it could be satisfied.
	CodeDeadlineExceeded Code = "deadline_exceeded"
	// CodeStoreUnavailable indicates the durable key store failed.
	CodeStoreUnavailable Code = "store_unavailable"
	// CodeDuplicateKey indicates an insert collided with an existing key id.
	CodeDuplicateKey Code = "duplicate_key"
	// CodeInvalidArgument indicates a client-specified argument is invalid.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeIllegalState indicates the operation is not allowed in the current state.
	CodeIllegalState Code = "illegal_state"
	// CodeUnauthorized indicates a request is not authorized.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal indicates an internal server error.
	CodeInternal Code = "internal"
)

// StatusForCode maps a code to its default HTTP status.
func StatusForCode(code Code) int {
	switch code {
	case CodeKeyNotFound:
		return http.StatusNotFound
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case CodeDuplicateKey, CodeIllegalState:
		return http.StatusConflict
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError with the default status for code.
func New(code Code, msg string) AppError {
	return NewError(code, StatusForCode(code), msg, msg)
}
