// Package errors defines the domain error taxonomy. Every business-rule
// failure maps to one of these values so handlers can return a structured
// reason; storage failures are wrapped separately and never leak SQL
// details to callers.
package errors

import "net/http"

// DomainError is a business-rule failure with a stable machine code.
type DomainError struct {
	Code    string
	Message string
	Status  int
}

func (e *DomainError) Error() string {
	return e.Message
}

// HTTPStatus returns the status a handler should respond with.
func (e *DomainError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusUnprocessableEntity
	}
	return e.Status
}

var (
	ErrValidation = &DomainError{
		Code:    "VALIDATION_ERROR",
		Message: "invalid input",
		Status:  http.StatusBadRequest,
	}
	ErrInternal = &DomainError{
		Code:    "INTERNAL_ERROR",
		Message: "internal error",
		Status:  http.StatusInternalServerError,
	}
	// ErrStorageConflict is a serialization/lock conflict at the storage
	// layer. Retried transparently a bounded number of times before being
	// surfaced as ErrInternal.
	ErrStorageConflict = &DomainError{
		Code:    "STORAGE_CONFLICT",
		Message: "storage conflict",
		Status:  http.StatusConflict,
	}
)
