package errors

import "net/http"

var (
	ErrRateNotFound = &DomainError{
		Code:    "RATE_NOT_FOUND",
		Message: "no effective rate for currency",
		Status:  http.StatusNotFound,
	}
	ErrPurchaseNotFound = &DomainError{
		Code:    "PURCHASE_NOT_FOUND",
		Message: "fiat purchase not found",
		Status:  http.StatusNotFound,
	}
	ErrPurchaseFinalized = &DomainError{
		Code:    "PURCHASE_FINALIZED",
		Message: "fiat purchase already finalized",
		Status:  http.StatusConflict,
	}
	ErrBadSignature = &DomainError{
		Code:    "BAD_SIGNATURE",
		Message: "provider callback signature could not be verified",
		Status:  http.StatusBadRequest,
	}
)
